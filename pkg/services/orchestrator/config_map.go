package orchestrator

import (
	"fmt"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// registryType maps a models.ConnectionType to the string key the
// datasource adapter registry registers drivers under. Most line up
// directly; postgresql is the one mismatch (registered as "postgres").
func registryType(t models.ConnectionType) string {
	if t == models.ConnectionTypePostgreSQL {
		return "postgres"
	}
	return string(t)
}

// connectionConfigMap builds the generic config map each adapter package's
// FromMap expects. It includes every key any driver's FromMap looks for;
// each driver only reads the keys it recognizes and ignores the rest.
func connectionConfigMap(conn *models.Connection, password string) map[string]any {
	return map[string]any{
		"host":     conn.Host,
		"port":     conn.Port,
		"database": conn.Database,
		"username": conn.Username,
		"user":     conn.Username,
		"password": password,
		"tls":      conn.TLS,
		"encrypt":  conn.TLS,
		"ssl_mode": sslMode(conn.TLS),
		"url":      fmt.Sprintf("%s:%d", conn.Host, conn.Port),
	}
}

func sslMode(tls bool) string {
	if tls {
		return "require"
	}
	return "disable"
}
