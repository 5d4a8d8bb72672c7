package connection

import (
	"fmt"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// registryType maps a models.ConnectionType to the string key the
// datasource adapter registry registers drivers under. Kept in sync with
// pkg/services/orchestrator's copy of the same mapping — both packages
// bridge the same models.Connection to the same registry, independently,
// so neither needs to import the other's internals.
func registryType(t models.ConnectionType) string {
	if t == models.ConnectionTypePostgreSQL {
		return "postgres"
	}
	return string(t)
}

// connectionConfigMap builds the generic config map each adapter package's
// FromMap expects.
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
