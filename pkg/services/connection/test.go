package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Test resolves credentials, invokes the type-specific driver's ping, and
// records the derived status on the stored Connection — it persists the
// status/last_checked regardless of outcome (spec.md §9 Open Question (c)),
// while also returning the error to the caller.
func (r *Registry) Test(ctx context.Context, id uuid.UUID) (*models.ConnectionTestResult, error) {
	conn, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	password, err := r.crypt.Decrypt(conn.EncryptedPassword)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	testErr := r.ping(ctx, conn, password)
	elapsed := time.Since(start)

	result := &models.ConnectionTestResult{
		ElapsedMs: elapsed.Milliseconds(),
	}
	if testErr != nil {
		result.Status = models.ConnectionStatusError
		result.Error = testErr.Error()
	} else {
		result.Status = models.ConnectionStatusActive
	}

	if updateErr := r.repo.UpdateStatus(ctx, id, result.Status, result.Error); updateErr != nil {
		r.logger.Warn("failed to persist connection status after test",
			zap.String("connection_id", id.String()), zap.Error(updateErr))
	}

	return result, nil
}

func (r *Registry) ping(ctx context.Context, conn *models.Connection, password string) error {
	dsType := registryType(conn.Type)
	config := connectionConfigMap(conn, password)

	tester, err := r.adapters.NewConnectionTester(ctx, dsType, config, uuid.Nil, conn.ID, "")
	if err != nil {
		return err
	}
	defer tester.Close()

	return tester.TestConnection(ctx)
}
