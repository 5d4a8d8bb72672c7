// Package connection implements the Connection Registry: CRUD over stored
// Connections plus the test/execute_query operations spec.md §4.2 layers on
// top of the driver registry in pkg/adapters/datasource.
package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/audit"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
)

// Encryptor is the narrow slice of pkg/crypto.CredentialEncryptor the
// registry needs: encrypt on write, decrypt before handing a password to a
// driver.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encrypted string) (string, error)
}

// Registry is the Connection Registry service.
type Registry struct {
	repo           repositories.ConnectionRepository
	adapters       datasource.DatasourceAdapterFactory
	crypt          Encryptor
	defaultTimeout time.Duration
	logger         *zap.Logger
	auditor        *audit.SecurityAuditor
}

// New constructs a Registry. defaultTimeout bounds execute_query calls that
// don't specify their own.
func New(repo repositories.ConnectionRepository, adapters datasource.DatasourceAdapterFactory, crypt Encryptor, defaultTimeout time.Duration, logger *zap.Logger) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Registry{
		repo:           repo,
		adapters:       adapters,
		crypt:          crypt,
		defaultTimeout: defaultTimeout,
		logger:         logger.Named("connection_registry"),
	}
}

// SetAuditor attaches a SecurityAuditor so ExecuteQuery emits SIEM events
// for injection attempts, rejected parameters, and modifying statements. A
// Registry with no auditor attached skips audit logging entirely.
func (r *Registry) SetAuditor(auditor *audit.SecurityAuditor) {
	r.auditor = auditor
}

// Create encrypts the plaintext password and stores a new Connection.
func (r *Registry) Create(ctx context.Context, create models.ConnectionCreate) (*models.Connection, error) {
	encrypted, err := r.crypt.Encrypt(create.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "encrypt credentials", err)
	}

	conn := &models.Connection{
		ID:                uuid.New(),
		Type:              create.Type,
		Host:              create.Host,
		Port:              create.Port,
		Database:          create.Database,
		Username:          create.Username,
		EncryptedPassword: encrypted,
		TLS:               create.TLS,
		Status:            models.ConnectionStatusUnknown,
	}
	if err := r.repo.Create(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return r.repo.GetByID(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]*models.Connection, error) {
	return r.repo.List(ctx)
}

// Update applies a partial ConnectionCreate onto the stored Connection,
// re-encrypting the password only if a new one was supplied.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, update models.ConnectionCreate) (*models.Connection, error) {
	conn, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	conn.Type = update.Type
	conn.Host = update.Host
	conn.Port = update.Port
	conn.Database = update.Database
	conn.Username = update.Username
	conn.TLS = update.TLS
	if update.Password != "" {
		encrypted, err := r.crypt.Encrypt(update.Password)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "encrypt credentials", err)
		}
		conn.EncryptedPassword = encrypted
	}

	if err := r.repo.Update(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	return r.repo.Delete(ctx, id)
}
