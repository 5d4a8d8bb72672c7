// Package orchestrator implements the Schema Discovery Orchestrator: it
// exposes get_schema/start_discovery/job_status, dispatches discovery runs
// onto a bounded worker pool, retries transient driver failures, enforces
// the extraction memory caps, and reaps finished jobs on a retention
// schedule. See pkg/models.Job for the state machine this package drives.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/repositories"
	"github.com/mratomo/graphrag-engine/pkg/services/graph"
	"github.com/mratomo/graphrag-engine/pkg/services/vectorize"
	"github.com/mratomo/graphrag-engine/pkg/services/workerpool"
)

// Config configures the orchestrator's timing and concurrency.
type Config struct {
	// DiscoveryTimeout bounds one discovery run; a job still in_progress
	// past DiscoveryTimeout+120s transitions to JobTimeout.
	DiscoveryTimeout time.Duration
	MaxRetries       int
	JanitorInterval  time.Duration
	MaxConcurrent    int
}

// DefaultConfig mirrors config.DiscoveryConfig's env defaults.
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout: 300 * time.Second,
		MaxRetries:       3,
		JanitorInterval:  60 * time.Second,
		MaxConcurrent:    8,
	}
}

// PasswordResolver decrypts a Connection's stored credential. Kept as a
// narrow interface rather than importing pkg/crypto directly so tests can
// supply a stub.
type PasswordResolver interface {
	Decrypt(encrypted string) (string, error)
}

// Orchestrator is the Schema Discovery Orchestrator.
type Orchestrator struct {
	cfg Config

	mu   sync.RWMutex
	jobs map[string]*models.Job

	pool *workerpool.Pool

	connRepo   repositories.ConnectionRepository
	schemaRepo repositories.SchemaRepository
	adapters   datasource.DatasourceAdapterFactory
	passwords  PasswordResolver
	bridge     *vectorize.Bridge
	graphStore graph.Store

	logger *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New constructs an Orchestrator and starts its janitor goroutine.
func New(
	cfg Config,
	connRepo repositories.ConnectionRepository,
	schemaRepo repositories.SchemaRepository,
	adapters datasource.DatasourceAdapterFactory,
	passwords PasswordResolver,
	bridge *vectorize.Bridge,
	graphStore graph.Store,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 8
	}
	o := &Orchestrator{
		cfg:        cfg,
		jobs:       make(map[string]*models.Job),
		pool:       workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrent}, logger),
		connRepo:   connRepo,
		schemaRepo: schemaRepo,
		adapters:   adapters,
		passwords:  passwords,
		bridge:     bridge,
		graphStore: graphStore,
		logger:     logger.Named("orchestrator"),
		stopChan:   make(chan struct{}),
	}
	o.wg.Add(1)
	go o.runJanitor()
	return o
}

// Close stops the janitor and waits for in-flight discovery jobs to finish.
func (o *Orchestrator) Close() {
	o.stopOnce.Do(func() { close(o.stopChan) })
	o.wg.Wait()
	o.pool.Wait()
}

// GetSchema returns the current Schema for connectionID. If none has ever
// been discovered, it synthesizes a pending placeholder, kicks off a
// background discovery with default options, and returns the placeholder
// without blocking on the result.
func (o *Orchestrator) GetSchema(ctx context.Context, connectionID uuid.UUID) (*models.Schema, error) {
	schema, err := o.schemaRepo.GetByConnectionID(ctx, connectionID)
	if err == nil {
		return schema, nil
	}
	if apperrors.GetKind(err) != apperrors.KindNotFound {
		return nil, err
	}

	conn, connErr := o.connRepo.GetByID(ctx, connectionID)
	dbType := "unknown"
	if connErr == nil {
		dbType = string(conn.Type)
	}

	if _, startErr := o.StartDiscovery(ctx, connectionID, models.DiscoveryOptions{}); startErr != nil {
		o.logger.Warn("failed to auto-enqueue discovery for pending schema",
			zap.String("connection_id", connectionID.String()), zap.Error(startErr))
	}

	return models.PendingSchema(connectionID, dbType), nil
}

// StartDiscovery records a new Job in the accepted state, returns it
// synchronously, and spawns the background run on the worker pool.
func (o *Orchestrator) StartDiscovery(ctx context.Context, connectionID uuid.UUID, options models.DiscoveryOptions) (*models.Job, error) {
	job := models.NewJob(connectionID, o.cfg.DiscoveryTimeout)

	o.mu.Lock()
	o.jobs[job.JobID] = job
	o.mu.Unlock()

	// The worker pool's context is independent of the request context: a
	// discovery run must continue after the HTTP handler that triggered it
	// returns.
	o.pool.Submit(context.Background(), func(runCtx context.Context) {
		o.run(runCtx, job.JobID, options)
	})

	return job, nil
}

// JobStatus returns a snapshot of the in-memory Job. Once the janitor has
// reaped it, this returns NotFound.
func (o *Orchestrator) JobStatus(jobID string) (*models.Job, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	job, ok := o.jobs[jobID]
	if !ok {
		return nil, apperrors.NotFound("job %s not found", jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// mutateJob applies fn to the job under the write lock and returns whether
// the job was found.
func (o *Orchestrator) mutateJob(jobID string, fn func(*models.Job)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return false
	}
	fn(job)
	return true
}
