package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// run drives one Job through its full state machine: in_progress, the
// connector call (with transient retry), completed/failed/timeout, and the
// best-effort vectorizing step.
func (o *Orchestrator) run(ctx context.Context, jobID string, options models.DiscoveryOptions) {
	o.mutateJob(jobID, func(j *models.Job) {
		j.Status = models.JobInProgress
		j.InitialMemory = currentMemory()
	})

	deadline := o.cfg.DiscoveryTimeout + 120*time.Second
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var job models.Job
	o.mu.RLock()
	job = *o.jobs[jobID]
	o.mu.RUnlock()

	schema, err := o.discoverWithRetry(runCtx, jobID, job.ConnectionID, options)

	o.mutateJob(jobID, func(j *models.Job) {
		now := time.Now()
		j.FinalMemory = currentMemory()
		j.CompletedAt = &now
	})

	if err != nil {
		status := models.JobFailed
		if runCtx.Err() == context.DeadlineExceeded {
			status = models.JobTimeout
		}
		o.mutateJob(jobID, func(j *models.Job) {
			j.Status = status
			j.Error = err.Error()
		})

		failedSchema := &models.Schema{
			ConnectionID: job.ConnectionID,
			Status:       models.SchemaStatusFailed,
			Error:        err.Error(),
			Tables:       []models.Table{},
		}
		if dbType, ok := o.lookupDBType(ctx, job.ConnectionID); ok {
			failedSchema.DBType = dbType
		}
		if persistErr := o.schemaRepo.Upsert(ctx, failedSchema); persistErr != nil {
			o.logger.Warn("failed to persist failed schema",
				zap.String("job_id", jobID), zap.Error(persistErr))
		}
		return
	}

	o.mutateJob(jobID, func(j *models.Job) { j.Status = models.JobCompleted })

	if persistErr := o.schemaRepo.Upsert(ctx, schema); persistErr != nil {
		o.logger.Error("failed to persist discovered schema",
			zap.String("job_id", jobID), zap.Error(persistErr))
		return
	}

	if o.graphStore != nil {
		if projErr := o.graphStore.Project(ctx, schema); projErr != nil {
			o.logger.Warn("graph projection failed after discovery",
				zap.String("job_id", jobID), zap.Error(projErr))
		}
	}

	o.vectorizeBestEffort(ctx, jobID, schema)
}

// discoverWithRetry runs discoverOnce, retrying on transient failures per
// spec.md §4.1's rule: retry_count < 3, waiting 2^retry_count seconds,
// transitioning the job to retrying and back to in_progress around each
// wait.
func (o *Orchestrator) discoverWithRetry(ctx context.Context, jobID string, connectionID uuid.UUID, options models.DiscoveryOptions) (*models.Schema, error) {
	for {
		schema, err := o.discoverOnce(ctx, connectionID, options)
		if err == nil {
			return schema, nil
		}

		var retryCount int
		o.mu.RLock()
		if j, ok := o.jobs[jobID]; ok {
			retryCount = j.RetryCount
		}
		o.mu.RUnlock()

		if !isTransient(err) || retryCount >= o.cfg.MaxRetries {
			return nil, err
		}

		o.mutateJob(jobID, func(j *models.Job) {
			j.Status = models.JobRetrying
			j.RetryCount++
		})

		wait := time.Duration(1<<uint(retryCount)) * time.Second
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		o.mutateJob(jobID, func(j *models.Job) { j.Status = models.JobInProgress })
	}
}

// discoverOnce resolves the connection, opens a schema discoverer, extracts
// tables/columns/foreign keys under the memory caps, and assembles a
// completed Schema. It does not persist anything; run() owns persistence.
func (o *Orchestrator) discoverOnce(ctx context.Context, connectionID uuid.UUID, options models.DiscoveryOptions) (*models.Schema, error) {
	conn, err := o.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}

	password, err := o.passwords.Decrypt(conn.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}

	dsType := registryType(conn.Type)
	config := connectionConfigMap(conn, password)

	discoverer, err := o.adapters.NewSchemaDiscoverer(ctx, dsType, config, uuid.Nil, conn.ID, "")
	if err != nil {
		return nil, fmt.Errorf("open schema discoverer: %w", err)
	}
	defer discoverer.Close()

	tables, err := discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].SchemaName != tables[j].SchemaName {
			return tables[i].SchemaName < tables[j].SchemaName
		}
		return tables[i].TableName < tables[j].TableName
	})

	tables = filterTables(tables, options)
	if len(tables) > models.MaxTablesPerSchema {
		o.logger.Warn("dropping tables past per-schema cap",
			zap.String("connection_id", connectionID.String()),
			zap.Int("original_count", len(tables)),
			zap.Int("truncated_count", models.MaxTablesPerSchema))
		tables = tables[:models.MaxTablesPerSchema]
	}

	var foreignKeys []datasource.ForeignKeyMetadata
	if discoverer.SupportsForeignKeys() {
		foreignKeys, err = discoverer.DiscoverForeignKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys: %w", err)
		}
	}

	resultTables := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		columns, err := discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s.%s: %w", t.SchemaName, t.TableName, err)
		}

		if len(columns) > models.MaxColumnsPerTable {
			o.logger.Warn("dropping columns past per-table cap",
				zap.String("table", t.TableName),
				zap.Int("original_count", len(columns)),
				zap.Int("truncated_count", models.MaxColumnsPerTable))
			columns = columns[:models.MaxColumnsPerTable]
		}

		modelColumns := make([]models.Column, 0, len(columns))
		for _, c := range columns {
			modelColumns = append(modelColumns, models.Column{
				Name:         o.truncateIdentifier("column", c.ColumnName),
				DataType:     c.DataType,
				Nullable:     c.IsNullable,
				IsPrimaryKey: c.IsPrimaryKey,
			})
		}
		applyForeignKeys(modelColumns, t.SchemaName, t.TableName, foreignKeys)

		rowCount := t.RowCount
		resultTables = append(resultTables, models.Table{
			Name:     o.truncateIdentifier("table", t.TableName),
			Schema:   o.truncateIdentifier("schema", t.SchemaName),
			RowCount: &rowCount,
			Columns:  modelColumns,
		})
	}

	now := time.Now()
	return &models.Schema{
		ConnectionID:  connectionID,
		Name:          conn.Database,
		DBType:        string(conn.Type),
		Status:        models.SchemaStatusCompleted,
		DiscoveryDate: &now,
		Tables:        resultTables,
	}, nil
}

// filterTables applies the schemas/excluded_tables/excluded_collections
// options recognized by start_discovery.
func filterTables(tables []datasource.TableMetadata, options models.DiscoveryOptions) []datasource.TableMetadata {
	excluded := make(map[string]bool, len(options.ExcludedTables)+len(options.ExcludedCollections))
	for _, name := range options.ExcludedTables {
		excluded[name] = true
	}
	for _, name := range options.ExcludedCollections {
		excluded[name] = true
	}

	var allowed map[string]bool
	if len(options.Schemas) > 0 {
		allowed = make(map[string]bool, len(options.Schemas))
		for _, s := range options.Schemas {
			allowed[s] = true
		}
	}

	out := make([]datasource.TableMetadata, 0, len(tables))
	for _, t := range tables {
		if excluded[t.TableName] {
			continue
		}
		if allowed != nil && !allowed[t.SchemaName] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// applyForeignKeys marks the matching source columns of table
// schemaName.tableName as foreign keys and fills their References string,
// per the "[schema.]table.column" format spec.md §4.3 parses.
func applyForeignKeys(columns []models.Column, schemaName, tableName string, foreignKeys []datasource.ForeignKeyMetadata) {
	for _, fk := range foreignKeys {
		if fk.SourceSchema != schemaName || fk.SourceTable != tableName {
			continue
		}
		for i := range columns {
			if columns[i].Name != fk.SourceColumn {
				continue
			}
			columns[i].IsForeignKey = true
			if fk.TargetSchema != "" {
				columns[i].References = fmt.Sprintf("%s.%s.%s", fk.TargetSchema, fk.TargetTable, fk.TargetColumn)
			} else {
				columns[i].References = fmt.Sprintf("%s.%s", fk.TargetTable, fk.TargetColumn)
			}
		}
	}
}

// truncationMarker is appended to any identifier cut down to
// models.MaxIdentifierLength, so a truncated name is visibly distinct from
// one that genuinely ends there.
const truncationMarker = "~"

// truncateIdentifier enforces the 100-character identifier cap, appending
// truncationMarker and logging the original and truncated values so the
// loss is visible to operators rather than silently changing names.
func (o *Orchestrator) truncateIdentifier(kind, name string) string {
	if len(name) <= models.MaxIdentifierLength {
		return name
	}
	cut := name[:models.MaxIdentifierLength-len(truncationMarker)] + truncationMarker
	o.logger.Warn("truncated over-length identifier",
		zap.String("kind", kind),
		zap.String("original", name),
		zap.String("truncated", cut))
	return cut
}

func (o *Orchestrator) lookupDBType(ctx context.Context, connectionID uuid.UUID) (string, bool) {
	conn, err := o.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return "", false
	}
	return string(conn.Type), true
}

func (o *Orchestrator) vectorizeBestEffort(ctx context.Context, jobID string, schema *models.Schema) {
	if o.bridge == nil {
		return
	}
	o.mutateJob(jobID, func(j *models.Job) { j.Status = models.JobVectorizing })

	vectorID, err := o.bridge.Vectorize(ctx, schema)
	if err != nil {
		schema.VectorizationError = err.Error()
		o.logger.Warn("schema vectorization failed, schema remains completed",
			zap.String("job_id", jobID), zap.Error(err))
	} else {
		schema.VectorID = vectorID
	}

	if persistErr := o.schemaRepo.Upsert(ctx, schema); persistErr != nil {
		o.logger.Error("failed to persist post-vectorization schema",
			zap.String("job_id", jobID), zap.Error(persistErr))
	}

	o.mutateJob(jobID, func(j *models.Job) { j.Status = models.JobCompleted })
}

func currentMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
