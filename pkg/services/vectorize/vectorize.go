// Package vectorize implements the Vectorization Bridge: it converts a
// discovered models.Schema into canonical description text and writes the
// resulting embedding to the vector store under a deterministic vector_id.
package vectorize

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// maxDescriptionChars is the hard cap on a Schema description per spec.md
// §4.4; text beyond this is truncated with a visible marker.
const maxDescriptionChars = 100_000

const truncationMarker = "\n...[truncated]\n"

// attemptTimeouts is the increasing per-attempt timeout schedule from
// spec.md §4.4: 120s initial, +60s per retry, up to three attempts total.
var attemptTimeouts = []time.Duration{120 * time.Second, 180 * time.Second, 240 * time.Second}

// Embedder is the narrow slice of pkg/llm.Dispatcher the bridge needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, providerID, input string) ([]float32, error)
}

// Bridge converts Schemas to text, embeds them, and writes them to the
// vector store's database_schemas collection.
type Bridge struct {
	store    vectorstore.Store
	embedder Embedder
	logger   *zap.Logger
}

// New constructs a Bridge over the given vector store and embedder.
func New(store vectorstore.Store, embedder Embedder, logger *zap.Logger) *Bridge {
	return &Bridge{store: store, embedder: embedder, logger: logger}
}

// BuildDescription renders the canonical text description for a Schema: a
// database header followed by one block per table listing its columns with
// PRIMARY KEY / FOREIGN KEY (-> target) / NOT NULL flags and descriptions.
// The result is truncated to maxDescriptionChars with a visible marker.
func BuildDescription(schema *models.Schema) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Database: %s (%s)\n", schema.Name, schema.DBType)
	if schema.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", schema.Version)
	}
	b.WriteString("\n")

	for _, table := range schema.Tables {
		fmt.Fprintf(&b, "Table: %s.%s\n", table.Schema, table.Name)
		if table.Description != "" {
			fmt.Fprintf(&b, "  %s\n", table.Description)
		}
		if table.RowCount != nil {
			fmt.Fprintf(&b, "  Rows: %d\n", *table.RowCount)
		}
		for _, col := range table.Columns {
			var flags []string
			if col.IsPrimaryKey {
				flags = append(flags, "PRIMARY KEY")
			}
			if col.IsForeignKey {
				target := col.References
				if target == "" {
					target = "?"
				}
				flags = append(flags, fmt.Sprintf("FOREIGN KEY -> %s", target))
			}
			if !col.Nullable {
				flags = append(flags, "NOT NULL")
			}
			flagStr := ""
			if len(flags) > 0 {
				flagStr = " [" + strings.Join(flags, ", ") + "]"
			}
			desc := ""
			if col.Description != "" {
				desc = ": " + col.Description
			}
			fmt.Fprintf(&b, "  - %s (%s)%s%s\n", col.Name, col.DataType, flagStr, desc)
		}
		b.WriteString("\n")
	}

	description := b.String()
	if len(description) > maxDescriptionChars {
		cut := maxDescriptionChars - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		description = description[:cut] + truncationMarker
	}
	return description
}

// VectorID computes the deterministic vector_id for a Schema's current
// description, matching spec.md §4.4's
// "schema_<connection_id>_<md5(description)>" format.
func VectorID(connectionID string, description string) string {
	sum := md5.Sum([]byte(description))
	return fmt.Sprintf("schema_%s_%s", connectionID, hex.EncodeToString(sum[:]))
}

// Vectorize builds the description, embeds it (retried per the increasing
// per-attempt timeout schedule), and upserts the vector into the
// database_schemas collection. Returns the assigned vector_id.
func (b *Bridge) Vectorize(ctx context.Context, schema *models.Schema) (string, error) {
	description := BuildDescription(schema)
	connID := schema.ConnectionID.String()
	vectorID := VectorID(connID, description)

	vector, err := b.embedWithRetry(ctx, description)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstream, "vectorize schema description", err)
	}

	metadata := map[string]any{
		"connection_id": connID,
		"db_type":       schema.DBType,
		"name":          schema.Name,
		"schema_hash":   vectorID,
		"tables_count":  len(schema.Tables),
	}

	if _, err := b.store.Upsert(ctx, vectorstore.CollectionDatabaseSchemas, vectorID, description, vector, metadata); err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstream, "store schema vector", err)
	}

	if b.logger != nil {
		b.logger.Info("vectorized schema",
			zap.String("connection_id", connID),
			zap.String("vector_id", vectorID),
			zap.Int("description_chars", len(description)))
	}
	return vectorID, nil
}

func (b *Bridge) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt, timeout := range attemptTimeouts {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		vector, err := b.embedder.CreateEmbedding(attemptCtx, "", text)
		cancel()
		if err == nil {
			return vector, nil
		}
		lastErr = err
		if b.logger != nil {
			b.logger.Warn("schema embedding attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Duration("timeout", timeout),
				zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
