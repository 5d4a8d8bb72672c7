package vectorize

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

func testSchema() *models.Schema {
	rowCount := int64(42)
	return &models.Schema{
		ConnectionID: uuid.New(),
		Name:         "shop",
		DBType:       "postgresql",
		Tables: []models.Table{
			{
				Name:        "orders",
				Schema:      "public",
				Description: "customer orders",
				RowCount:    &rowCount,
				Columns: []models.Column{
					{Name: "id", DataType: "uuid", IsPrimaryKey: true, Nullable: false},
					{Name: "customer_id", DataType: "uuid", IsForeignKey: true, References: "public.customers.id", Nullable: true},
				},
			},
		},
	}
}

func TestBuildDescription_IncludesFlags(t *testing.T) {
	desc := BuildDescription(testSchema())
	assert.Contains(t, desc, "Database: shop (postgresql)")
	assert.Contains(t, desc, "Table: public.orders")
	assert.Contains(t, desc, "PRIMARY KEY")
	assert.Contains(t, desc, "FOREIGN KEY -> public.customers.id")
	assert.Contains(t, desc, "NOT NULL")
	assert.Contains(t, desc, "Rows: 42")
}

func TestBuildDescription_TruncatesAtCap(t *testing.T) {
	schema := testSchema()
	longDesc := strings.Repeat("x", maxDescriptionChars)
	schema.Tables[0].Description = longDesc

	desc := BuildDescription(schema)
	assert.LessOrEqual(t, len(desc), maxDescriptionChars)
	assert.Contains(t, desc, "truncated")
}

func TestVectorID_Deterministic(t *testing.T) {
	id1 := VectorID("conn-1", "description text")
	id2 := VectorID("conn-1", "description text")
	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "schema_conn-1_"))
}

func TestVectorID_DiffersOnDescriptionChange(t *testing.T) {
	id1 := VectorID("conn-1", "a")
	id2 := VectorID("conn-1", "b")
	assert.NotEqual(t, id1, id2)
}

type fakeEmbedder struct {
	calls   int
	failN   int
	vector  []float32
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, assertableError{"transient failure"}
	}
	return f.vector, nil
}

type assertableError struct{ msg string }

func (e assertableError) Error() string { return e.msg }

func TestBridge_Vectorize_Success(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	bridge := New(store, embedder, nil)

	schema := testSchema()
	vectorID, err := bridge.Vectorize(context.Background(), schema)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(vectorID, "schema_"))

	docs, err := store.Search(context.Background(), vectorstore.CollectionDatabaseSchemas, []float32{0.1, 0.2}, 1, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "shop", docs[0].Metadata["name"])
}

func TestBridge_Vectorize_RetriesThenSucceeds(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{vector: []float32{1, 0}, failN: 2}
	bridge := New(store, embedder, nil)

	_, err := bridge.Vectorize(context.Background(), testSchema())
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.calls)
}

func TestBridge_Vectorize_FailsAfterAllAttempts(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{vector: []float32{1, 0}, failN: 10}
	bridge := New(store, embedder, nil)

	_, err := bridge.Vectorize(context.Background(), testSchema())
	require.Error(t, err)
	assert.Equal(t, len(attemptTimeouts), embedder.calls)
}
