package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

func testSchema(connID uuid.UUID) *models.Schema {
	return &models.Schema{
		ConnectionID: connID,
		Name:         "shop",
		DBType:       "postgresql",
		Tables: []models.Table{
			{
				Name:        "orders",
				Schema:      "public",
				Description: "customer orders",
				Columns: []models.Column{
					{Name: "id", DataType: "uuid", IsPrimaryKey: true},
					{Name: "customer_id", DataType: "uuid", IsForeignKey: true, References: "public.customers.id"},
				},
			},
			{
				Name:        "customers",
				Schema:      "public",
				Description: "customer records with loyalty tier and contact information",
				Columns: []models.Column{
					{Name: "id", DataType: "uuid", IsPrimaryKey: true},
				},
			},
			{
				Name:   "order_items",
				Schema: "public",
				Columns: []models.Column{
					{Name: "id", DataType: "uuid", IsPrimaryKey: true},
					{Name: "order_id", DataType: "uuid", IsForeignKey: true, References: "public.orders.id"},
				},
			},
		},
	}
}

func TestMemoryStore_Project_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	schema := testSchema(connID)

	require.NoError(t, store.Project(ctx, schema))
	require.NoError(t, store.Project(ctx, schema))

	relations, err := store.OutgoingRelations(ctx, connID, "orders")
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "customer_id", relations[0].ViaColumn)
	assert.Equal(t, "id", relations[0].ToColumn)
}

func TestMemoryStore_Describe_NotProjected(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Describe(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotProjected)
}

func TestMemoryStore_Describe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	desc, err := store.Describe(ctx, connID)
	require.NoError(t, err)
	assert.Contains(t, desc, "shop")
	assert.Contains(t, desc, "3 tables")
}

func TestMemoryStore_Paths(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	paths, err := store.Paths(ctx, connID, "order_items", "customers", 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"order_items", "orders", "customers"}, paths[0].Tables)
	assert.Equal(t, 2, paths[0].Length)
}

func TestMemoryStore_Paths_NoPathWithinDepth(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	paths, err := store.Paths(ctx, connID, "order_items", "customers", 1)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestMemoryStore_Related(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	related, err := store.Related(ctx, connID, "orders", 2)
	require.NoError(t, err)

	byName := map[string]models.RelatedTable{}
	for _, r := range related {
		byName[r.Name] = r
	}
	assert.Equal(t, 1, byName["customers"].Distance)
	assert.Equal(t, 1, byName["order_items"].Distance)
}

func TestMemoryStore_EntitiesByName_ExactMatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	entities, err := store.EntitiesByName(ctx, connID, "orders")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, 1.0, entities[0].Relevance)
}

func TestMemoryStore_EntitiesByName_FuzzyMatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	entities, err := store.EntitiesByName(ctx, connID, "order")
	require.NoError(t, err)
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"orders", "order_items"}, names)
}

func TestMemoryStore_RichestDescriptions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	entities, err := store.RichestDescriptions(ctx, connID, 1)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "customers", entities[0].Name)
}

func TestMemoryStore_MostConnected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	entities, err := store.MostConnected(ctx, connID, 1)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "orders", entities[0].Name)
}

func TestMemoryStore_Communities_SchemaNamespaceFallback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	connID := uuid.New()
	schema := testSchema(connID)
	schema.Tables = append(schema.Tables, models.Table{Name: "audit_log", Schema: "audit"})
	require.NoError(t, store.Project(ctx, schema))

	communities, err := store.Communities(ctx, connID, 10)
	require.NoError(t, err)
	require.Len(t, communities, 2)
}

func TestParseReference(t *testing.T) {
	cases := []struct {
		ref            string
		defaultSchema  string
		wantSchema     string
		wantTable      string
		wantColumn     string
		wantOK         bool
	}{
		{"public.customers.id", "public", "public", "customers", "id", true},
		{"customers.id", "public", "public", "customers", "id", true},
		{"id", "public", "", "", "", false},
	}
	for _, c := range cases {
		schema, table, column, ok := parseReference(c.ref, c.defaultSchema)
		assert.Equal(t, c.wantOK, ok, c.ref)
		if ok {
			assert.Equal(t, c.wantSchema, schema, c.ref)
			assert.Equal(t, c.wantTable, table, c.ref)
			assert.Equal(t, c.wantColumn, column, c.ref)
		}
	}
}
