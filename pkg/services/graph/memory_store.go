package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// MemoryStore is an in-process Store used when no Neo4j backend is
// configured (config.GraphConfig.Enabled() is false) and by tests. It
// implements the exact same idempotent-projection and read-operation
// semantics as Neo4jStore, over plain maps guarded by one mutex, matching
// the single-exclusive-lock discipline used throughout this codebase
// (connection_manager.go, the orchestrator job map).
type MemoryStore struct {
	mu sync.RWMutex
	// graphs is keyed by connection id; each graph is independent.
	graphs map[uuid.UUID]*memoryGraph
}

type memoryGraph struct {
	name    string
	dbType  string
	tables  map[string]*memoryTable
	order   []string // table names in projection order, for deterministic iteration
}

type memoryTable struct {
	name        string
	schema      string
	description string
	community   int
	relations   map[string]*memoryRelation // keyed by target table name
}

type memoryRelation struct {
	toTable string
	via     []string
	to      []string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[uuid.UUID]*memoryGraph)}
}

func (s *MemoryStore) Project(_ context.Context, schema *models.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.graphs[schema.ConnectionID]
	if !ok {
		g = &memoryGraph{tables: make(map[string]*memoryTable)}
		s.graphs[schema.ConnectionID] = g
	}
	g.name = schema.Name
	g.dbType = schema.DBType

	for _, table := range schema.Tables {
		t, ok := g.tables[table.Name]
		if !ok {
			t = &memoryTable{relations: make(map[string]*memoryRelation)}
			g.tables[table.Name] = t
			g.order = append(g.order, table.Name)
		}
		t.name = table.Name
		t.schema = table.Schema
		t.description = table.Description
	}

	for _, table := range schema.Tables {
		for _, col := range table.Columns {
			if !col.IsForeignKey || col.References == "" {
				continue
			}
			_, targetTable, targetColumn, ok := parseReference(col.References, table.Schema)
			if !ok {
				continue
			}
			if _, exists := g.tables[targetTable]; !exists {
				continue
			}
			t := g.tables[table.Name]
			rel, ok := t.relations[targetTable]
			if !ok {
				rel = &memoryRelation{toTable: targetTable}
				t.relations[targetTable] = rel
			}
			rel.via = appendDedup(rel.via, col.Name)
			rel.to = appendDedup(rel.to, targetColumn)
		}
	}

	communities := assignSchemaCommunities(schema.Tables)
	for name, community := range communities {
		if t, ok := g.tables[name]; ok {
			t.community = community
		}
	}

	return nil
}

func (s *MemoryStore) Describe(_ context.Context, connectionID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return "", ErrNotProjected
	}
	relations := 0
	for _, t := range g.tables {
		relations += len(t.relations)
	}
	return fmt.Sprintf("%s: %d tables, %d relations", g.name, len(g.tables), relations), nil
}

func (s *MemoryStore) Paths(_ context.Context, connectionID uuid.UUID, fromTable, toTable string, maxDepth int) ([]models.GraphPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	if _, ok := g.tables[fromTable]; !ok {
		return nil, nil
	}
	if _, ok := g.tables[toTable]; !ok {
		return nil, nil
	}

	path := bfsShortestPath(g, fromTable, toTable, maxDepth)
	if path == nil {
		return nil, nil
	}
	return []models.GraphPath{{
		FromTable: fromTable,
		ToTable:   toTable,
		Tables:    path,
		Length:    len(path) - 1,
	}}, nil
}

func bfsShortestPath(g *memoryGraph, from, to string, maxDepth int) []string {
	type frame struct {
		table string
		path  []string
	}
	visited := map[string]bool{from: true}
	queue := []frame{{table: from, path: []string{from}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.table == to {
			return cur.path
		}
		if len(cur.path)-1 >= maxDepth {
			continue
		}
		for _, neighbor := range neighbors(g, cur.table) {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			next := append(append([]string{}, cur.path...), neighbor)
			queue = append(queue, frame{table: neighbor, path: next})
		}
	}
	return nil
}

// neighbors returns both outgoing and incoming RELATES_TO neighbors, since
// spec.md §4.3 read operations treat paths/related as undirected traversal.
func neighbors(g *memoryGraph, table string) []string {
	var out []string
	if t, ok := g.tables[table]; ok {
		for name := range t.relations {
			out = append(out, name)
		}
	}
	for name, t := range g.tables {
		if name == table {
			continue
		}
		if _, ok := t.relations[table]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Related(_ context.Context, connectionID uuid.UUID, table string, maxDepth int) ([]models.RelatedTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	if _, ok := g.tables[table]; !ok {
		return nil, nil
	}

	distances := map[string]int{table: 0}
	viaByTable := map[string][]string{}
	frontier := []string{table}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			for _, neighbor := range neighbors(g, cur) {
				if _, seen := distances[neighbor]; seen {
					continue
				}
				distances[neighbor] = depth
				viaByTable[neighbor] = relationColumns(g, cur, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	var related []models.RelatedTable
	for name, distance := range distances {
		if name == table {
			continue
		}
		related = append(related, models.RelatedTable{
			Name:       name,
			Distance:   distance,
			ViaColumns: viaByTable[name],
		})
	}
	sort.Slice(related, func(i, j int) bool {
		if related[i].Distance != related[j].Distance {
			return related[i].Distance < related[j].Distance
		}
		return related[i].Name < related[j].Name
	})
	return related, nil
}

func relationColumns(g *memoryGraph, from, to string) []string {
	if t, ok := g.tables[from]; ok {
		if rel, ok := t.relations[to]; ok {
			return rel.via
		}
	}
	if t, ok := g.tables[to]; ok {
		if rel, ok := t.relations[from]; ok {
			return rel.to
		}
	}
	return nil
}

func (s *MemoryStore) EntitiesByName(_ context.Context, connectionID uuid.UUID, name string) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	if t, ok := g.tables[name]; ok {
		return []models.Entity{toEntity(t, 1.0)}, nil
	}

	var entities []models.Entity
	lower := strings.ToLower(name)
	for _, n := range g.order {
		t := g.tables[n]
		if strings.Contains(strings.ToLower(t.name), lower) {
			entities = append(entities, toEntity(t, 0.7))
		}
	}
	return entities, nil
}

func (s *MemoryStore) MostConnected(_ context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	names := append([]string{}, g.order...)
	sort.Slice(names, func(i, j int) bool {
		return degree(g, names[i]) > degree(g, names[j])
	})
	if len(names) > n {
		names = names[:n]
	}
	entities := make([]models.Entity, 0, len(names))
	for _, name := range names {
		entities = append(entities, toEntity(g.tables[name], 0.6))
	}
	return entities, nil
}

func degree(g *memoryGraph, table string) int {
	return len(neighbors(g, table))
}

func (s *MemoryStore) RichestDescriptions(_ context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(g.order))
	for _, name := range g.order {
		if g.tables[name].description != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return len(g.tables[names[i]].description) > len(g.tables[names[j]].description)
	})
	if len(names) > n {
		names = names[:n]
	}
	entities := make([]models.Entity, 0, len(names))
	for _, name := range names {
		entities = append(entities, toEntity(g.tables[name], 0.5))
	}
	return entities, nil
}

func (s *MemoryStore) OutgoingRelations(_ context.Context, connectionID uuid.UUID, table string) ([]models.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	t, ok := g.tables[table]
	if !ok {
		return nil, nil
	}
	var relations []models.Relation
	for _, name := range sortedKeys(t.relations) {
		rel := t.relations[name]
		relations = append(relations, models.Relation{
			FromTable: table,
			ToTable:   rel.toTable,
			ViaColumn: strings.Join(rel.via, ","),
			ToColumn:  strings.Join(rel.to, ","),
		})
	}
	return relations, nil
}

func sortedKeys(m map[string]*memoryRelation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore) Communities(_ context.Context, connectionID uuid.UUID, n int) ([]models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[connectionID]
	if !ok {
		return nil, nil
	}
	byID := make(map[int][]string)
	for _, name := range g.order {
		t := g.tables[name]
		byID[t.community] = append(byID[t.community], name)
	}
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	communities := make([]models.Community, 0, len(ids))
	for _, id := range ids {
		tables := byID[id]
		sort.Strings(tables)
		communities = append(communities, models.Community{ID: id, Tables: tables})
	}
	return communities, nil
}

func (s *MemoryStore) RawQuery(_ context.Context, _ uuid.UUID, _ string, _ map[string]any) ([]map[string]any, error) {
	return nil, ErrRawQueryUnsupported
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func toEntity(t *memoryTable, relevance float64) models.Entity {
	return models.Entity{
		ID:          fmt.Sprintf("%s.%s", t.schema, t.name),
		Name:        t.name,
		Schema:      t.schema,
		Description: t.description,
		Relevance:   relevance,
	}
}
