package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Neo4jStore is the Store implementation backed by a real Neo4j cluster. The
// Project method runs the entire six-step projection inside one
// neo4j.ExecuteWrite callback so a partial projection is never observable.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jStore dials uri and verifies connectivity before returning.
func NewNeo4jStore(ctx context.Context, uri, username, password string, logger *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver, logger: logger}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
}

// Project applies the six-step projection of spec.md §4.3 in one write
// transaction: constraints, Database/Table/Column upserts, REFERENCES edges,
// merged RELATES_TO edges, and community assignment.
func (s *Neo4jStore) Project(ctx context.Context, schema *models.Schema) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	connID := schema.ConnectionID.String()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Step 1: uniqueness constraints (idempotent; Neo4j no-ops on re-create).
		constraints := []string{
			"CREATE CONSTRAINT IF NOT EXISTS FOR (d:Database) REQUIRE d.connection_id IS UNIQUE",
			"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Table) REQUIRE t.table_id IS UNIQUE",
			"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Column) REQUIRE c.column_id IS UNIQUE",
		}
		for _, stmt := range constraints {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, fmt.Errorf("ensure constraint: %w", err)
			}
		}

		// Step 2: Database node + CONTAINS edges to each Table.
		if _, err := tx.Run(ctx, `
			MERGE (d:Database {connection_id: $connectionID})
			SET d.name = $name, d.db_type = $dbType
		`, map[string]any{
			"connectionID": connID,
			"name":         schema.Name,
			"dbType":       schema.DBType,
		}); err != nil {
			return nil, fmt.Errorf("upsert database node: %w", err)
		}

		for _, table := range schema.Tables {
			tableID := tableID(connID, table.Schema, table.Name)

			if _, err := tx.Run(ctx, `
				MATCH (d:Database {connection_id: $connectionID})
				MERGE (t:Table {table_id: $tableID})
				SET t.name = $name, t.schema = $schemaName, t.description = $description
				MERGE (d)-[:CONTAINS]->(t)
			`, map[string]any{
				"connectionID": connID,
				"tableID":      tableID,
				"name":         table.Name,
				"schemaName":   table.Schema,
				"description":  table.Description,
			}); err != nil {
				return nil, fmt.Errorf("upsert table %s: %w", table.Name, err)
			}

			// Step 3: Column nodes + HAS_COLUMN edges.
			for _, col := range table.Columns {
				columnID := columnID(tableID, col.Name)
				if _, err := tx.Run(ctx, `
					MATCH (t:Table {table_id: $tableID})
					MERGE (c:Column {column_id: $columnID})
					SET c.name = $name, c.data_type = $dataType,
					    c.is_primary_key = $isPK, c.is_foreign_key = $isFK
					MERGE (t)-[:HAS_COLUMN]->(c)
				`, map[string]any{
					"tableID":  tableID,
					"columnID": columnID,
					"name":     col.Name,
					"dataType": col.DataType,
					"isPK":     col.IsPrimaryKey,
					"isFK":     col.IsForeignKey,
				}); err != nil {
					return nil, fmt.Errorf("upsert column %s.%s: %w", table.Name, col.Name, err)
				}
			}
		}

		// Step 4 + 5: REFERENCES edges and merged RELATES_TO edges.
		for _, table := range schema.Tables {
			srcTableID := tableID(connID, table.Schema, table.Name)
			for _, col := range table.Columns {
				if !col.IsForeignKey || col.References == "" {
					continue
				}
				targetSchema, targetTable, targetColumn, ok := parseReference(col.References, table.Schema)
				if !ok {
					continue
				}
				targetTableID := tableID(connID, targetSchema, targetTable)
				targetColumnID := columnID(targetTableID, targetColumn)
				srcColumnID := columnID(srcTableID, col.Name)

				if _, err := tx.Run(ctx, `
					MATCH (c:Column {column_id: $srcColumnID})
					MATCH (target:Column {column_id: $targetColumnID})
					MERGE (c)-[:REFERENCES]->(target)
				`, map[string]any{
					"srcColumnID":    srcColumnID,
					"targetColumnID": targetColumnID,
				}); err != nil {
					return nil, fmt.Errorf("emit REFERENCES %s.%s: %w", table.Name, col.Name, err)
				}

				if err := mergeRelatesTo(ctx, tx, srcTableID, targetTableID, col.Name, targetColumn); err != nil {
					return nil, err
				}
			}
		}

		// Step 6: community detection, falling back to schema-namespace
		// grouping (Neo4j GDS is an optional plugin; absence is common).
		communities := assignSchemaCommunities(schema.Tables)
		for tableName, community := range communities {
			if _, err := tx.Run(ctx, `
				MATCH (t:Table {table_id: $tableID})
				SET t.community = $community
			`, map[string]any{
				"tableID":   tableID(connID, schemaOf(schema.Tables, tableName), tableName),
				"community": community,
			}); err != nil {
				return nil, fmt.Errorf("set community for %s: %w", tableName, err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "graph projection failed", err)
	}

	if s.logger != nil {
		s.logger.Info("projected schema into graph",
			zap.String("connection_id", connID),
			zap.Int("tables", len(schema.Tables)))
	}
	return nil
}

func mergeRelatesTo(ctx context.Context, tx neo4j.ManagedTransaction, fromTableID, toTableID, viaColumn, toColumn string) error {
	result, err := tx.Run(ctx, `
		MATCH (from:Table {table_id: $fromTableID})
		MATCH (to:Table {table_id: $toTableID})
		MERGE (from)-[r:RELATES_TO]->(to)
		ON CREATE SET r.via_column = $viaColumn, r.to_column = $toColumn
		RETURN r.via_column AS viaColumn, r.to_column AS toColumn
	`, map[string]any{
		"fromTableID": fromTableID,
		"toTableID":   toTableID,
		"viaColumn":   viaColumn,
		"toColumn":    toColumn,
	})
	if err != nil {
		return fmt.Errorf("merge RELATES_TO: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("read merged RELATES_TO: %w", err)
	}
	existingVia, _ := record.Get("viaColumn")
	existingTo, _ := record.Get("toColumn")

	viaCols := appendDedup(splitAnnotation(existingVia), viaColumn)
	toCols := appendDedup(splitAnnotation(existingTo), toColumn)

	if _, err := tx.Run(ctx, `
		MATCH (from:Table {table_id: $fromTableID})-[r:RELATES_TO]->(to:Table {table_id: $toTableID})
		SET r.via_column = $viaColumn, r.to_column = $toColumn
	`, map[string]any{
		"fromTableID": fromTableID,
		"toTableID":   toTableID,
		"viaColumn":   strings.Join(viaCols, ","),
		"toColumn":    strings.Join(toCols, ","),
	}); err != nil {
		return fmt.Errorf("update RELATES_TO annotation: %w", err)
	}
	return nil
}

func splitAnnotation(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func appendDedup(existing []string, add string) []string {
	for _, e := range existing {
		if e == add {
			return existing
		}
	}
	return append(existing, add)
}

func (s *Neo4jStore) Describe(ctx context.Context, connectionID uuid.UUID) (string, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table)
			OPTIONAL MATCH (t)-[r:RELATES_TO]->()
			RETURN d.name AS name, count(DISTINCT t) AS tables, count(r) AS relations
		`, map[string]any{"connectionID": connectionID.String()})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, ErrNotProjected
		}
		name, _ := record.Get("name")
		tables, _ := record.Get("tables")
		relations, _ := record.Get("relations")
		return fmt.Sprintf("%v: %v tables, %v relations", name, tables, relations), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Neo4jStore) Paths(ctx context.Context, connectionID uuid.UUID, fromTable, toTable string, maxDepth int) ([]models.GraphPath, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	connID := connectionID.String()
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(from:Table {name: $fromTable})
			MATCH (d)-[:CONTAINS]->(to:Table {name: $toTable})
			MATCH path = allShortestPaths((from)-[:RELATES_TO*1..%d]-(to))
			RETURN [n IN nodes(path) | n.name] AS tables
			LIMIT 5
		`, maxDepth), map[string]any{
			"connectionID": connID,
			"fromTable":    fromTable,
			"toTable":      toTable,
		})
		if err != nil {
			return nil, err
		}
		var paths []models.GraphPath
		for res.Next(ctx) {
			raw, _ := res.Record().Get("tables")
			names := toStringSlice(raw)
			paths = append(paths, models.GraphPath{
				FromTable: fromTable,
				ToTable:   toTable,
				Tables:    names,
				Length:    len(names) - 1,
			})
		}
		return paths, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.GraphPath), nil
}

func (s *Neo4jStore) Related(ctx context.Context, connectionID uuid.UUID, table string, maxDepth int) ([]models.RelatedTable, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	connID := connectionID.String()
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(origin:Table {name: $table})
			MATCH path = (origin)-[r:RELATES_TO*1..%d]-(other:Table)
			WHERE other <> origin
			WITH other, min(length(path)) AS distance, collect(DISTINCT last(r).via_column) AS viaCols
			RETURN other.name AS name, distance, viaCols
			ORDER BY distance ASC
		`, maxDepth), map[string]any{"connectionID": connID, "table": table})
		if err != nil {
			return nil, err
		}
		var related []models.RelatedTable
		for res.Next(ctx) {
			rec := res.Record()
			name, _ := rec.Get("name")
			distance, _ := rec.Get("distance")
			viaCols, _ := rec.Get("viaCols")
			related = append(related, models.RelatedTable{
				Name:       name.(string),
				Distance:   int(distance.(int64)),
				ViaColumns: toStringSlice(viaCols),
			})
		}
		return related, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.RelatedTable), nil
}

func (s *Neo4jStore) EntitiesByName(ctx context.Context, connectionID uuid.UUID, name string) ([]models.Entity, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	connID := connectionID.String()
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table {name: $name})
			RETURN t.name AS name, t.schema AS schemaName, t.description AS description
		`, map[string]any{"connectionID": connID, "name": name})
		if err != nil {
			return nil, err
		}
		entities, err := collectEntities(ctx, res, 1.0)
		if err != nil || len(entities) > 0 {
			return entities, err
		}

		res, err = tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table)
			WHERE toLower(t.name) CONTAINS toLower($name)
			RETURN t.name AS name, t.schema AS schemaName, t.description AS description
		`, map[string]any{"connectionID": connID, "name": name})
		if err != nil {
			return nil, err
		}
		return collectEntities(ctx, res, 0.7)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Entity), nil
}

func (s *Neo4jStore) MostConnected(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table)
			OPTIONAL MATCH (t)-[r:RELATES_TO]-()
			WITH t, count(r) AS degree
			RETURN t.name AS name, t.schema AS schemaName, t.description AS description
			ORDER BY degree DESC
			LIMIT $n
		`, map[string]any{"connectionID": connectionID.String(), "n": n})
		if err != nil {
			return nil, err
		}
		return collectEntities(ctx, res, 0.6)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Entity), nil
}

func (s *Neo4jStore) RichestDescriptions(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table)
			WHERE t.description IS NOT NULL AND t.description <> ""
			RETURN t.name AS name, t.schema AS schemaName, t.description AS description
			ORDER BY size(t.description) DESC
			LIMIT $n
		`, map[string]any{"connectionID": connectionID.String(), "n": n})
		if err != nil {
			return nil, err
		}
		return collectEntities(ctx, res, 0.5)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Entity), nil
}

func (s *Neo4jStore) OutgoingRelations(ctx context.Context, connectionID uuid.UUID, table string) ([]models.Relation, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(from:Table {name: $table})
			MATCH (from)-[r:RELATES_TO]->(to:Table)
			RETURN to.name AS toName, r.via_column AS viaColumn, r.to_column AS toColumn
		`, map[string]any{"connectionID": connectionID.String(), "table": table})
		if err != nil {
			return nil, err
		}
		var relations []models.Relation
		for res.Next(ctx) {
			rec := res.Record()
			toName, _ := rec.Get("toName")
			viaColumn, _ := rec.Get("viaColumn")
			toColumn, _ := rec.Get("toColumn")
			relations = append(relations, models.Relation{
				FromTable: table,
				ToTable:   toName.(string),
				ViaColumn: fmt.Sprintf("%v", viaColumn),
				ToColumn:  fmt.Sprintf("%v", toColumn),
			})
		}
		return relations, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Relation), nil
}

func (s *Neo4jStore) Communities(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Community, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Database {connection_id: $connectionID})-[:CONTAINS]->(t:Table)
			WHERE t.community IS NOT NULL
			WITH t.community AS community, collect(t.name) AS tables
			RETURN community, tables
			LIMIT $n
		`, map[string]any{"connectionID": connectionID.String(), "n": n})
		if err != nil {
			return nil, err
		}
		var communities []models.Community
		for res.Next(ctx) {
			rec := res.Record()
			community, _ := rec.Get("community")
			tables, _ := rec.Get("tables")
			communities = append(communities, models.Community{
				ID:     int(community.(int64)),
				Tables: toStringSlice(tables),
			})
		}
		return communities, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Community), nil
}

// RawQuery executes cypher read-only (AccessModeRead rejects write clauses
// at the routing layer) and flattens every record into a map keyed by
// column name.
func (s *Neo4jStore) RawQuery(ctx context.Context, _ uuid.UUID, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		for res.Next(ctx) {
			rec := res.Record()
			row := make(map[string]any, len(rec.Keys))
			for _, key := range rec.Keys {
				value, _ := rec.Get(key)
				row[key] = value
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "graph raw query failed", err)
	}
	return result.([]map[string]any), nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func collectEntities(ctx context.Context, res neo4j.ResultWithContext, relevance float64) ([]models.Entity, error) {
	var entities []models.Entity
	for res.Next(ctx) {
		rec := res.Record()
		name, _ := rec.Get("name")
		schemaName, _ := rec.Get("schemaName")
		description, _ := rec.Get("description")
		entities = append(entities, models.Entity{
			ID:          fmt.Sprintf("%v.%v", schemaName, name),
			Name:        fmt.Sprintf("%v", name),
			Schema:      fmt.Sprintf("%v", schemaName),
			Description: fmt.Sprintf("%v", description),
			Relevance:   relevance,
		})
	}
	return entities, res.Err()
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

func tableID(connID, schema, table string) string {
	return fmt.Sprintf("%s/%s.%s", connID, schema, table)
}

func columnID(tableID, column string) string {
	return fmt.Sprintf("%s#%s", tableID, column)
}

// parseReference parses a Column.References string of form
// "[schema.]table.column" into its components, defaulting schema to
// defaultSchema when only "table.column" is given. Strings with fewer than
// two dotted components are ignored per spec.md §4.3 step 4.
func parseReference(ref, defaultSchema string) (schema, table, column string, ok bool) {
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 2:
		return defaultSchema, parts[0], parts[1], true
	case 3:
		return parts[0], parts[1], parts[2], true
	default:
		return "", "", "", false
	}
}

func schemaOf(tables []models.Table, name string) string {
	for _, t := range tables {
		if t.Name == name {
			return t.Schema
		}
	}
	return ""
}

// assignSchemaCommunities is the fallback used when the graph backend has no
// native community detection available: Tables are grouped by schema
// namespace and assigned a stable integer id, sorted so the same schema set
// always yields the same ids across runs.
func assignSchemaCommunities(tables []models.Table) map[string]int {
	schemas := make(map[string]bool)
	for _, t := range tables {
		schemas[t.Schema] = true
	}
	names := make([]string, 0, len(schemas))
	for s := range schemas {
		names = append(names, s)
	}
	sort.Strings(names)

	idBySchema := make(map[string]int, len(names))
	for i, s := range names {
		idBySchema[s] = i
	}

	result := make(map[string]int, len(tables))
	for _, t := range tables {
		result[t.Name] = idBySchema[t.Schema]
	}
	return result
}
