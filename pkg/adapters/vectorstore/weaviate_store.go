package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wvtmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
)

// WeaviateStore is the Store implementation backed by a real Weaviate
// instance, reached through the class-per-collection convention: each
// vectorstore collection name maps 1:1 onto a Weaviate class (capitalized,
// since Weaviate requires class names to start with an uppercase letter).
type WeaviateStore struct {
	client *weaviate.Client
	logger *zap.Logger
}

// NewWeaviateStore constructs a client against url (host[:port], no scheme)
// using apiKey when non-empty.
func NewWeaviateStore(url, apiKey string, logger *zap.Logger) (*WeaviateStore, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client, logger: logger}, nil
}

// className maps a vectorstore collection name onto the Weaviate class name
// convention, which requires an initial uppercase letter.
func className(collection string) string {
	if collection == "" {
		return "Document"
	}
	r := []rune(collection)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (s *WeaviateStore) EnsureCollection(ctx context.Context, collection string) error {
	class := className(collection)

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, "check weaviate class existence", err)
	}
	if exists {
		return nil
	}

	classObj := &wvtmodels.Class{
		Class:      class,
		Vectorizer: "none",
	}
	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, fmt.Sprintf("create weaviate class %q", class), err)
	}
	return nil
}

func (s *WeaviateStore) Upsert(ctx context.Context, collection, id, text string, vector []float32, metadata map[string]any) (string, error) {
	class := className(collection)

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	properties := map[string]any{
		"text":     text,
		"metadata": string(metaJSON),
	}
	for _, key := range []string{"owner_id", "area_id", "connection_id", "db_type", "name", "schema_hash", "doc_id"} {
		if v, ok := metadata[key]; ok {
			properties[key] = fmt.Sprintf("%v", v)
		}
	}

	creator := s.client.Data().Creator().
		WithClassName(class).
		WithProperties(properties).
		WithVector(vector)
	if id != "" {
		creator = creator.WithID(id)
	}

	obj, err := creator.Do(ctx)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstream, "weaviate upsert failed", err)
	}
	return obj.Object.ID.String(), nil
}

func (s *WeaviateStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]Document, error) {
	class := className(collection)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "metadata"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
		}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit)

	if where := buildWhereFilter(filter); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "weaviate search failed", err)
	}
	if len(result.Errors) > 0 {
		return nil, apperrors.New(apperrors.KindUpstream, fmt.Sprintf("weaviate graphql error: %v", result.Errors[0].Message))
	}

	return parseSearchResult(result, class)
}

func buildWhereFilter(filter map[string]any) *filters.WhereBuilder {
	if len(filter) == 0 {
		return nil
	}
	var operands []*filters.WhereBuilder
	for key, value := range filter {
		operands = append(operands, filters.Where().
			WithPath([]string{key}).
			WithOperator(filters.Equal).
			WithValueText(fmt.Sprintf("%v", value)))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

func parseSearchResult(result *wvtmodels.GraphQLResponse, class string) ([]Document, error) {
	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, ok := data[class].([]any)
	if !ok {
		return nil, nil
	}

	docs := make([]Document, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := Document{}
		if text, ok := obj["text"].(string); ok {
			doc.Text = text
		}
		if metaStr, ok := obj["metadata"].(string); ok {
			var meta map[string]any
			if err := json.Unmarshal([]byte(metaStr), &meta); err == nil {
				doc.Metadata = meta
			}
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				doc.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				doc.Score = certainty
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *WeaviateStore) Delete(ctx context.Context, collection, id string) error {
	class := className(collection)
	err := s.client.Data().Deleter().WithClassName(class).WithID(id).Do(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, "weaviate delete failed", err)
	}
	return nil
}
