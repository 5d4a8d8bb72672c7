package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
)

func newTestClient(baseURL string) *Client {
	c := New(baseURL, "test-token", zap.NewNop())
	c.retry.MaxRetries = 0
	return c
}

func TestStoreDocument_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp/tools/store-document" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["information"] != "hello" {
			t.Errorf("expected information %q, got %v", "hello", body["information"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document_id":"doc-1","collection":"general","stored":true}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result, err := c.StoreDocument(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("StoreDocument: %v", err)
	}
	if result.ClientType != ClientType {
		t.Errorf("expected client_type %q, got %q", ClientType, result.ClientType)
	}
	if !result.Stored || result.DocumentID != "doc-1" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestStoreDocument_HTTP500MapsToInternalKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.StoreDocument(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if apperrors.GetKind(err) != apperrors.KindInternal {
		t.Errorf("expected KindInternal for a 500, got %v", apperrors.GetKind(err))
	}
}

func TestFindRelevant_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp/tools/find-relevant" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"text":"a","score":0.9}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result, err := c.FindRelevant(context.Background(), "query", "", "", "", 5)
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if result.ClientType != ClientType {
		t.Errorf("expected client_type %q, got %q", ClientType, result.ClientType)
	}
	if len(result.Results) != 1 || result.Results[0].Text != "a" {
		t.Errorf("unexpected results: %+v", result.Results)
	}
}

func TestFindRelevant_HTTP404MapsToNotFoundKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.FindRelevant(context.Background(), "query", "", "", "", 5)
	if err == nil {
		t.Fatal("expected an error")
	}
	if apperrors.GetKind(err) != apperrors.KindNotFound {
		t.Errorf("expected KindNotFound for a 404, got %v", apperrors.GetKind(err))
	}
}

func TestActiveContexts_EncodesTypeFilterAsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp/active-contexts" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "personal" {
			t.Errorf("expected type=personal query param, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"contexts":[{"context_id":"ctx-2","active":true}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	result, err := c.ActiveContexts(context.Background(), "personal")
	if err != nil {
		t.Fatalf("ActiveContexts: %v", err)
	}
	if result.ClientType != ClientType {
		t.Errorf("expected client_type %q, got %q", ClientType, result.ClientType)
	}
	if len(result.Contexts) != 1 || result.Contexts[0].ContextID != "ctx-2" {
		t.Errorf("unexpected contexts: %+v", result.Contexts)
	}
}

func TestActiveContexts_NoFilterOmitsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query string, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"contexts":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.ActiveContexts(context.Background(), ""); err != nil {
		t.Fatalf("ActiveContexts: %v", err)
	}
}

func TestDo_InvalidBaseURL(t *testing.T) {
	c := newTestClient("://not-a-url")
	_, err := c.StoreDocument(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected an error for an invalid base URL")
	}
}

func TestDo_MalformedJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.StoreDocument(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestDo_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(url)
	_, err := c.StoreDocument(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected a connection error")
	}
}
