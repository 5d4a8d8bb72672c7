package llm

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithContext_MergesValues(t *testing.T) {
	ctx := context.Background()
	connectionID := uuid.New()

	ctx = WithContext(ctx, map[string]any{
		"connection_id": connectionID.String(),
	})

	ctx = WithContext(ctx, map[string]any{
		"request_id": "job-123",
	})

	c := GetContext(ctx)
	if c == nil {
		t.Fatal("expected context to exist")
	}
	if c["connection_id"] != connectionID.String() {
		t.Errorf("expected connection_id %s, got %v", connectionID, c["connection_id"])
	}
	if c["request_id"] != "job-123" {
		t.Errorf("expected request_id 'job-123', got %v", c["request_id"])
	}
}

func TestWithRequestContext_AddsFields(t *testing.T) {
	ctx := context.Background()
	connectionID := uuid.New()

	ctx = WithRequestContext(ctx, connectionID, "job-123")

	c := GetContext(ctx)
	if c == nil {
		t.Fatal("expected context to exist")
	}
	if c["connection_id"] != connectionID.String() {
		t.Errorf("expected connection_id %s, got %v", connectionID, c["connection_id"])
	}
	if c["request_id"] != "job-123" {
		t.Errorf("expected request_id 'job-123', got %v", c["request_id"])
	}
}

func TestWithRequestContext_OmitsEmptyRequestID(t *testing.T) {
	ctx := WithRequestContext(context.Background(), uuid.New(), "")

	c := GetContext(ctx)
	if _, ok := c["request_id"]; ok {
		t.Errorf("expected request_id to be omitted when empty")
	}
}

func TestGetContext_ReturnsNilForEmptyContext(t *testing.T) {
	ctx := context.Background()

	c := GetContext(ctx)

	if c != nil {
		t.Errorf("expected nil for empty context, got %v", c)
	}
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	ctx := WithContext(context.Background(), map[string]any{
		"key": "value",
	})

	c := GetContext(ctx)
	c["key"] = "modified"

	c2 := GetContext(ctx)
	if c2["key"] != "value" {
		t.Errorf("expected original value 'value', got %v", c2["key"])
	}
}
