package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/agent"
)

type fakeAgentHandlerRepo struct {
	agents map[uuid.UUID]*models.Agent
}

func newFakeAgentHandlerRepo() *fakeAgentHandlerRepo {
	return &fakeAgentHandlerRepo{agents: map[uuid.UUID]*models.Agent{}}
}

func (f *fakeAgentHandlerRepo) Create(ctx context.Context, a *models.Agent) error {
	f.agents[a.ID] = a
	return nil
}
func (f *fakeAgentHandlerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}
func (f *fakeAgentHandlerRepo) List(ctx context.Context) ([]*models.Agent, error) {
	out := make([]*models.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}
func (f *fakeAgentHandlerRepo) Update(ctx context.Context, a *models.Agent) error {
	f.agents[a.ID] = a
	return nil
}
func (f *fakeAgentHandlerRepo) AssignConnection(ctx context.Context, agentID uuid.UUID, assignment models.ConnectionAssignment) error {
	a, ok := f.agents[agentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i, existing := range a.Connections {
		if existing.ConnectionID == assignment.ConnectionID {
			a.Connections[i] = assignment
			return nil
		}
	}
	a.Connections = append(a.Connections, assignment)
	return nil
}
func (f *fakeAgentHandlerRepo) UnassignConnection(ctx context.Context, agentID, connectionID uuid.UUID) error {
	a, ok := f.agents[agentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for i, existing := range a.Connections {
		if existing.ConnectionID == connectionID {
			a.Connections = append(a.Connections[:i], a.Connections[i+1:]...)
			return nil
		}
	}
	return nil
}
func (f *fakeAgentHandlerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.agents, id)
	return nil
}

func newTestAgentHandler() *AgentHandler {
	repo := newFakeAgentHandlerRepo()
	connRepo := newFakeConnRepo()
	svc := agent.New(repo, connRepo)
	return NewAgentHandler(svc, zaptest.NewLogger(nil))
}

func TestAgentHandler_CreateThenGet(t *testing.T) {
	h := newTestAgentHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.AgentCreate{Name: "support-bot", Model: "gpt-4o"})
	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Agent
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	getReq := httptest.NewRequest(http.MethodGet, "/agents/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
}

func TestAgentHandler_UpdatePromptsPreservesOtherFields(t *testing.T) {
	h := newTestAgentHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.AgentCreate{Name: "support-bot", Model: "gpt-4o"})
	createReq := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Agent
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	promptsBody, _ := json.Marshal(models.PromptSlots{System: "be terse"})
	updateReq := httptest.NewRequest(http.MethodPut, "/agents/"+created.ID.String()+"/prompts", bytes.NewReader(promptsBody))
	updateRec := httptest.NewRecorder()
	mux.ServeHTTP(updateRec, updateReq)
	if updateRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", updateRec.Code, updateRec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/agents/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)
	var fetched models.Agent
	_ = json.Unmarshal(getRec.Body.Bytes(), &fetched)
	if fetched.Name != "support-bot" {
		t.Errorf("expected name to survive prompt update, got %q", fetched.Name)
	}
	if fetched.Prompts.System != "be terse" {
		t.Errorf("expected updated system prompt, got %q", fetched.Prompts.System)
	}
}

func TestAgentHandler_AssignThenUnassignConnection(t *testing.T) {
	h := newTestAgentHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.AgentCreate{Name: "bot"})
	createReq := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Agent
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	connID := uuid.New()
	assignBody, _ := json.Marshal(map[string]any{"connection_id": connID.String(), "permissions": []string{"read"}})
	assignReq := httptest.NewRequest(http.MethodPost, "/agents/"+created.ID.String()+"/connections", bytes.NewReader(assignBody))
	assignRec := httptest.NewRecorder()
	mux.ServeHTTP(assignRec, assignReq)
	if assignRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", assignRec.Code, assignRec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/agents/"+created.ID.String()+"/connections", nil)
	listRec := httptest.NewRecorder()
	mux.ServeHTTP(listRec, listReq)
	var assignments []models.ConnectionAssignment
	_ = json.Unmarshal(listRec.Body.Bytes(), &assignments)
	if len(assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(assignments))
	}

	unassignReq := httptest.NewRequest(http.MethodDelete, "/agents/"+created.ID.String()+"/connections/"+connID.String(), nil)
	unassignRec := httptest.NewRecorder()
	mux.ServeHTTP(unassignRec, unassignReq)
	if unassignRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", unassignRec.Code)
	}
}

func TestAgentHandler_AssignConnectionRejectsMalformedID(t *testing.T) {
	h := newTestAgentHandler()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(models.AgentCreate{Name: "bot"})
	createReq := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	mux.ServeHTTP(createRec, createReq)
	var created models.Agent
	_ = json.Unmarshal(createRec.Body.Bytes(), &created)

	assignBody, _ := json.Marshal(map[string]any{"connection_id": "not-a-uuid"})
	assignReq := httptest.NewRequest(http.MethodPost, "/agents/"+created.ID.String()+"/connections", bytes.NewReader(assignBody))
	assignRec := httptest.NewRecorder()
	mux.ServeHTTP(assignRec, assignReq)
	if assignRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", assignRec.Code)
	}
}
