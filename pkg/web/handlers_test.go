package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/eventbus"
	"github.com/dukex/conveyor/pkg/events"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/persistence"
	"github.com/dukex/conveyor/pkg/persistence/file"
	"github.com/dukex/conveyor/pkg/web"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) all() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence, *capturingPublisher) {
	t.Helper()

	store := file.NewPersistence("file://" + t.TempDir())
	publisher := &capturingPublisher{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(store, publisher, validate)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.SaveWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/dispatch", handlers.DispatchWorkflow)
	w.Get("/:id/runs", handlers.GetWorkflowRuns)

	app.Get("/runs/:runId", handlers.GetRun)
	app.Get("/health", handlers.HealthCheck)

	return app, store, publisher
}

const validDefinition = `{
	"name": "CI",
	"jobs": [
		{"id": "build", "steps": [{"run": "make build"}]},
		{"id": "test", "needs": ["build"], "steps": [{"run": "make test"}]}
	]
}`

const cyclicDefinition = `{
	"name": "CI",
	"jobs": [
		{"id": "a", "needs": ["b"], "steps": [{"run": "true"}]},
		{"id": "b", "needs": ["a"], "steps": [{"run": "true"}]}
	]
}`

func putWorkflow(t *testing.T, app *fiber.App, id, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPut, "/workflows/"+id, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestSaveAndGetWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := putWorkflow(t, app, "ci", validDefinition)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/ci", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
	assert.Equal(t, "ci", workflow.ID)
	assert.Equal(t, "CI", workflow.Name)
	assert.Len(t, workflow.Jobs, 2)
}

func TestSaveWorkflowRejectsCycle(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := putWorkflow(t, app, "ci", cyclicDefinition)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cycle")
}

func TestSaveWorkflowRejectsBadSchema(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := putWorkflow(t, app, "ci", `{"name": "CI"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	putWorkflow(t, app, "ci", validDefinition)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/ci", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/ci", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDispatchWorkflow(t *testing.T) {
	app, _, publisher := setupTestApp(t)

	putWorkflow(t, app, "ci", validDefinition)

	body := bytes.NewBufferString(`{"ref": "refs/heads/main", "inputs": {"version": "1.2.3"}}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows/ci/dispatch", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var dispatched web.DispatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dispatched))
	assert.Equal(t, "ci", dispatched.WorkflowID)
	assert.NotEmpty(t, dispatched.RunID)

	published := publisher.all()
	require.Len(t, published, 1)

	event, ok := published[0].(events.RunRequested)
	require.True(t, ok)
	assert.Equal(t, "dispatch", event.TriggerSource)
	assert.Equal(t, "refs/heads/main", event.Ref)
	assert.Equal(t, "1.2.3", event.Inputs["version"])
	assert.Equal(t, dispatched.RunID, event.RunID)
}

func TestDispatchUnknownWorkflow(t *testing.T) {
	app, _, publisher := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/workflows/missing/dispatch", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, publisher.all())
}

func TestGetRun(t *testing.T) {
	app, store, _ := setupTestApp(t)

	result := &models.RunResult{
		RunID:      "run-1",
		WorkflowID: "ci",
		Status:     models.RunStatusSucceeded,
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRunResult(context.Background(), result))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(t, models.RunStatusSucceeded, fetched.Status)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflowRuns(t *testing.T) {
	app, store, _ := setupTestApp(t)

	ctx := context.Background()
	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, store.SaveRunResult(ctx, &models.RunResult{
			RunID:      id,
			WorkflowID: "ci",
			Status:     models.RunStatusSucceeded,
			StartedAt:  time.Now().UTC(),
		}))
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/ci/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Equal(t, 2, listed.Count)
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
