//go:build integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/engageflow/pkg/cmd"
	"github.com/dukex/engageflow/pkg/mocks"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/persistence/postgresql"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/services"
	"github.com/dukex/engageflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "engageflow_it",
				"POSTGRES_USER":     "engageflow",
				"POSTGRES_PASSWORD": "engageflow",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://engageflow:engageflow@%s:%s/engageflow_it?sslmode=disable", host, port.Port())
}

type integrationEnv struct {
	app     *fiber.App
	updater *mocks.MockEntityUpdater
}

func setupIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	p, err := postgresql.NewPersistence(ctx, slog.Default(), setupTestDB(t))
	require.NoError(t, err)

	updater := &mocks.MockEntityUpdater{}

	reg, err := cmd.NewRegistry(slog.Default(), "", protocol.Collaborators{EntityUpdater: updater})
	require.NoError(t, err)

	bus, err := cmd.NewEventBus(slog.Default(), "gochannel", "", "engageflow-it")
	require.NoError(t, err)

	worker, err := cmd.NewWorker(p, bus, reg, cmd.WorkerConfig{ResumeInterval: time.Hour}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, worker.Start(ctx))

	t.Cleanup(func() {
		cancel()
		worker.Stop(context.Background())
		_ = bus.Close()
		_ = p.Close(context.Background())
	})

	handlers := web.NewAPIHandlers(services.NewWorkflow(p, reg), services.NewValidator(), reg, bus)

	app := fiber.New()
	handlers.Register(app)

	return &integrationEnv{app: app, updater: updater}
}

func (e *integrationEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func (e *integrationEnv) runs(t *testing.T, workflowID string) []*models.ExecutionRun {
	t.Helper()

	var list web.RunListResponse

	status := e.do(t, http.MethodGet, "/workflows/"+workflowID+"/runs", nil, &list)
	require.Equal(t, http.StatusOK, status)

	return list.Runs
}

func TestIntegration_EventToCompletedRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := setupIntegrationEnv(t)

	lead := models.EntityRef{Kind: "lead", ID: "lead-42"}
	env.updater.On("AddTag", mock.Anything, lead, "hot").Return(nil)

	var created models.Workflow

	status := env.do(t, http.MethodPost, "/workflows", map[string]any{
		"name":         "Tag hot leads",
		"trigger_type": "lead_score_change",
		"is_active":    true,
		"steps": []map[string]any{
			{"id": "check", "type": "condition", "config": map[string]any{"field": "lead.score", "operator": "gt", "value": 80}},
			{"id": "tag", "type": "add_tag", "config": map[string]any{"tag": "hot"}},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	status = env.do(t, http.MethodPost, "/events", map[string]any{
		"type":    "lead_score_change",
		"payload": map[string]any{"lead": map[string]any{"id": "lead-42", "score": 91}},
	}, nil)
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		runs := env.runs(t, created.ID)

		return len(runs) == 1 && runs[0].Status == models.RunStatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	run := env.runs(t, created.ID)[0]
	assert.Equal(t, 2, run.StepsTotal)
	assert.Equal(t, 2, run.StepsExecuted)

	var fetched models.ExecutionRun

	status = env.do(t, http.MethodGet, "/runs/"+run.ID, nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, run.ID, fetched.ID)

	var stored models.Workflow

	status = env.do(t, http.MethodGet, "/workflows/"+created.ID, nil, &stored)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), stored.ExecutionCount)
	assert.NotNil(t, stored.LastExecutedAt)

	env.updater.AssertNumberOfCalls(t, "AddTag", 1)
}

func TestIntegration_ManualExecutionAndDeactivation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := setupIntegrationEnv(t)
	env.updater.On("SetStatus", mock.Anything, mock.Anything, "contacted").Return(nil)

	var created models.Workflow

	status := env.do(t, http.MethodPost, "/workflows", map[string]any{
		"name":         "Mark contacted",
		"trigger_type": "lead_created",
		"is_active":    true,
		"steps": []map[string]any{
			{"id": "status", "type": "update_status", "config": map[string]any{"target": "contacted"}},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	status = env.do(t, http.MethodPatch, "/workflows/"+created.ID+"/active", map[string]any{"is_active": false}, nil)
	require.Equal(t, http.StatusOK, status)

	status = env.do(t, http.MethodPost, "/events", map[string]any{
		"type":    "lead_created",
		"payload": map[string]any{"lead": map[string]any{"id": "lead-7"}},
	}, nil)
	require.Equal(t, http.StatusAccepted, status)

	status = env.do(t, http.MethodPost, "/workflows/"+created.ID+"/execute", map[string]any{
		"payload": map[string]any{"lead": map[string]any{"id": "lead-7"}},
	}, nil)
	require.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		runs := env.runs(t, created.ID)

		return len(runs) == 1 && runs[0].Status == models.RunStatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	run := env.runs(t, created.ID)[0]
	assert.Equal(t, models.TriggerEventManual, run.TriggerEvent)
}

func TestIntegration_ValidationErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := setupIntegrationEnv(t)

	status := env.do(t, http.MethodPost, "/workflows", map[string]any{
		"name":         "Broken",
		"trigger_type": "lead_created",
		"steps": []map[string]any{
			{"id": "x", "type": "teleport"},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = env.do(t, http.MethodGet, "/workflows/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
