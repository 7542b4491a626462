package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/atomic"
	"github.com/swarmguard/taskmanager/internal/lm"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/orchestration"
	orchstore "github.com/swarmguard/taskmanager/internal/orchestration/store"
	"github.com/swarmguard/taskmanager/internal/prompts"
	"github.com/swarmguard/taskmanager/internal/rdd"
	"github.com/swarmguard/taskmanager/internal/scheduler"
	"github.com/swarmguard/taskmanager/internal/store"
	"github.com/swarmguard/taskmanager/internal/transport"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	promptSvc, err := prompts.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = promptSvc.Close() })

	detector, err := atomic.New(context.Background(), lm.Disabled{}, promptSvc)
	require.NoError(t, err)

	rddEngine := rdd.New(detector, lm.Disabled{}, promptSvc, rdd.DefaultConfig)
	sched := scheduler.New(scheduler.Config{})

	orchDB, err := orchstore.Open(filepath.Join(t.TempDir(), "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = orchDB.Close() })

	orchEngine, err := orchestration.NewEngine(orchestration.Dependencies{Store: orchDB})
	require.NoError(t, err)

	issuer := transport.NewTokenIssuer("test-secret", 0)

	return New(st, detector, rddEngine, sched, orchEngine, issuer)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetProject(t *testing.T) {
	s := newTestServer(t)
	createRec := doJSON(t, s.Handler(), http.MethodPost, "/v1/projects", model.Project{Name: "demo"})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created model.Project
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	getRec := doJSON(t, s.Handler(), http.MethodGet, "/v1/projects/"+created.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetMissingProjectReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/projects/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateScheduleRejectsEmptyProject(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/projects/p1/schedule", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateTaskAndListTasks(t *testing.T) {
	s := newTestServer(t)
	createRec := doJSON(t, s.Handler(), http.MethodPost, "/v1/projects/p1/tasks", model.AtomicTask{
		Title:          "write a test",
		Type:           model.TaskTypeDevelopment,
		Priority:       model.PriorityMedium,
		EstimatedHours: 0.1,
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	listRec := doJSON(t, s.Handler(), http.MethodGet, "/v1/projects/p1/tasks", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	var tasks []model.AtomicTask
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
}

func TestRegisterAgentReturnsToken(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/agents", model.Agent{
		Name:               "agent-1",
		Capabilities:       []model.Capability{model.CapabilityTaskExecution},
		MaxConcurrentTasks: 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp registerAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Agent.ID)
	require.NotEmpty(t, resp.Token)
}

func TestCreateWorkflowAndAdvancePhase(t *testing.T) {
	s := newTestServer(t)
	createRec := doJSON(t, s.Handler(), http.MethodPost, "/v1/workflows", createWorkflowRequest{ProjectID: "p1"})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var wf model.Workflow
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &wf))

	phaseRec := doJSON(t, s.Handler(), http.MethodPost, "/v1/workflows/"+wf.ID+"/phase", updatePhaseRequest{Phase: model.PhaseDecomposition})
	require.Equal(t, http.StatusOK, phaseRec.Code)

	badRec := doJSON(t, s.Handler(), http.MethodPost, "/v1/workflows/"+wf.ID+"/phase", updatePhaseRequest{Phase: model.PhaseCompletion})
	require.Equal(t, http.StatusBadRequest, badRec.Code)
}
