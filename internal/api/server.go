// Package api is the HTTP surface of taskmanagerd: a gorilla/mux
// router over the project/task store, the RDD engine, the scheduler,
// and the orchestration engine, in the style of the teacher pack's
// mux.Router-backed Server (ODSapper-CLIAIMONITOR's internal/server).
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/swarmguard/taskmanager/internal/atomic"
	"github.com/swarmguard/taskmanager/internal/graph"
	"github.com/swarmguard/taskmanager/internal/model"
	"github.com/swarmguard/taskmanager/internal/orchestration"
	"github.com/swarmguard/taskmanager/internal/rdd"
	"github.com/swarmguard/taskmanager/internal/scheduler"
	"github.com/swarmguard/taskmanager/internal/store"
	"github.com/swarmguard/taskmanager/internal/transport"
)

// Server wires the HTTP surface over the task manager's core engines.
type Server struct {
	router *mux.Router

	store    *store.Store
	detector *atomic.Detector
	rdd      *rdd.Engine
	sched    *scheduler.Scheduler
	orch     *orchestration.Engine
	issuer   *transport.TokenIssuer
}

// New builds a Server and registers every route.
func New(st *store.Store, detector *atomic.Detector, rddEngine *rdd.Engine, sched *scheduler.Scheduler, orch *orchestration.Engine, issuer *transport.TokenIssuer) *Server {
	s := &Server{router: mux.NewRouter(), store: st, detector: detector, rdd: rddEngine, sched: sched, orch: orch, issuer: issuer}
	s.routes()
	return s
}

// Handler returns the root http.Handler, ready to hand to http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/v1/projects", s.handleCreateProject).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/projects/{id}", s.handleGetProject).Methods(http.MethodGet)

	s.router.HandleFunc("/v1/projects/{id}/tasks", s.handleCreateTask).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/projects/{id}/tasks", s.handleListTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/projects/{id}/tasks/{taskId}/decompose", s.handleDecompose).Methods(http.MethodPost)

	s.router.HandleFunc("/v1/projects/{id}/schedule", s.handleGenerateSchedule).Methods(http.MethodPost)

	s.router.HandleFunc("/v1/agents", s.handleRegisterAgent).Methods(http.MethodPost)

	s.router.HandleFunc("/v1/workflows", s.handleCreateWorkflow).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/workflows/{id}/phase", s.handleUpdateWorkflowPhase).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/metrics/snapshot", s.handleMetricsSnapshot).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch model.ErrorKind(err) {
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindValidation, model.KindCycle:
		status = http.StatusBadRequest
	case model.KindAlreadyExists:
		status = http.StatusConflict
	case model.KindResource:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed project body"})
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	if p.Status == "" {
		p.Status = "active"
	}
	if err := s.store.Projects.Create(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.store.Projects.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	var t model.AtomicTask
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed task body"})
		return
	}
	t.ProjectID = projectID
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	if err := s.store.Tasks.Create(t); err != nil {
		writeError(w, err)
		return
	}
	_ = s.store.Graphs.Invalidate(projectID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	tasks, err := s.store.Tasks.ListByProject(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.store.Tasks.Get(vars["taskId"])
	if err != nil {
		writeError(w, err)
		return
	}

	var pc atomic.ProjectContext
	_ = json.NewDecoder(r.Body).Decode(&pc)
	pc.ProjectID = vars["id"]

	result := s.rdd.Decompose(r.Context(), task, pc, 0)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	for _, sub := range result.SubTasks {
		sub.CreatedAt, sub.UpdatedAt = time.Now(), time.Now()
		if sub.Status == "" {
			sub.Status = model.TaskStatusPending
		}
		if err := s.store.Tasks.Create(sub); err != nil {
			slog.Warn("api: failed to persist decomposed sub-task", "task_id", sub.ID, "error", err)
		}
	}
	_ = s.store.Graphs.Invalidate(vars["id"])
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	tasks, err := s.store.Tasks.ListByProject(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := s.store.Graphs.Load(projectID)
	if err != nil {
		g = graph.New()
	}
	schedule, err := s.sched.GenerateSchedule(r.Context(), tasks, g, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

type registerAgentRequest struct {
	model.Agent
}

type registerAgentResponse struct {
	Agent model.Agent `json:"agent"`
	Token string      `json:"token"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed agent body"})
		return
	}
	agent, err := s.orch.RegisterAgent(req.Agent)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := registerAgentResponse{Agent: agent}
	if s.issuer != nil {
		tok, err := s.issuer.Mint(agent.ID)
		if err != nil {
			slog.Warn("api: failed to mint agent token", "agent_id", agent.ID, "error", err)
		} else {
			resp.Token = tok
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

type createWorkflowRequest struct {
	ProjectID string                `json:"projectId"`
	SessionID string                `json:"sessionId"`
	TaskIDs   []string              `json:"taskIds"`
	Metadata  model.WorkflowMetadata `json:"metadata"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed workflow body"})
		return
	}
	wf := s.orch.CreateWorkflow(req.ProjectID, req.SessionID, req.TaskIDs, req.Metadata)
	writeJSON(w, http.StatusCreated, wf)
}

type updatePhaseRequest struct {
	Phase model.WorkflowPhase `json:"phase"`
}

func (s *Server) handleUpdateWorkflowPhase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updatePhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed phase body"})
		return
	}
	if err := s.orch.UpdateWorkflowPhase(id, req.Phase); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

// RunHTTP starts an http.Server bound to addr and blocks until ctx is
// cancelled, then shuts down gracefully — the teacher's orchestrator
// main.go shutdown shape, factored out so cmd/taskmanagerd can reuse
// it verbatim.
func RunHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
