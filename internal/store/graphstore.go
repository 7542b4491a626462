package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/swarmguard/taskmanager/internal/graph"
	"github.com/swarmguard/taskmanager/internal/model"
)

// graphSnapshot is the on-disk cache written to
// dependency-graphs/<projectId>.json; it is rebuilt lazily from the
// Dependency entities whenever its ContentHash no longer matches a
// freshly computed one.
type graphSnapshot struct {
	ProjectID    string         `json:"projectId"`
	ContentHash  string         `json:"contentHash"`
	Tasks        []snapshotTask `json:"tasks"`
	Dependencies []model.Dependency `json:"dependencies"`
}

type snapshotTask struct {
	ID             string  `json:"id"`
	EstimatedHours float64 `json:"estimatedHours"`
}

// DependencyGraphStore persists a project's materialized adjacency so
// the in-memory graph.Graph survives restart without replaying every
// Dependency entity.
type DependencyGraphStore struct {
	dir   string
	tasks *TaskStore
	deps  *DependencyStore
}

func newDependencyGraphStore(dataDir string, tasks *TaskStore, deps *DependencyStore) (*DependencyGraphStore, error) {
	dir := filepath.Join(dataDir, "dependency-graphs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewError(model.KindSystem, "store.init", "create dependency-graphs directory", err)
	}
	return &DependencyGraphStore{dir: dir, tasks: tasks, deps: deps}, nil
}

func (s *DependencyGraphStore) path(projectID string) string {
	return filepath.Join(s.dir, projectID+".json")
}

// Load returns the in-memory graph for projectID, rebuilding it from
// Dependency/AtomicTask entities if the cache is stale or absent.
func (s *DependencyGraphStore) Load(projectID string) (*graph.Graph, error) {
	tasks, err := s.tasks.ListByProject(projectID)
	if err != nil {
		return nil, err
	}
	deps, err := s.deps.ListByProject(projectID)
	if err != nil {
		return nil, err
	}

	hash := contentHash(tasks, deps)
	if cached, ok := s.readCache(projectID); ok && cached.ContentHash == hash {
		return buildGraph(cached.Tasks, cached.Dependencies), nil
	}

	g := buildGraphFromEntities(tasks, deps)
	snap := graphSnapshot{ProjectID: projectID, ContentHash: hash, Dependencies: deps}
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, snapshotTask{ID: t.ID, EstimatedHours: t.EstimatedHours})
	}
	_ = s.writeCache(projectID, snap) // best-effort; graph is still correct if this fails
	return g, nil
}

// Invalidate removes a project's cached snapshot, forcing the next
// Load to rebuild from entities.
func (s *DependencyGraphStore) Invalidate(projectID string) error {
	err := os.Remove(s.path(projectID))
	if err != nil && !os.IsNotExist(err) {
		return model.NewError(model.KindSystem, "store.graph", "remove graph snapshot", err)
	}
	return nil
}

func (s *DependencyGraphStore) readCache(projectID string) (graphSnapshot, bool) {
	var snap graphSnapshot
	data, err := os.ReadFile(s.path(projectID))
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

func (s *DependencyGraphStore) writeCache(projectID string, snap graphSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(projectID) + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(projectID))
}

func buildGraphFromEntities(tasks []model.AtomicTask, deps []model.Dependency) *graph.Graph {
	var snapTasks []snapshotTask
	for _, t := range tasks {
		snapTasks = append(snapTasks, snapshotTask{ID: t.ID, EstimatedHours: t.EstimatedHours})
	}
	return buildGraph(snapTasks, deps)
}

func buildGraph(tasks []snapshotTask, deps []model.Dependency) *graph.Graph {
	g := graph.New()
	for _, t := range tasks {
		g.AddTask(t.ID, t.EstimatedHours)
	}
	for _, d := range deps {
		if !g.HasTask(d.From) || !g.HasTask(d.To) {
			continue
		}
		_ = g.AddDependency(d.From, d.To, graph.EdgeType(d.Type), d.Weight, d.Hard)
	}
	return g
}

// contentHash is a stable digest of the task/dependency set used to
// detect whether a cached snapshot is stale.
func contentHash(tasks []model.AtomicTask, deps []model.Dependency) string {
	ids := make([]string, 0, len(tasks)+len(deps))
	for _, t := range tasks {
		ids = append(ids, "t:"+t.ID)
	}
	for _, d := range deps {
		ids = append(ids, "d:"+d.ID+":"+d.From+">"+d.To)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
