package store

import "github.com/swarmguard/taskmanager/internal/model"

// Store aggregates the per-entity sub-stores and the dependency graph
// cache over a single dataDirectory. Construction is idempotent: it
// only ensures directories and empty indexes exist.
type Store struct {
	Projects     *ProjectStore
	Epics        *EpicStore
	Tasks        *TaskStore
	Dependencies *DependencyStore
	Graphs       *DependencyGraphStore

	locks *KeyedMutex
}

// Open initializes (or re-opens) a Store rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	locks := NewKeyedMutex()

	projects, err := newProjectStore(dataDir, locks)
	if err != nil {
		return nil, err
	}
	epics, err := newEpicStore(dataDir, locks)
	if err != nil {
		return nil, err
	}
	tasks, err := newTaskStore(dataDir, locks)
	if err != nil {
		return nil, err
	}
	deps, err := newDependencyStore(dataDir, locks)
	if err != nil {
		return nil, err
	}
	graphs, err := newDependencyGraphStore(dataDir, tasks, deps)
	if err != nil {
		return nil, err
	}

	return &Store{
		Projects:     projects,
		Epics:        epics,
		Tasks:        tasks,
		Dependencies: deps,
		Graphs:       graphs,
		locks:        locks,
	}, nil
}

// DeleteProjectCascade deletes Project projectID and everything beneath
// it — Epics, Tasks, Dependencies, and the cached DependencyGraph — in
// that fixed order, matching spec §4.A's cascade contract and the
// project→epic→task→dependency lock-acquisition order spec §5 requires
// to prevent deadlock across concurrent cascades.
func (s *Store) DeleteProjectCascade(projectID string) error {
	if !s.Projects.Exists(projectID) {
		return model.NewError(model.KindNotFound, "store.DeleteProjectCascade", "project "+projectID+" not found", nil)
	}

	epics, err := s.Epics.ListByProject(projectID)
	if err != nil {
		return err
	}
	tasks, err := s.Tasks.ListByProject(projectID)
	if err != nil {
		return err
	}
	deps, err := s.Dependencies.ListByProject(projectID)
	if err != nil {
		return err
	}

	if err := s.Projects.Delete(projectID); err != nil {
		return err
	}
	for _, e := range epics {
		if err := s.Epics.Delete(e.ID); err != nil && model.ErrorKind(err) != model.KindNotFound {
			return err
		}
	}
	for _, t := range tasks {
		if err := s.Tasks.Delete(t.ID); err != nil && model.ErrorKind(err) != model.KindNotFound {
			return err
		}
	}
	for _, d := range deps {
		if err := s.Dependencies.Delete(d.ID); err != nil && model.ErrorKind(err) != model.KindNotFound {
			return err
		}
	}
	return s.Graphs.Invalidate(projectID)
}

// DeleteTaskCascade deletes a single Task and every Dependency edge
// that references it, per spec §4.A ("deleting a Task deletes all
// edges referencing it").
func (s *Store) DeleteTaskCascade(taskID string) error {
	refs, err := s.Dependencies.ReferencingTask(taskID)
	if err != nil {
		return err
	}
	if err := s.Tasks.Delete(taskID); err != nil {
		return err
	}
	for _, d := range refs {
		if err := s.Dependencies.Delete(d.ID); err != nil && model.ErrorKind(err) != model.KindNotFound {
			return err
		}
	}
	return nil
}
