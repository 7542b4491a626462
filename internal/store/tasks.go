package store

import (
	"strings"

	"github.com/swarmguard/taskmanager/internal/model"
)

// TaskStore is the CRUD/search surface over AtomicTask entities.
type TaskStore struct{ b *fileBackend[model.AtomicTask] }

func newTaskStore(dataDir string, locks *KeyedMutex) (*TaskStore, error) {
	b, err := newFileBackend(dataDir, "tasks", locks, func(t model.AtomicTask) map[string]string {
		return map[string]string{
			"title":       t.Title,
			"description": t.Description,
			"tags":        strings.Join(t.Tags, ","),
		}
	})
	if err != nil {
		return nil, err
	}
	return &TaskStore{b: b}, nil
}

func (s *TaskStore) Create(t model.AtomicTask) error        { return s.b.Create(t.ID, t) }
func (s *TaskStore) Get(id string) (model.AtomicTask, error) { return s.b.Get(id) }
func (s *TaskStore) Update(t model.AtomicTask) error         { return s.b.Update(t.ID, t) }
func (s *TaskStore) Delete(id string) error                 { return s.b.Delete(id) }
func (s *TaskStore) Exists(id string) bool                   { return s.b.Exists(id) }
func (s *TaskStore) List() ([]model.AtomicTask, error)       { return s.b.List() }

// Search performs a case-insensitive substring match against
// title/description/tags, optionally scoped to projectID.
func (s *TaskStore) Search(query string, projectID string) ([]model.AtomicTask, error) {
	matches, err := s.b.Search(query)
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		return matches, nil
	}
	out := make([]model.AtomicTask, 0, len(matches))
	for _, t := range matches {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListByProject filters the full list by ProjectID.
func (s *TaskStore) ListByProject(projectID string) ([]model.AtomicTask, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.AtomicTask, 0)
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetByStatus filters the full list by Status.
func (s *TaskStore) GetByStatus(status model.TaskStatus) ([]model.AtomicTask, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.AtomicTask, 0)
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetByPriority filters the full list by Priority.
func (s *TaskStore) GetByPriority(p model.Priority) ([]model.AtomicTask, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.AtomicTask, 0)
	for _, t := range all {
		if t.Priority == p {
			out = append(out, t)
		}
	}
	return out, nil
}
