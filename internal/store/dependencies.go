package store

import "github.com/swarmguard/taskmanager/internal/model"

// DependencyStore is the CRUD surface over Dependency entities.
type DependencyStore struct{ b *fileBackend[model.Dependency] }

func newDependencyStore(dataDir string, locks *KeyedMutex) (*DependencyStore, error) {
	b, err := newFileBackend(dataDir, "dependencies", locks, func(d model.Dependency) map[string]string {
		return map[string]string{"rationale": d.Rationale}
	})
	if err != nil {
		return nil, err
	}
	return &DependencyStore{b: b}, nil
}

func (s *DependencyStore) Create(d model.Dependency) error        { return s.b.Create(d.ID, d) }
func (s *DependencyStore) Get(id string) (model.Dependency, error) { return s.b.Get(id) }
func (s *DependencyStore) Update(d model.Dependency) error        { return s.b.Update(d.ID, d) }
func (s *DependencyStore) Delete(id string) error                 { return s.b.Delete(id) }
func (s *DependencyStore) Exists(id string) bool                  { return s.b.Exists(id) }
func (s *DependencyStore) List() ([]model.Dependency, error)      { return s.b.List() }

// ListByProject filters the full list by ProjectID.
func (s *DependencyStore) ListByProject(projectID string) ([]model.Dependency, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Dependency, 0)
	for _, d := range all {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

// ReferencingTask returns every dependency whose From or To equals
// taskID, used when a Task is deleted and its edges must go with it.
func (s *DependencyStore) ReferencingTask(taskID string) ([]model.Dependency, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Dependency, 0)
	for _, d := range all {
		if d.From == taskID || d.To == taskID {
			out = append(out, d)
		}
	}
	return out, nil
}
