package store

import "github.com/swarmguard/taskmanager/internal/model"

// EpicStore is the CRUD/search surface over Epic entities.
type EpicStore struct{ b *fileBackend[model.Epic] }

func newEpicStore(dataDir string, locks *KeyedMutex) (*EpicStore, error) {
	b, err := newFileBackend(dataDir, "epics", locks, func(e model.Epic) map[string]string {
		return map[string]string{"title": e.Title, "description": e.Description}
	})
	if err != nil {
		return nil, err
	}
	return &EpicStore{b: b}, nil
}

func (s *EpicStore) Create(e model.Epic) error    { return s.b.Create(e.ID, e) }
func (s *EpicStore) Get(id string) (model.Epic, error) { return s.b.Get(id) }
func (s *EpicStore) Update(e model.Epic) error    { return s.b.Update(e.ID, e) }
func (s *EpicStore) Delete(id string) error       { return s.b.Delete(id) }
func (s *EpicStore) Exists(id string) bool        { return s.b.Exists(id) }
func (s *EpicStore) List() ([]model.Epic, error)  { return s.b.List() }

// ListByProject filters the full list by ProjectID.
func (s *EpicStore) ListByProject(projectID string) ([]model.Epic, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Epic, 0)
	for _, e := range all {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetByPriority filters the full list by Priority.
func (s *EpicStore) GetByPriority(p model.Priority) ([]model.Epic, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Epic, 0)
	for _, e := range all {
		if e.Priority == p {
			out = append(out, e)
		}
	}
	return out, nil
}
