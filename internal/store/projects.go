package store

import (
	"strings"

	"github.com/swarmguard/taskmanager/internal/model"
)

// ProjectStore is the CRUD/search surface over Project entities.
type ProjectStore struct{ b *fileBackend[model.Project] }

func newProjectStore(dataDir string, locks *KeyedMutex) (*ProjectStore, error) {
	b, err := newFileBackend(dataDir, "projects", locks, func(p model.Project) map[string]string {
		return map[string]string{
			"name":        p.Name,
			"description": p.Description,
			"tags":        strings.Join(p.Tags, ","),
		}
	})
	if err != nil {
		return nil, err
	}
	return &ProjectStore{b: b}, nil
}

func (s *ProjectStore) Create(p model.Project) error    { return s.b.Create(p.ID, p) }
func (s *ProjectStore) Get(id string) (model.Project, error) { return s.b.Get(id) }
func (s *ProjectStore) Update(p model.Project) error    { return s.b.Update(p.ID, p) }
func (s *ProjectStore) Delete(id string) error          { return s.b.Delete(id) }
func (s *ProjectStore) Exists(id string) bool           { return s.b.Exists(id) }
func (s *ProjectStore) List() ([]model.Project, error)  { return s.b.List() }

// Search performs a case-insensitive substring match against
// name/description/tags.
func (s *ProjectStore) Search(query string) ([]model.Project, error) { return s.b.Search(query) }

// GetByStatus filters the full list by Status.
func (s *ProjectStore) GetByStatus(status string) ([]model.Project, error) {
	all, err := s.b.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(all))
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}
