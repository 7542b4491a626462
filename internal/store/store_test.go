package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmguard/taskmanager/internal/model"
)

func TestProjectRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := model.Project{ID: "proj-1", Name: "Demo", Description: "A demo project", Status: "active", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.Projects.Create(p))

	got, err := s.Projects.Get("proj-1")
	require.NoError(t, err)
	require.Equal(t, p.Name, got.Name)
	require.Equal(t, p.Description, got.Description)
}

func TestCreateDuplicateFailsAlreadyExists(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := model.Project{ID: "dup", Name: "One"}
	require.NoError(t, s.Projects.Create(p))
	err = s.Projects.Create(p)
	require.Error(t, err)
	require.Equal(t, model.KindAlreadyExists, model.ErrorKind(err))
}

func TestGetMissingIsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Projects.Get("missing")
	require.Error(t, err)
	require.Equal(t, model.KindNotFound, model.ErrorKind(err))
}

func TestSearchTasksMatchesTitleDescriptionTags(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t1", ProjectID: "p1", Title: "Implement login flow", Tags: []string{"auth"}}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t2", ProjectID: "p1", Title: "Write docs", Description: "covers login screens"}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t3", ProjectID: "p1", Title: "Unrelated"}))

	results, err := s.Tasks.Search("login", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestDeleteProjectCascadeRemovesEverything(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Projects.Create(model.Project{ID: "p1", Name: "P"}))
	require.NoError(t, s.Epics.Create(model.Epic{ID: "e1", ProjectID: "p1", Title: "Epic"}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t1", ProjectID: "p1", EpicID: "e1", Title: "T1"}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t2", ProjectID: "p1", EpicID: "e1", Title: "T2"}))
	require.NoError(t, s.Dependencies.Create(model.Dependency{ID: "d1", ProjectID: "p1", From: "t1", To: "t2"}))

	require.NoError(t, s.DeleteProjectCascade("p1"))

	require.False(t, s.Projects.Exists("p1"))
	require.False(t, s.Epics.Exists("e1"))
	require.False(t, s.Tasks.Exists("t1"))
	require.False(t, s.Tasks.Exists("t2"))
	require.False(t, s.Dependencies.Exists("d1"))

	epics, err := s.Epics.List()
	require.NoError(t, err)
	require.Empty(t, epics)
}

func TestDeleteTaskCascadeRemovesReferencingEdges(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t1", ProjectID: "p1", Title: "T1"}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "t2", ProjectID: "p1", Title: "T2"}))
	require.NoError(t, s.Dependencies.Create(model.Dependency{ID: "d1", ProjectID: "p1", From: "t1", To: "t2"}))

	require.NoError(t, s.DeleteTaskCascade("t1"))
	require.False(t, s.Dependencies.Exists("d1"))
	require.True(t, s.Tasks.Exists("t2"))
}

func TestDependencyGraphStoreBuildsFromEntities(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "a", ProjectID: "p1", EstimatedHours: 0.2}))
	require.NoError(t, s.Tasks.Create(model.AtomicTask{ID: "b", ProjectID: "p1", EstimatedHours: 0.1}))
	require.NoError(t, s.Dependencies.Create(model.Dependency{ID: "d1", ProjectID: "p1", From: "a", To: "b", Hard: true}))

	g, err := s.Graphs.Load("p1")
	require.NoError(t, err)
	layers := g.TopologicalLayers()
	require.Equal(t, [][]string{{"a"}, {"b"}}, layers)

	// second load should hit the cache path without error
	g2, err := s.Graphs.Load("p1")
	require.NoError(t, err)
	require.Equal(t, 2, g2.NodeCount())
}
