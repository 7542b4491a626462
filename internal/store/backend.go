// Package store implements the durable, file-per-entity entity store:
// one YAML file per Project/Epic/AtomicTask/Dependency under
// <dataDir>/<kind>/<id>.yaml, with a sibling *-index.json holding the
// authoritative enumeration list. Writes are atomic with respect to
// reader failure via write-temp-then-rename; all mutating operations
// go through a per-resource-id KeyedMutex.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/swarmguard/taskmanager/internal/model"
)

// indexEntry is one row of a *-index.json summary list.
type indexEntry struct {
	ID      string            `json:"id"`
	Summary map[string]string `json:"summary"`
}

type indexFile struct {
	Entities    []indexEntry `json:"entities"`
	LastUpdated time.Time    `json:"lastUpdated"`
	Version     int          `json:"version"`
}

// summarizer extracts the index summary fields for an entity, used for
// search/listing without reading every file back.
type summarizer[T any] func(v T) map[string]string

// fileBackend is a generic file-per-entity + JSON index store for one
// entity kind (kind is the directory name, e.g. "projects").
type fileBackend[T any] struct {
	dir       string
	indexPath string
	kind      string
	locks     *KeyedMutex
	summarize summarizer[T]
}

func newFileBackend[T any](dataDir, kind string, locks *KeyedMutex, summarize summarizer[T]) (*fileBackend[T], error) {
	dir := filepath.Join(dataDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewError(model.KindSystem, "store.init", "create "+kind+" directory", err)
	}
	b := &fileBackend[T]{
		dir:       dir,
		indexPath: filepath.Join(dataDir, kind+"-index.json"),
		kind:      kind,
		locks:     locks,
		summarize: summarize,
	}
	if _, err := os.Stat(b.indexPath); os.IsNotExist(err) {
		if err := b.writeIndex(indexFile{Entities: []indexEntry{}, LastUpdated: time.Now(), Version: 1}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *fileBackend[T]) path(id string) string {
	return filepath.Join(b.dir, id+".yaml")
}

func (b *fileBackend[T]) lockKey(id string) string {
	singular := strings.TrimSuffix(b.kind, "s")
	return singular + ":" + id
}

// Create writes a new entity file; fails with KindAlreadyExists if id
// collides with an existing file.
func (b *fileBackend[T]) Create(id string, v T) error {
	unlock := b.locks.Lock(b.lockKey(id))
	defer unlock()

	if _, err := os.Stat(b.path(id)); err == nil {
		return model.NewError(model.KindAlreadyExists, "store.Create", fmt.Sprintf("%s %s already exists", b.kind, id), nil)
	}
	if err := b.writeEntity(id, v); err != nil {
		return err
	}
	return b.addToIndex(id, v)
}

// Get reads one entity by id; KindNotFound if missing, KindParsing if
// the file is present but malformed (spec's CorruptError).
func (b *fileBackend[T]) Get(id string) (T, error) {
	unlock := b.locks.Lock(b.lockKey(id))
	defer unlock()
	return b.readEntity(id)
}

func (b *fileBackend[T]) readEntity(id string) (T, error) {
	var v T
	data, err := os.ReadFile(b.path(id))
	if os.IsNotExist(err) {
		return v, model.NewError(model.KindNotFound, "store.Get", fmt.Sprintf("%s %s not found", b.kind, id), nil)
	}
	if err != nil {
		return v, model.NewError(model.KindSystem, "store.Get", "read "+b.kind+" file", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, model.NewError(model.KindParsing, "store.Get", fmt.Sprintf("%s %s is corrupt", b.kind, id), err)
	}
	return v, nil
}

// Update overwrites an existing entity; fails with KindNotFound if it
// doesn't already exist.
func (b *fileBackend[T]) Update(id string, v T) error {
	unlock := b.locks.Lock(b.lockKey(id))
	defer unlock()

	if _, err := os.Stat(b.path(id)); os.IsNotExist(err) {
		return model.NewError(model.KindNotFound, "store.Update", fmt.Sprintf("%s %s not found", b.kind, id), nil)
	}
	if err := b.writeEntity(id, v); err != nil {
		return err
	}
	return b.addToIndex(id, v)
}

// Delete removes an entity file and its index row. Callers needing
// cascade behavior (Project→Epic→Task→Dependency) orchestrate multiple
// Delete calls in that fixed order themselves.
func (b *fileBackend[T]) Delete(id string) error {
	unlock := b.locks.Lock(b.lockKey(id))
	defer unlock()

	if err := os.Remove(b.path(id)); err != nil {
		if os.IsNotExist(err) {
			return model.NewError(model.KindNotFound, "store.Delete", fmt.Sprintf("%s %s not found", b.kind, id), nil)
		}
		return model.NewError(model.KindSystem, "store.Delete", "remove "+b.kind+" file", err)
	}
	return b.removeFromIndex(id)
}

// Exists probes for an entity by id without reading its body.
func (b *fileBackend[T]) Exists(id string) bool {
	_, err := os.Stat(b.path(id))
	return err == nil
}

// List returns every entity of this kind, reading bodies from disk
// in the order recorded by the index.
func (b *fileBackend[T]) List() ([]T, error) {
	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(idx.Entities))
	for _, e := range idx.Entities {
		v, err := b.readEntity(e.ID)
		if err != nil {
			continue // index drift; skip rather than fail a whole listing
		}
		out = append(out, v)
	}
	return out, nil
}

// Search does a case-insensitive substring match against the index
// summary fields (name/title, description, tags), avoiding a full
// read-back of every entity.
func (b *fileBackend[T]) Search(query string) ([]T, error) {
	idx, err := b.readIndex()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var ids []string
	for _, e := range idx.Entities {
		for _, v := range e.Summary {
			if strings.Contains(strings.ToLower(v), q) {
				ids = append(ids, e.ID)
				break
			}
		}
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := b.readEntity(id)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *fileBackend[T]) writeEntity(id string, v T) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return model.NewError(model.KindSystem, "store.write", "marshal "+b.kind, err)
	}
	tmp := b.path(id) + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return model.NewError(model.KindSystem, "store.write", "write temp "+b.kind+" file", err)
	}
	if err := os.Rename(tmp, b.path(id)); err != nil {
		os.Remove(tmp)
		return model.NewError(model.KindSystem, "store.write", "rename "+b.kind+" file", err)
	}
	return nil
}

func (b *fileBackend[T]) readIndex() (indexFile, error) {
	var idx indexFile
	data, err := os.ReadFile(b.indexPath)
	if err != nil {
		return idx, model.NewError(model.KindSystem, "store.index", "read "+b.kind+" index", err)
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, model.NewError(model.KindParsing, "store.index", b.kind+" index is corrupt", err)
	}
	return idx, nil
}

func (b *fileBackend[T]) writeIndex(idx indexFile) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return model.NewError(model.KindSystem, "store.index", "marshal "+b.kind+" index", err)
	}
	tmp := b.indexPath + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return model.NewError(model.KindSystem, "store.index", "write temp "+b.kind+" index", err)
	}
	if err := os.Rename(tmp, b.indexPath); err != nil {
		os.Remove(tmp)
		return model.NewError(model.KindSystem, "store.index", "rename "+b.kind+" index", err)
	}
	return nil
}

func (b *fileBackend[T]) addToIndex(id string, v T) error {
	idx, err := b.readIndex()
	if err != nil {
		return err
	}
	summary := map[string]string{}
	if b.summarize != nil {
		summary = b.summarize(v)
	}
	replaced := false
	for i, e := range idx.Entities {
		if e.ID == id {
			idx.Entities[i] = indexEntry{ID: id, Summary: summary}
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Entities = append(idx.Entities, indexEntry{ID: id, Summary: summary})
	}
	idx.LastUpdated = time.Now()
	return b.writeIndex(idx)
}

func (b *fileBackend[T]) removeFromIndex(id string) error {
	idx, err := b.readIndex()
	if err != nil {
		return err
	}
	out := idx.Entities[:0]
	for _, e := range idx.Entities {
		if e.ID != id {
			out = append(out, e)
		}
	}
	idx.Entities = out
	idx.LastUpdated = time.Now()
	return b.writeIndex(idx)
}
