// Package prompts implements the Prompt Service: a read-through cache
// mapping a logical prompt key to a loaded template record, backed by
// YAML files under a configured directory and hot-reloaded via
// fsnotify, grounded on the policy-bundle reload pattern used
// elsewhere in the retrieval pack.
package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Record is one loaded prompt template.
type Record struct {
	SystemPrompt  string   `yaml:"system_prompt"`
	KeyPrompt     string   `yaml:"-"`
	Version       string   `yaml:"version"`
	LastUpdated   string   `yaml:"last_updated"`
	Compatibility []string `yaml:"compatibility"`

	raw map[string]any `yaml:"-"`
}

// builtinFallbacks are returned when a template file is missing or
// malformed, so decomposition/detection is never blocked by a broken
// file on disk.
var builtinFallbacks = map[string]string{
	"decomposition":       "Break the task into at most {{max_sub_tasks}} atomic sub-tasks.",
	"atomic_detection":    "Assess whether the task described is atomic; explain your reasoning.",
	"context_integration": "Incorporate the supplied project context into your assessment.",
	"agent_system":        "You are an autonomous software engineering agent.",
	"coordination":        "Coordinate with other agents to avoid duplicated work.",
	"escalation":          "Escalate this task to a human operator with full context.",
	"intent_recognition":  "Identify the user's underlying intent from the request.",
	"fallback":            "Proceed conservatively; treat the task as atomic if uncertain.",
}

// Service is the logical-key-to-template cache.
type Service struct {
	mu        sync.RWMutex
	dir       string
	cache     map[string]Record
	watcher   *fsnotify.Watcher
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// New constructs a Service reading templates from dir and starts
// watching it for changes. Callers should call Close on shutdown.
func New(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prompts: create directory: %w", err)
	}
	s := &Service{
		dir:    dir,
		cache:  make(map[string]Record),
		stopCh: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("prompts: fsnotify unavailable, hot-reload disabled", "error", err)
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("prompts: failed to watch directory, hot-reload disabled", "dir", dir, "error", err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watchLoop()
	return s, nil
}

// Close stops the filesystem watcher.
func (s *Service) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Service) watchLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key := keyFromPath(ev.Name)
			if key == "" {
				continue
			}
			if err := s.ReloadPrompt(key); err != nil {
				slog.Warn("prompts: hot-reload failed", "key", key, "error", err)
			} else {
				slog.Info("prompts: reloaded", "key", key)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("prompts: watcher error", "error", err)
		}
	}
}

func keyFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".yaml") && !strings.HasSuffix(base, ".yml") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
}

// GetPrompt returns the most specific prompt for key: the key-specific
// field if present, else system_prompt, else a built-in fallback.
func (s *Service) GetPrompt(ctx context.Context, key string) (string, error) {
	rec, err := s.load(key)
	if err != nil {
		if fallback, ok := builtinFallbacks[key]; ok {
			return fallback, nil
		}
		return "", err
	}
	if rec.KeyPrompt != "" {
		return rec.KeyPrompt, nil
	}
	if rec.SystemPrompt != "" {
		return rec.SystemPrompt, nil
	}
	if fallback, ok := builtinFallbacks[key]; ok {
		return fallback, nil
	}
	return "", fmt.Errorf("prompts: no prompt available for %q", key)
}

// GetPromptWithVariables performs {{name}} substitution over the
// result of GetPrompt.
func (s *Service) GetPromptWithVariables(ctx context.Context, key string, vars map[string]string) (string, error) {
	tmpl, err := s.GetPrompt(ctx, key)
	if err != nil {
		return "", err
	}
	for name, value := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+name+"}}", value)
	}
	return tmpl, nil
}

// ReloadPrompt drops key from the cache and re-reads it from disk
// immediately, returning any read or parse error.
func (s *Service) ReloadPrompt(key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	_, err := s.load(key)
	return err
}

// ClearCache empties the entire cache.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]Record)
}

// GetAvailablePromptTypes lists every <name>.yaml file under the
// configured directory, without loading them.
func (s *Service) GetAvailablePromptTypes() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("prompts: list directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k := keyFromPath(e.Name()); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// ValidateAllPrompts loads every available prompt and checks that
// system_prompt, version, and compatibility are all present, per
// spec.md §4.G.
func (s *Service) ValidateAllPrompts() map[string]error {
	keys, err := s.GetAvailablePromptTypes()
	if err != nil {
		return map[string]error{"*": err}
	}
	results := make(map[string]error)
	for _, k := range keys {
		rec, err := s.load(k)
		if err != nil {
			results[k] = err
			continue
		}
		if rec.SystemPrompt == "" {
			results[k] = fmt.Errorf("prompts: %s missing system_prompt", k)
			continue
		}
		if rec.Version == "" {
			results[k] = fmt.Errorf("prompts: %s missing version", k)
			continue
		}
		if len(rec.Compatibility) == 0 {
			results[k] = fmt.Errorf("prompts: %s missing compatibility", k)
			continue
		}
		results[k] = nil
	}
	return results
}

func (s *Service) load(key string) (Record, error) {
	s.mu.RLock()
	if rec, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return rec, nil
	}
	s.mu.RUnlock()

	path := filepath.Join(s.dir, key+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("prompts: read %s: %w", key, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("prompts: parse %s: %w", key, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("prompts: parse %s: %w", key, err)
	}
	if v, ok := raw[key+"_prompt"].(string); ok {
		rec.KeyPrompt = v
	}
	rec.raw = raw

	s.mu.Lock()
	s.cache[key] = rec
	s.mu.Unlock()
	return rec, nil
}
