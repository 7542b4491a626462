package lm

import (
	"context"
	"fmt"
)

// Disabled is the zero-configuration Capability every taskmanagerd
// process starts with: it always fails, so the Atomic Detector and
// RDD engine fall back to heuristics-only / degrade-to-atomic rather
// than silently producing empty LM output. Performing the actual HTTP
// call to a language model is outside this module's scope (spec.md
// Non-goals §1); operators wire a real Capability in at process
// construction.
type Disabled struct{}

func (Disabled) Invoke(_ context.Context, logicalTaskName, _, _ string, _ float64, _ Format) (string, error) {
	return "", fmt.Errorf("lm: no capability configured for %q", logicalTaskName)
}
