// Package transport defines the Agent Transport boundary: the
// collaborator agents use to push heartbeat/progress/completion
// signals into the Orchestration Engine, and the JWT handshake both
// concrete bindings (NATS, WebSocket) use to authenticate a signal
// before handing it to the engine (spec.md §6, §9 Design Note).
package transport

import "context"

// Transport is the inbound half of the agent-facing boundary. The
// engine never imports a transport package; transports import the
// engine's inbound methods instead, keeping the dependency pointed
// one way.
type Transport interface {
	// Heartbeat records that agentID is still alive.
	Heartbeat(ctx context.Context, agentID string) error
	// Progress reports execution progress (0-100) and appends logs.
	Progress(ctx context.Context, executionID string, progress int, logs []string) error
	// Complete marks an execution finished, successfully or not.
	Complete(ctx context.Context, executionID string, success bool) error
}

// Engine is the subset of *orchestration.Engine a transport binding
// needs. Declared locally so transport does not import orchestration
// directly from this file — *orchestration.Engine satisfies this
// interface structurally, and is wrapped in an EngineAdapter before
// being handed to the nats/ and ws/ bindings, which take a Transport.
type Engine interface {
	Heartbeat(agentID string) error
	Progress(executionID string, progress int, logs []string) error
	Complete(executionID string, success bool) error
}

// EngineAdapter wraps an Engine (synchronous, no ctx) as a Transport
// (context-aware), the shape both concrete bindings push signals
// through after verifying the caller's JWT.
type EngineAdapter struct {
	Engine Engine
}

func (a EngineAdapter) Heartbeat(_ context.Context, agentID string) error {
	return a.Engine.Heartbeat(agentID)
}

func (a EngineAdapter) Progress(_ context.Context, executionID string, progress int, logs []string) error {
	return a.Engine.Progress(executionID, progress, logs)
}

func (a EngineAdapter) Complete(_ context.Context, executionID string, success bool) error {
	return a.Engine.Complete(executionID, success)
}
