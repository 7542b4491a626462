// Package nats is the NATS binding of the Agent Transport boundary:
// agents publish heartbeat/progress/complete signals on well-known
// subjects, and Binding subscribes and forwards verified signals into
// the orchestration engine. Trace-context propagation is ported from
// the teacher's libs/go/core/natsctx.Publish/Subscribe.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/taskmanager/internal/transport"
)

var tracePropagator = propagation.TraceContext{}

const (
	subjectHeartbeat = "taskmanager.agent.heartbeat"
	subjectProgress  = "taskmanager.execution.progress"
	subjectComplete  = "taskmanager.execution.complete"
)

// heartbeatMsg/progressMsg/completeMsg are the wire envelopes carried
// on each subject; Token is the agent's bearer token minted at
// registerAgent.
type heartbeatMsg struct {
	Token   string `json:"token"`
	AgentID string `json:"agent_id"`
}

type progressMsg struct {
	Token       string   `json:"token"`
	ExecutionID string   `json:"execution_id"`
	Progress    int      `json:"progress"`
	Logs        []string `json:"logs,omitempty"`
}

type completeMsg struct {
	Token       string `json:"token"`
	ExecutionID string `json:"execution_id"`
	Success     bool   `json:"success"`
}

// Verifier authenticates a raw bearer token and returns the agent id
// it was minted for.
type Verifier interface {
	Verify(raw string) (string, error)
}

// EmbeddedServer starts an in-process nats-server, used for
// standalone/dev mode so the binding doesn't require an external NATS
// deployment (spec.md domain-stack note on `nats-server/v2`).
func EmbeddedServer() (*natsserver.Server, error) {
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1, // random free port; ClientURL() reports the actual one
		NoSigs:    true,
		JetStream: false,
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("nats: start embedded server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(4 * time.Second) {
		return nil, fmt.Errorf("nats: embedded server did not become ready")
	}
	return srv, nil
}

// Binding subscribes to the agent-signal subjects and forwards
// verified payloads to the wrapped transport.Transport.
type Binding struct {
	conn     *natsgo.Conn
	verifier Verifier
	target   transport.Transport
	subs     []*natsgo.Subscription
}

// NewBinding connects to url and wires subscriptions once Start is
// called.
func NewBinding(url string, verifier Verifier, target transport.Transport) (*Binding, error) {
	conn, err := natsgo.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &Binding{conn: conn, verifier: verifier, target: target}, nil
}

// Start subscribes to all three agent-signal subjects.
func (b *Binding) Start() error {
	hb, err := subscribe(b.conn, subjectHeartbeat, b.handleHeartbeat)
	if err != nil {
		return err
	}
	pr, err := subscribe(b.conn, subjectProgress, b.handleProgress)
	if err != nil {
		return err
	}
	cp, err := subscribe(b.conn, subjectComplete, b.handleComplete)
	if err != nil {
		return err
	}
	b.subs = []*natsgo.Subscription{hb, pr, cp}
	return nil
}

// Stop unsubscribes and drains the connection.
func (b *Binding) Stop() error {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	return b.conn.Drain()
}

// Publish injects the current trace context into the message headers
// and publishes it, mirroring natsctx.Publish.
func Publish(ctx context.Context, nc *natsgo.Conn, subject string, data []byte) error {
	hdr := natsgo.Header{}
	tracePropagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return nc.PublishMsg(&natsgo.Msg{Subject: subject, Data: data, Header: hdr})
}

func subscribe(nc *natsgo.Conn, subject string, handler func(context.Context, *natsgo.Msg)) (*natsgo.Subscription, error) {
	return nc.Subscribe(subject, func(m *natsgo.Msg) {
		carrier := propagation.HeaderCarrier(m.Header)
		ctx := tracePropagator.Extract(context.Background(), carrier)
		tr := otel.Tracer("taskmanager-nats")
		ctx, span := tr.Start(ctx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
		handler(ctx, m)
	})
}

func (b *Binding) handleHeartbeat(ctx context.Context, m *natsgo.Msg) {
	var msg heartbeatMsg
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		slog.Warn("nats: malformed heartbeat payload", "error", err)
		return
	}
	agentID, err := b.verifier.Verify(msg.Token)
	if err != nil || agentID != msg.AgentID {
		slog.Warn("nats: heartbeat token rejected", "agent_id", msg.AgentID, "error", err)
		return
	}
	if err := b.target.Heartbeat(ctx, agentID); err != nil {
		slog.Warn("nats: heartbeat forward failed", "agent_id", agentID, "error", err)
	}
}

func (b *Binding) handleProgress(ctx context.Context, m *natsgo.Msg) {
	var msg progressMsg
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		slog.Warn("nats: malformed progress payload", "error", err)
		return
	}
	if _, err := b.verifier.Verify(msg.Token); err != nil {
		slog.Warn("nats: progress token rejected", "execution_id", msg.ExecutionID, "error", err)
		return
	}
	if err := b.target.Progress(ctx, msg.ExecutionID, msg.Progress, msg.Logs); err != nil {
		slog.Warn("nats: progress forward failed", "execution_id", msg.ExecutionID, "error", err)
	}
}

func (b *Binding) handleComplete(ctx context.Context, m *natsgo.Msg) {
	var msg completeMsg
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		slog.Warn("nats: malformed complete payload", "error", err)
		return
	}
	if _, err := b.verifier.Verify(msg.Token); err != nil {
		slog.Warn("nats: complete token rejected", "execution_id", msg.ExecutionID, "error", err)
		return
	}
	if err := b.target.Complete(ctx, msg.ExecutionID, msg.Success); err != nil {
		slog.Warn("nats: complete forward failed", "execution_id", msg.ExecutionID, "error", err)
	}
}
