// Package ws is the WebSocket binding of the Agent Transport
// boundary: a second concrete adapter for agents that cannot reach
// NATS, built on the teacher's Client/Hub connection-handling idiom
// (services/ws-hub Hub/Client) but reading inbound signal frames
// instead of broadcasting outbound state.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swarmguard/taskmanager/internal/transport"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Verifier authenticates a raw bearer token and returns the agent id
// it was minted for.
type Verifier interface {
	Verify(raw string) (string, error)
}

// signalFrame is the single inbound message shape every agent
// connection sends; Kind selects which transport.Transport method to
// invoke.
type signalFrame struct {
	Kind        string   `json:"kind"` // "heartbeat" | "progress" | "complete"
	AgentID     string   `json:"agent_id,omitempty"`
	ExecutionID string   `json:"execution_id,omitempty"`
	Progress    int      `json:"progress,omitempty"`
	Logs        []string `json:"logs,omitempty"`
	Success     bool     `json:"success,omitempty"`
}

// Handler upgrades incoming connections and forwards verified signal
// frames to the wrapped transport.Transport. One Handler serves every
// agent connection; each connection gets its own read loop.
type Handler struct {
	verifier Verifier
	target   transport.Transport

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHandler builds a ws.Handler over verifier and target.
func NewHandler(verifier Verifier, target transport.Transport) *Handler {
	return &Handler{verifier: verifier, target: target, clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP upgrades the request, authenticating the connection via
// its "token" query parameter (agents without a NATS client still
// authenticate the same bearer token minted at registerAgent).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	agentID, err := h.verifier.Verify(raw)
	if err != nil {
		http.Error(w, "invalid agent token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "agent_id", agentID, "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go h.readLoop(conn, agentID)
}

func (h *Handler) readLoop(conn *websocket.Conn, agentID string) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame signalFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("ws: malformed signal frame", "agent_id", agentID, "error", err)
			continue
		}
		h.dispatch(context.Background(), agentID, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, agentID string, frame signalFrame) {
	var err error
	switch frame.Kind {
	case "heartbeat":
		err = h.target.Heartbeat(ctx, agentID)
	case "progress":
		err = h.target.Progress(ctx, frame.ExecutionID, frame.Progress, frame.Logs)
	case "complete":
		err = h.target.Complete(ctx, frame.ExecutionID, frame.Success)
	default:
		err = fmt.Errorf("ws: unknown signal kind %q", frame.Kind)
	}
	if err != nil {
		slog.Warn("ws: signal forward failed", "agent_id", agentID, "kind", frame.Kind, "error", err)
	}
}

// ConnectionCount reports the number of live agent connections.
func (h *Handler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
