package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	agentID string
}

func (f fakeVerifier) Verify(raw string) (string, error) {
	if raw == "good-token" {
		return f.agentID, nil
	}
	return "", errInvalid
}

var errInvalid = &stringError{"invalid token"}

type stringError struct{ msg string }

func (e *stringError) Error() string { return e.msg }

type recordingTarget struct {
	mu         sync.Mutex
	heartbeats []string
}

func (r *recordingTarget) Heartbeat(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, agentID)
	return nil
}

func (r *recordingTarget) Progress(context.Context, string, int, []string) error { return nil }
func (r *recordingTarget) Complete(context.Context, string, bool) error          { return nil }

func TestHandlerRejectsInvalidToken(t *testing.T) {
	target := &recordingTarget{}
	h := NewHandler(fakeVerifier{agentID: "agent-1"}, target)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=bad-token"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}

func TestHandlerForwardsHeartbeatFrame(t *testing.T) {
	target := &recordingTarget{}
	h := NewHandler(fakeVerifier{agentID: "agent-1"}, target)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=good-token"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, _ := json.Marshal(signalFrame{Kind: "heartbeat"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return len(target.heartbeats) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
