package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	valid map[string]string
}

func (f fakeVerifier) Verify(raw string) (string, error) {
	if id, ok := f.valid[raw]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type recordingTarget struct {
	mu         sync.Mutex
	heartbeats []string
	progress   []int
	completed  []bool
}

func (r *recordingTarget) Heartbeat(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, agentID)
	return nil
}

func (r *recordingTarget) Progress(_ context.Context, _ string, progress int, _ []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
	return nil
}

func (r *recordingTarget) Complete(_ context.Context, _ string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, success)
	return nil
}

func TestBindingForwardsVerifiedHeartbeat(t *testing.T) {
	srv, err := EmbeddedServer()
	require.NoError(t, err)
	defer srv.Shutdown()

	verifier := fakeVerifier{valid: map[string]string{"good-token": "agent-1"}}
	target := &recordingTarget{}

	binding, err := NewBinding(srv.ClientURL(), verifier, target)
	require.NoError(t, err)
	require.NoError(t, binding.Start())
	defer binding.Stop()

	nc, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	payload, _ := json.Marshal(heartbeatMsg{Token: "good-token", AgentID: "agent-1"})
	require.NoError(t, Publish(context.Background(), nc, subjectHeartbeat, payload))

	badPayload, _ := json.Marshal(heartbeatMsg{Token: "bad-token", AgentID: "agent-2"})
	require.NoError(t, Publish(context.Background(), nc, subjectHeartbeat, badPayload))

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return len(target.heartbeats) == 1
	}, 2*time.Second, 10*time.Millisecond)

	target.mu.Lock()
	defer target.mu.Unlock()
	require.Equal(t, []string{"agent-1"}, target.heartbeats)
}
