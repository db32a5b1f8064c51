package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidstitch/api/internal/model"
)

// statusBoard stands in for the orchestrator's status lookup. Tests
// flip a job's frame before broadcasting, in the same order the worker
// commits state to the store before it notifies the hub.
type statusBoard struct {
	mu     sync.Mutex
	frames map[string][]byte
}

func newStatusBoard() *statusBoard {
	return &statusBoard{frames: make(map[string][]byte)}
}

func (b *statusBoard) set(t *testing.T, jobID string, msg interface{}) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	b.mu.Lock()
	b.frames[jobID] = payload
	b.mu.Unlock()
}

func (b *statusBoard) snapshot(jobID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, ok := b.frames[jobID]
	return payload, ok
}

func newRunningHub(board *statusBoard) *Hub {
	hub := NewHub()
	if board != nil {
		hub.Snapshot = board.snapshot
	}
	go hub.Run()
	return hub
}

func newTestClient(jobID string) *Client {
	return &Client{JobID: jobID, Send: make(chan []byte, sendBuffer)}
}

func recvFrame(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload, ok := <-client.Send:
		require.True(t, ok, "send queue closed before a frame arrived")
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func expectNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.Send:
		t.Fatalf("unexpected frame %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func frameType(t *testing.T, payload []byte) string {
	t.Helper()
	var msg model.WSMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg.Type
}

func progressFrame(jobID string, progress int) model.WSProgressMessage {
	return model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Progress: progress,
		Status:   model.JobStatusProcessing,
	}
}

func completeFrame(jobID string) model.WSCompleteMessage {
	return model.WSCompleteMessage{
		Type:  model.WSMessageTypeComplete,
		JobID: jobID,
		Result: model.ComposeResult{
			JobID:     jobID,
			OutputURL: model.ComposeDownloadURL(jobID),
		},
	}
}

func TestSubscriberGetsSnapshotThenLiveUpdates(t *testing.T) {
	board := newStatusBoard()
	board.set(t, "j1", progressFrame("j1", 40))
	hub := newRunningHub(board)

	client := newTestClient("j1")
	hub.register <- client

	var first model.WSProgressMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, client), &first))
	assert.Equal(t, model.WSMessageTypeProgress, first.Type)
	assert.Equal(t, "j1", first.JobID)
	assert.Equal(t, 40, first.Progress)
	assert.Equal(t, model.JobStatusProcessing, first.Status)

	hub.BroadcastProgress("j1", 60, model.JobStatusProcessing)

	var second model.WSProgressMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, client), &second))
	assert.Equal(t, 60, second.Progress)
}

func TestLateSubscriberSeesCompletedJob(t *testing.T) {
	board := newStatusBoard()
	board.set(t, "j1", progressFrame("j1", 40))
	hub := newRunningHub(board)

	observer := newTestClient("j1")
	hub.register <- observer
	assert.Equal(t, model.WSMessageTypeProgress, frameType(t, recvFrame(t, observer)))

	// Commit the terminal state, then broadcast, in the worker's order.
	board.set(t, "j1", completeFrame("j1"))
	hub.BroadcastComplete("j1", model.ComposeResult{
		JobID:     "j1",
		OutputURL: model.ComposeDownloadURL("j1"),
	})

	// Once the observer has the terminal frame, the broadcast has been
	// fully delivered; anyone subscribing now missed it.
	assert.Equal(t, model.WSMessageTypeComplete, frameType(t, recvFrame(t, observer)))

	late := newTestClient("j1")
	hub.register <- late

	var msg model.WSCompleteMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, late), &msg))
	assert.Equal(t, model.WSMessageTypeComplete, msg.Type)
	assert.Equal(t, "j1", msg.JobID)
	assert.Equal(t, model.ComposeDownloadURL("j1"), msg.Result.OutputURL)
}

func TestLateSubscriberSeesFailedJob(t *testing.T) {
	board := newStatusBoard()
	board.set(t, "j1", model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: "j1",
		Error: model.WSError{
			Code:    model.WSErrorCodeEngineFailure,
			Message: "engine exit code 1",
		},
	})
	hub := newRunningHub(board)

	client := newTestClient("j1")
	hub.register <- client

	var msg model.WSErrorMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, client), &msg))
	assert.Equal(t, model.WSMessageTypeError, msg.Type)
	assert.Equal(t, model.WSErrorCodeEngineFailure, msg.Error.Code)
	assert.Equal(t, "engine exit code 1", msg.Error.Message)
}

func TestSnapshotSkippedForUnknownJob(t *testing.T) {
	hub := newRunningHub(newStatusBoard())

	client := newTestClient("ghost")
	hub.register <- client
	expectNoFrame(t, client)

	hub.BroadcastProgress("ghost", 10, model.JobStatusProcessing)
	assert.Equal(t, model.WSMessageTypeProgress, frameType(t, recvFrame(t, client)))
}

func TestHubWithoutSnapshotHook(t *testing.T) {
	hub := newRunningHub(nil)

	client := newTestClient("j1")
	hub.register <- client
	expectNoFrame(t, client)

	hub.BroadcastProgress("j1", 10, model.JobStatusProcessing)
	assert.Equal(t, model.WSMessageTypeProgress, frameType(t, recvFrame(t, client)))
}

func TestBroadcastReachesOnlySubscribedJob(t *testing.T) {
	hub := newRunningHub(nil)

	clientA := newTestClient("job-a")
	clientB := newTestClient("job-b")
	hub.register <- clientA
	hub.register <- clientB

	hub.BroadcastProgress("job-a", 30, model.JobStatusProcessing)

	var msg model.WSProgressMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, clientA), &msg))
	assert.Equal(t, "job-a", msg.JobID)
	expectNoFrame(t, clientB)
}

func TestUnregisterClosesSendQueue(t *testing.T) {
	hub := newRunningHub(nil)

	client := newTestClient("j1")
	hub.register <- client
	hub.unregister <- client

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok, "send queue must be closed on unregister")
	case <-time.After(2 * time.Second):
		t.Fatal("send queue never closed")
	}
}
