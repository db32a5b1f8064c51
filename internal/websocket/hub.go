// Package websocket streams composition job updates to subscribers of
// /ws/jobs/:jobId.
package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/vidstitch/api/internal/model"
)

const (
	// keepAliveInterval is how often idle connections are pinged.
	keepAliveInterval = 30 * time.Second

	// sendBuffer is the per-client outbound queue. A client that cannot
	// drain it is disconnected rather than allowed to stall the hub.
	sendBuffer = 256
)

// SnapshotFunc resolves the current state frame for a job, so that
// clients subscribing mid-run (or after the job finished) immediately
// learn where it stands. Returning false sends nothing.
type SnapshotFunc func(jobID string) ([]byte, bool)

// Client is one subscriber connection, bound to a single job id.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// frame is a marshaled message addressed to one job's subscribers.
type frame struct {
	jobID   string
	payload []byte
}

// Hub fans job updates out to their subscribers. The subscriber table
// is owned by the Run loop; registration and broadcast traffic reach
// it only through channels.
type Hub struct {
	// Snapshot, when set, supplies the initial state frame delivered to
	// every new subscriber ahead of live updates. It is read by the Run
	// loop and must be assigned before Run starts.
	Snapshot SnapshotFunc

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan frame
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan frame, 256),
	}
}

// Run services the hub until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			log.Printf("Client subscribed to job %s", client.JobID)

			// First frame: the job's current state. Taking the snapshot
			// here, after the client joined the table, keeps it and the
			// live stream totally ordered; a terminal update is either
			// in the snapshot or in a later broadcast, never lost
			// between the two.
			if h.Snapshot != nil {
				if payload, ok := h.Snapshot(client.JobID); ok {
					select {
					case client.Send <- payload:
					default:
						client.Conn.Close()
					}
				}
			}

		case client := <-h.unregister:
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
					log.Printf("Client unsubscribed from job %s", client.JobID)
				}
			}

		case msg := <-h.broadcast:
			for client := range h.clients[msg.jobID] {
				select {
				case client.Send <- msg.payload:
				default:
					// Queue full. Sever the connection; the client is
					// removed through the normal unregister path, which
					// is the only place Send is ever closed.
					client.Conn.Close()
				}
			}
		}
	}
}

func (h *Hub) send(jobID string, msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %T for job %s: %v", msg, jobID, err)
		return
	}
	h.broadcast <- frame{jobID: jobID, payload: payload}
}

// BroadcastProgress pushes a progress update to the job's subscribers.
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus) {
	h.send(jobID, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Progress: progress,
		Status:   status,
	})
}

// BroadcastComplete pushes the final result to the job's subscribers.
func (h *Hub) BroadcastComplete(jobID string, result model.ComposeResult) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError pushes a failure notice to the job's subscribers.
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// HandleConnection subscribes a connection to a job's updates and
// services it until the peer goes away. Registration delivers the job's
// current state as the first frame, so a subscriber arriving mid-run or
// after the terminal event is not left waiting for a broadcast that
// already happened.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer: drains Send and keeps the connection alive.
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case payload, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader: consumes client traffic, answering application pings.
	for {
		_, payload, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on job %s: %v", jobID, err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}
