package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is one live connection. CustomerID or AgentID is set after
// the connection identifies itself (startChat for customers, a verified
// token for agents); SessionID tracks the chat session a customer
// connection belongs to.
type WSClient struct {
	Conn       *websocket.Conn
	Send       chan *Envelope
	ID         string
	CustomerID string
	AgentID    string
	AgentName  string
	SessionID  string
	done       chan struct{}
	mu         sync.Mutex
	isClosed   bool
}

func newClient(conn *websocket.Conn, id string) *WSClient {
	return &WSClient{
		Conn: conn,
		Send: make(chan *Envelope, 16),
		ID:   id,
		done: make(chan struct{}),
	}
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Ping error for client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

func (cl *WSClient) writeMessages() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case envelope, ok := <-cl.Send:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteJSON(envelope)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Error sending message to client %s: %v", cl.ID, err)
				return
			}
		}
	}
}
