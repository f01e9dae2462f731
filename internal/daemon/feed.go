package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedReadLimit  = 512
	feedSendBuffer = 32
)

// FeedEvent is the message pushed to live feed subscribers.
type FeedEvent struct {
	Type       string             `json:"type"`
	Evaluation history.Evaluation `json:"evaluation"`
}

// Feed broadcasts evaluations to websocket subscribers. It implements
// workflow.Observer. Subscribers that cannot keep up are disconnected
// instead of slowing the scheduler down.
type Feed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewFeed returns a feed with no subscribers.
func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		logger: logging.NewComponentLogger(logger, "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Observe queues ev for every subscriber.
func (f *Feed) Observe(_ context.Context, ev history.Evaluation) error {
	payload, err := json.Marshal(FeedEvent{Type: "evaluation", Evaluation: ev})
	if err != nil {
		return err
	}
	f.broadcast(payload)
	return nil
}

func (f *Feed) broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for client := range f.clients {
		select {
		case client.send <- payload:
		default:
			f.logger.Warn("feed subscriber too slow; disconnecting",
				logging.String(logging.FieldEventType, "feed_client_dropped"),
				logging.String("remote", client.conn.RemoteAddr().String()),
			)
			f.removeLocked(client)
		}
	}
}

// Clients returns the number of connected subscribers.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// CloseAll disconnects every subscriber.
func (f *Feed) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for client := range f.clients {
		f.removeLocked(client)
	}
}

func (f *Feed) removeLocked(client *feedClient) {
	if _, ok := f.clients[client]; !ok {
		return
	}
	delete(f.clients, client)
	close(client.send)
}

func (f *Feed) remove(client *feedClient) {
	f.mu.Lock()
	f.removeLocked(client)
	f.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the feed is closed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed upgrade failed", logging.Error(err))
		return
	}
	client := &feedClient{conn: conn, send: make(chan []byte, feedSendBuffer)}

	f.mu.Lock()
	f.clients[client] = struct{}{}
	f.mu.Unlock()
	f.logger.Debug("feed subscriber connected", logging.String("remote", conn.RemoteAddr().String()))

	go f.writePump(client)
	f.readPump(client)
}

// readPump only services control frames; subscribers do not send data.
func (f *Feed) readPump(client *feedClient) {
	defer func() {
		f.remove(client)
		_ = client.conn.Close()
	}()
	client.conn.SetReadLimit(feedReadLimit)
	_ = client.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("feed subscriber read failed", logging.Error(err))
			}
			return
		}
	}
}

func (f *Feed) writePump(client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
