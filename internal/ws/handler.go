package ws

import (
	"context"
	"net/http"

	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Config holds the "ws" configuration section.
type Config struct {
	// OriginPatterns lists the host patterns allowed to open the stream
	// from a browser. Empty allows same-origin requests only.
	OriginPatterns []string `mapstructure:"origin_patterns"`
	// Network forwards per-network events. Busy areas produce many of them.
	Network bool `mapstructure:"network_events"`
}

// Handler provides the WebSocket endpoint for live scan updates.
type Handler struct {
	hub    *Hub
	cfg    Config
	bus    plugin.EventBus
	logger *zap.Logger
	unsub  []func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to scan events.
func NewHandler(cfg Config, bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		cfg:    cfg,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/scan", h.handleScanStream)
}

// Clients returns the number of connected stream clients.
func (h *Handler) Clients() int { return h.hub.ClientCount() }

// Close drops the bus subscriptions.
func (h *Handler) Close() {
	for _, u := range h.unsub {
		u()
	}
	h.unsub = nil
}

// handleScanStream upgrades the connection to WebSocket and streams scan events.
func (h *Handler) handleScanStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until the client disconnects.
	client.readPump(ctx)

	cancel()
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards scan events to every connected client.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.subscribe(scan.TopicScanStarted, func(e plugin.Event) (Message, bool) {
		p, ok := e.Payload.(scan.StartedEvent)
		return Message{Type: MessageScanStarted, SessionID: p.SessionID, Data: p}, ok
	})
	h.subscribe(scan.TopicScanProgress, func(e plugin.Event) (Message, bool) {
		p, ok := e.Payload.(scan.ProgressEvent)
		return Message{Type: MessageScanProgress, SessionID: p.SessionID, Data: p}, ok
	})
	if h.cfg.Network {
		h.subscribe(scan.TopicScanNetwork, func(e plugin.Event) (Message, bool) {
			p, ok := e.Payload.(scan.NetworkEvent)
			return Message{Type: MessageScanNetwork, SessionID: p.SessionID, Data: p}, ok
		})
	}
	// The stream carries the session summary only. Clients fetch the table
	// from the REST API.
	h.subscribe(scan.TopicScanCompleted, func(e plugin.Event) (Message, bool) {
		p, ok := e.Payload.(scan.EndedEvent)
		return Message{Type: MessageScanCompleted, SessionID: p.Session.ID, Data: p.Session}, ok
	})
	h.subscribe(scan.TopicScanFailed, func(e plugin.Event) (Message, bool) {
		p, ok := e.Payload.(scan.EndedEvent)
		return Message{Type: MessageScanFailed, SessionID: p.Session.ID, Data: p.Session}, ok
	})

	h.logger.Info("subscribed to scan events for WebSocket broadcasting",
		zap.Bool("network_events", h.cfg.Network))
}

func (h *Handler) subscribe(topic string, convert func(plugin.Event) (Message, bool)) {
	unsub := h.bus.Subscribe(topic, func(_ context.Context, e plugin.Event) {
		msg, ok := convert(e)
		if !ok {
			return
		}
		msg.Timestamp = e.Timestamp
		h.hub.Broadcast(msg)
	})
	h.unsub = append(h.unsub, unsub)
}
