// Package wsgateway streams dashboard updates and alerts to websocket clients.
package wsgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mohamedkhairy/strikeview/internal/config"
	"github.com/mohamedkhairy/strikeview/internal/dashboard"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

// UpdateSource is what the hub streams from. *dashboard.Session implements it.
type UpdateSource interface {
	Subscribe() (<-chan dashboard.Update, func())
	View() dashboard.View
}

// Hub manages websocket connections and fans session updates out to them
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	source   UpdateSource
	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	stop     func()
	stats    HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal  int64
	ConnectionsActive int64
	UpdatesReceived   int64
	AlertsBroadcast   int64
	MessagesSent      int64
	MessagesDropped   int64
	LastUpdateTime    time.Time
	mu                sync.RWMutex
}

// NewHub creates a hub. allowedOrigins containing "*" accepts any origin.
func NewHub(cfg config.WSGatewayConfig, source UpdateSource, allowedOrigins []string) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= cfg.PingInterval {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		source:   source,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Start subscribes to the source and starts broadcasting
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	updates, stop := h.source.Subscribe()
	h.stop = stop
	h.mu.Unlock()

	logger.Info("Starting websocket hub",
		logger.Duration("ping_interval", h.config.PingInterval),
		logger.Int("max_connections", h.config.MaxConnections),
	)

	h.wg.Add(2)
	go h.consumeUpdates(updates)
	go h.monitorConnections()

	return nil
}

// Stop disconnects every client and waits for the pumps to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stop := h.stop
	h.mu.Unlock()

	logger.Info("Stopping websocket hub")
	h.cancel()
	if stop != nil {
		stop()
	}
	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}
	h.wg.Wait()
	logger.Info("Websocket hub stopped")
}

// ServeHTTP upgrades the request and registers the connection. The client
// gets the current view straight away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxConnections > 0 && h.registry.Count() >= h.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the response
		logger.Debug("Websocket upgrade failed", logger.ErrorField(err))
		return
	}

	conn := NewConnection(uuid.New().String(), r.RemoteAddr, ws)
	h.Register(conn)

	if err := conn.Enqueue(ServerMessage{Type: MessageTypeView, Data: h.source.View()}); err != nil {
		logger.Debug("Failed to queue initial view", logger.ErrorField(err), logger.String("connection_id", conn.ID))
	}
}

// Register registers a new connection and starts its pumps
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	h.incrementConnectionsTotal()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("remote_addr", conn.RemoteAddr),
		logger.Int("total_connections", h.registry.Count()),
	)

	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister removes and closes a connection
func (h *Hub) Unregister(conn *Connection) {
	if !h.registry.Remove(conn.ID) {
		return
	}
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

func (h *Hub) consumeUpdates(updates <-chan dashboard.Update) {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.incrementUpdatesReceived()
			h.Broadcast(update)
		}
	}
}

// Broadcast sends the update's view and each of its alerts to the
// connections that want them
func (h *Hub) Broadcast(update dashboard.Update) {
	viewMsg, err := json.Marshal(ServerMessage{Type: MessageTypeView, Data: update.View})
	if err != nil {
		logger.Error("Failed to encode view", logger.ErrorField(err))
		return
	}

	alertMsgs := make([][]byte, 0, len(update.Alerts))
	for i := range update.Alerts {
		msg, err := json.Marshal(ServerMessage{Type: MessageTypeAlert, Data: update.Alerts[i]})
		if err != nil {
			logger.Error("Failed to encode alert", logger.ErrorField(err), logger.String("alert_id", update.Alerts[i].ID))
			continue
		}
		alertMsgs = append(alertMsgs, msg)
	}

	connections := h.registry.GetAll()
	sent, dropped := 0, 0
	deliver := func(conn *Connection, msg []byte) {
		if err := conn.enqueueRaw(msg); err != nil {
			dropped++
			return
		}
		sent++
	}

	for _, conn := range connections {
		if conn.Wants(TopicView) {
			deliver(conn, viewMsg)
		}
		if conn.Wants(TopicAlerts) {
			for _, msg := range alertMsgs {
				deliver(conn, msg)
			}
		}
	}

	h.recordBroadcast(int64(len(alertMsgs)), int64(sent), int64(dropped))

	logger.Debug("Broadcast update",
		logger.String("kind", string(update.Kind)),
		logger.Int("alerts", len(alertMsgs)),
		logger.Int("sent", sent),
		logger.Int("dropped", dropped),
		logger.Int("total_connections", len(connections)),
	)
}

// writePump pumps queued messages to the websocket, one frame each
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the connection fails
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadLimit(4096)
	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("Websocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			return
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		if err := conn.HandleClientMessage(&clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
		}
	}
}

// monitorConnections removes connections that stopped answering pings
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2

			for _, conn := range h.registry.GetAll() {
				lastPong := conn.GetLastPong()
				if now.Sub(lastPong) > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.Duration("idle_time", now.Sub(lastPong)),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:  h.stats.ConnectionsTotal,
		ConnectionsActive: int64(h.registry.Count()),
		UpdatesReceived:   h.stats.UpdatesReceived,
		AlertsBroadcast:   h.stats.AlertsBroadcast,
		MessagesSent:      h.stats.MessagesSent,
		MessagesDropped:   h.stats.MessagesDropped,
		LastUpdateTime:    h.stats.LastUpdateTime,
	}
}

func (h *Hub) incrementConnectionsTotal() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsTotal++
}

func (h *Hub) incrementUpdatesReceived() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.UpdatesReceived++
	h.stats.LastUpdateTime = time.Now()
}

func (h *Hub) recordBroadcast(alerts, sent, dropped int64) {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.AlertsBroadcast += alerts
	h.stats.MessagesSent += sent
	h.stats.MessagesDropped += dropped
}
