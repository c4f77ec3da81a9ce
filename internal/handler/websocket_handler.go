// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 54 * time.Second
	wsWriteWait    = 10 * time.Second
	commandTimeout = 30 * time.Second
)

// StatusSource provides the status snapshot sent to new clients
type StatusSource interface {
	Snapshot() model.Status
}

// CommandFunc runs one client command and returns its result
type CommandFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ServiceCommands returns the commands clients can run over the event socket
func ServiceCommands(
	motor *service.MotorService,
	discovery *service.DiscoveryService,
	recording *service.RecordingService,
	status StatusSource,
) map[string]CommandFunc {
	return map[string]CommandFunc{
		"motor_test": func(context.Context, map[string]interface{}) (interface{}, error) {
			if err := motor.SendTestCommand(); err != nil {
				return nil, err
			}
			return motor.Status(), nil
		},
		"discovery_run": func(context.Context, map[string]interface{}) (interface{}, error) {
			if _, err := discovery.RunAsync(model.TriggerManual); err != nil {
				return nil, err
			}
			return discovery.Status(), nil
		},
		"recording_start": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			base, _ := args["base_name"].(string)
			return recording.Start(ctx, base)
		},
		"recording_stop": func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			session, err := recording.Stop(ctx)
			if session == nil && err == nil {
				return nil, service.ErrRecordingNotActive
			}
			return session, err
		},
		"status": func(context.Context, map[string]interface{}) (interface{}, error) {
			return status.Snapshot(), nil
		},
	}
}

// WebSocketHandler pushes bus events to WebSocket clients and runs their commands
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	bus         *events.Bus
	feed        <-chan model.Event
	status      StatusSource
	commands    map[string]CommandFunc
	logger      *utils.ServiceLogger
	closeOnce   sync.Once
	done        chan struct{}
}

// NewWebSocketHandler creates a new WebSocket handler and starts forwarding bus events.
// An empty allowedOrigins list, or one containing "*", accepts any origin.
func NewWebSocketHandler(
	bus *events.Bus,
	status StatusSource,
	commands map[string]CommandFunc,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections: NewConnectionManager(),
		bus:         bus,
		feed:        bus.Subscribe(events.AllEvents),
		status:      status,
		commands:    commands,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
		done:        make(chan struct{}),
	}

	go handler.forwardEvents()

	return handler
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || candidate == origin {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
}

// HandleEventConnection upgrades the request and streams events to the client
// @Summary Event stream
// @Description WebSocket. Sends a status snapshot on connect, then every event. Clients may send subscribe, unsubscribe, ping and command messages.
// @Tags WebSocket
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "status",
		Data:      h.status.Snapshot(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// forwardEvents relays bus events until the bus stops or the handler closes
func (h *WebSocketHandler) forwardEvents() {
	for {
		select {
		case event, ok := <-h.feed:
			if !ok {
				return
			}
			h.broadcastEvent(event)
		case <-h.done:
			return
		}
	}
}

func (h *WebSocketHandler) broadcastEvent(event model.Event) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, clientID := range h.connections.Broadcast(event.Type, messageBytes) {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("client_id", clientID),
			zap.String("event_type", string(event.Type)),
		)
	}
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Event WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		h.handleSubscription(client, message, true)
	case "unsubscribe":
		h.handleSubscription(client, message, false)
	case "command":
		h.handleCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage, subscribe bool) {
	data, _ := message.Data.(map[string]interface{})
	topic, _ := data["topic"].(string)
	if topic == "" {
		h.sendError(client, message.RequestID, "topic is required")
		return
	}

	confirmation := "subscription_confirmed"
	if subscribe {
		client.subscribe(model.EventType(topic))
	} else {
		client.unsubscribe(model.EventType(topic))
		confirmation = "unsubscription_confirmed"
	}

	h.logger.Debug("Client subscriptions changed",
		zap.String("client_id", client.ID),
		zap.String("topic", topic),
		zap.Bool("subscribe", subscribe),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      confirmation,
		Data:      map[string]interface{}{"topic": topic},
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

func (h *WebSocketHandler) handleCommand(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, message.RequestID, "invalid command data")
		return
	}

	command, _ := data["command"].(string)
	run, ok := h.commands[command]
	if !ok {
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown command: %s", command))
		return
	}

	go h.executeCommand(client, message.RequestID, command, run, data)
}

func (h *WebSocketHandler) executeCommand(client *Client, requestID, command string, run CommandFunc, args map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := run(ctx, args)

	response := map[string]interface{}{
		"command": command,
		"success": err == nil,
		"result":  result,
	}
	if err != nil {
		status, code := serviceError(err)
		response["error"] = err.Error()
		response["code"] = code
		response["status"] = status
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      response,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client send channel full or closed, dropping message",
			zap.String("client_id", client.ID),
			zap.String("type", message.Type),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// Close stops forwarding and disconnects every client
func (h *WebSocketHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.bus.Unsubscribe(events.AllEvents, h.feed)
		h.connections.UnregisterAll()
	})
}
