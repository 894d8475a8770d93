package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/pkg/logger"
)

// WebSocketHandler recomputes views as a client changes its selection, so
// the page can refresh without a round trip per widget.
type WebSocketHandler struct {
	engine *dashboard.Engine
}

func NewWebSocketHandler(engine *dashboard.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

type wsRequest struct {
	Type    string       `json:"type"`
	State   filter.State `json:"state"`
	Columns []string     `json:"columns"`
	Page    int          `json:"page"`
	Size    int          `json:"size"`
	N       int          `json:"n"`
	Terms   []string     `json:"terms"`
}

// Upgrade rejects plain HTTP requests on the socket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	session := uuid.New().String()
	log := logger.Named("ws").With(zap.String("session", session))
	log.Info("WebSocket connection established")
	metrics.WebSocketSessions.Inc()

	defer func() {
		metrics.WebSocketSessions.Dec()
		c.Close()
		log.Info("WebSocket connection closed")
	}()

	if err := c.WriteJSON(fiber.Map{"type": "session", "session": session}); err != nil {
		return
	}

	ctx := context.Background()
	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		reply, err := h.respond(ctx, msg)
		if err != nil {
			h.sendError(c, err.Error())
			continue
		}
		if err := c.WriteJSON(reply); err != nil {
			log.Warn("Failed to write WebSocket reply", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) respond(ctx context.Context, msg wsRequest) (fiber.Map, error) {
	switch msg.Type {
	case "filter", "summary":
		return fiber.Map{"type": "summary", "summary": h.engine.Summary(ctx, msg.State)}, nil
	case "records":
		grid, err := h.engine.Records(ctx, msg.State, msg.Columns, msg.Page, msg.Size)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"type": "records", "records": grid}, nil
	case "terms":
		return fiber.Map{"type": "terms", "terms": h.engine.Terms(msg.N)}, nil
	case "advanced":
		return fiber.Map{"type": "advanced", "advanced": h.engine.AdvancedSearch(ctx, msg.Terms)}, nil
	case "timeline":
		return fiber.Map{"type": "timeline", "timeline": h.engine.Timeline()}, nil
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "unknown message type: "+msg.Type)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
