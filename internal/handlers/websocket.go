package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub             *services.WSHub
	validator       middleware.TokenValidator
	store           *couplestore.Store
	coupleService   *services.CoupleService
	presenceService *services.PresenceService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	validator middleware.TokenValidator,
	store *couplestore.Store,
	coupleService *services.CoupleService,
	presenceService *services.PresenceService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		validator:       validator,
		store:           store,
		coupleService:   coupleService,
		presenceService: presenceService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r, h.validator)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	h.sendInitial(ctx, userID)
	go h.presenceService.RunHeartbeat(ctx, userID, h.partnerStatusReporter(userID))

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, userID, msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			_, code := statusFor(err)
			h.sendError(userID, code)
		}
	}

	h.hub.Unregister(userID, conn)
	if !h.hub.IsConnected(userID) {
		h.presenceService.Announce(context.WithoutCancel(ctx), userID, false)
	}
	log.Info().Str("user_id", userID).Msg("WebSocket connection closed")
}

// sendInitial sends the cached couple immediately, then the refreshed one
// if the fetch brought anything newer.
func (h *WebSocketHandler) sendInitial(ctx context.Context, userID string) {
	cached, refreshed := h.store.Load(ctx, userID)
	if cached != nil {
		h.sendCouple(userID, services.CoupleView{Couple: cached, Pairing: services.PairingStateOf(cached)})
	}

	go func() {
		res, ok := <-refreshed
		if !ok || ctx.Err() != nil {
			return
		}
		switch {
		case res.Err == nil:
			h.sendCouple(userID, services.CoupleView{Couple: res.Couple, Pairing: services.PairingStateOf(res.Couple)})
		case errors.Is(res.Err, couplestore.ErrOffline):
			log.Warn().Err(res.Err).Str("user_id", userID).Msg("Serving cached couple")
		case cached == nil:
			h.sendError(userID, "no_couple")
		}
	}()
}

// partnerStatusReporter returns a heartbeat callback that pushes the
// partner's presence whenever it flips.
func (h *WebSocketHandler) partnerStatusReporter(userID string) func(ctx context.Context) {
	var last *bool
	return func(ctx context.Context) {
		c, ok := h.store.Cached(ctx, userID)
		if !ok || !c.IsPaired() {
			return
		}
		p, err := h.presenceService.PartnerPresence(ctx, c, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load partner presence")
			return
		}
		if last != nil && *last == p.Online {
			return
		}
		online := p.Online
		last = &online
		if err := h.hub.SendToUser(userID, services.WSMessage{
			Type:   services.MsgPartnerStatus,
			Online: &online,
			Data:   p,
		}); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send partner status")
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, userID string, msg services.WSMessage) error {
	switch msg.Type {
	case "pet":
		_, err := h.coupleService.Pet(ctx, userID)
		return err
	case "refresh":
		view, err := h.coupleService.Get(ctx, userID)
		if err != nil {
			return err
		}
		h.sendCouple(userID, *view)
		return nil
	default:
		h.sendError(userID, "Unknown message type")
		return nil
	}
}

func (h *WebSocketHandler) sendCouple(userID string, view services.CoupleView) {
	if err := h.hub.SendToUser(userID, services.WSMessage{
		Type: services.MsgCoupleUpdated,
		Data: view,
	}); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send couple")
	}
}

// sendError sends an error message to the user's socket
func (h *WebSocketHandler) sendError(userID, message string) {
	if err := h.hub.SendToUser(userID, services.WSMessage{
		Type:    services.MsgError,
		Message: message,
	}); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send error")
	}
}
