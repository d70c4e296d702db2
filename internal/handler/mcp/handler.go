package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/service/gateway"
	"github.com/zhouzirui/mcp-weather/backend/pkg/utils"
)

const (
	msgSessionIDRequired = "session_id is required"
	msgSessionNotFound   = "Session not found or expired"
	msgStreamUnsupported = "streaming unsupported"
)

// Handler exposes the relay protocol over HTTP, SSE and WebSocket.
type Handler struct {
	gateway  *gateway.Gateway
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New creates the protocol handler.
func New(gw *gateway.Gateway, log logrus.FieldLogger) *Handler {
	return &Handler{
		gateway: gw,
		log:     log.WithField("component", "mcp"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the protocol routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/mcp", h.handleInitial)
	r.Post("/mcp/messages", h.handleStream)
	r.Post("/mcp/messages/", h.handleStream)
	r.Get("/mcp/messages/ws", h.handleWebSocket)
}

// handleInitial answers directly or opens a streaming session.
func (h *Handler) handleInitial(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		h.log.WithError(err).Warn("failed to decode initial request")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !req.Streaming() {
		utils.RespondJSON(w, http.StatusOK, h.gateway.Complete(r.Context(), req))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, msgStreamUnsupported)
		return
	}

	_, endpoint := h.gateway.Open(req)
	utils.SetupSSEHeaders(w)
	if err := utils.SendSSEEvent(w, flusher, "endpoint", endpoint); err != nil {
		h.log.WithError(err).Warn("failed to announce endpoint")
	}
}

// handleStream delivers the answer frames for an open session as SSE. The
// session is resolved before the body is read.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, msgSessionIDRequired)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, msgStreamUnsupported)
		return
	}

	record, err := h.gateway.Resolve(sessionID)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		h.log.WithError(err).Warn("failed to decode stream request")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	frames := h.gateway.Frames(ctx, record, req)

	utils.SetupSSEHeaders(w)
	log := h.log.WithField("session_id", sessionID)
	for frame := range frames {
		if ctx.Err() != nil {
			log.Debug("client went away, closing stream")
			return
		}
		if err := utils.SendSSEChunk(w, flusher, frame); err != nil {
			log.WithError(err).Warn("failed to write stream frame")
			return
		}
	}
}

// handleWebSocket delivers the same frames as WebSocket text messages.
// An optional message query parameter overrides the stored query.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, msgSessionIDRequired)
		return
	}

	var req gateway.Request
	if message := r.URL.Query().Get("message"); message != "" {
		req = gateway.Request{Messages: []*schema.Message{schema.UserMessage(message)}}
	}

	ctx := r.Context()
	frames, err := h.gateway.Stream(ctx, sessionID, req)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("session_id", sessionID)
	for frame := range frames {
		if ctx.Err() != nil {
			return
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.WithError(err).Warn("failed to write websocket frame")
			return
		}
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		log.WithError(err).Debug("failed to send close frame")
	}
}

func (h *Handler) respondGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrSessionIDRequired):
		utils.RespondError(w, http.StatusBadRequest, msgSessionIDRequired)
	case errors.Is(err, gateway.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, msgSessionNotFound)
	default:
		h.log.WithError(err).Error("gateway failure")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeRequest reads an optional JSON body. An empty body yields a zero
// request.
func decodeRequest(r *http.Request) (gateway.Request, error) {
	var req gateway.Request
	if r.Body == nil {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if errors.Is(err, io.EOF) {
		return gateway.Request{}, nil
	}
	return req, err
}
