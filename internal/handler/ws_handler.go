package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/realtime"
	"github.com/noah-isme/lms-portal-api/internal/service"
	"github.com/noah-isme/lms-portal-api/pkg/config"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// WSHandler upgrades authenticated connections into the slide-sync hub.
type WSHandler struct {
	hub      *realtime.Hub
	auth     *service.AuthService
	metrics  *service.MetricsService
	upgrader websocket.Upgrader
	opts     realtime.ClientOptions
	logger   *zap.Logger
}

// NewWSHandler creates a new handler. Browsers cannot set an Authorization
// header on websocket dials, so the token arrives as a query parameter.
func NewWSHandler(hub *realtime.Hub, auth *service.AuthService, metrics *service.MetricsService, cfg config.RealtimeConfig, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub:     hub,
		auth:    auth,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// cross-origin checks are handled by the CORS layer in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts: realtime.ClientOptions{
			SendQueueSize: cfg.SendQueueSize,
			WriteTimeout:  cfg.WriteTimeout,
			PongTimeout:   cfg.PongTimeout,
		},
		logger: logger,
	}
}

// Serve godoc
// @Summary Realtime slide-sync connection
// @Description Upgrade to websocket; authenticate with ?token=<access token>
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token query parameter required"))
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, claims, h.opts, h.logger)
	h.metrics.RealtimeConnOpened()
	go func() {
		defer h.metrics.RealtimeConnClosed()
		client.Run()
	}()
}
