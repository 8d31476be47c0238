package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/lentera-edu/lentera-backend/internal/middleware"
	"github.com/lentera-edu/lentera-backend/internal/service"
	ws "github.com/lentera-edu/lentera-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// How often the stream pushes an attempt state snapshot.
const stateInterval = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live attempt state to the quiz page: the countdown,
// violation outcomes as they happen, and the finish notification.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
// Upgrades to WebSocket and streams attempt state plus relayed lifecycle
// events (penalties, auto-submits) until the attempt finishes.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Ownership check before upgrading.
	if _, err := h.attemptService.Get(c.Request.Context(), attemptID, claims.UserID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "attempt not accessible"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, config.CacheKey.AttemptEventChannel(attemptID.String()))
	defer sub.Close()

	// Reader goroutine: detects disconnects and forwards pings to the
	// select loop, which answers them. The wrapped conn serializes
	// writes, so a relay or snapshot in flight never interleaves with a
	// pong frame.
	pings := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(stateInterval)
	defer ticker.Stop()

	if !h.pushState(ctx, conn, attemptID, claims.UserID) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Connection closed")
			return

		case <-pings:
			if err := conn.WriteTyped(ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := conn.WriteRaw([]byte(msg.Payload)); err != nil {
				wsLog.Debug().Err(err).Msg("relay write failed")
				return
			}

		case <-ticker.C:
			if !h.pushState(ctx, conn, attemptID, claims.UserID) {
				wsLog.Info().Msg("Stream finished")
				return
			}
		}
	}
}

// pushState sends one state snapshot. Returns false when the stream
// should end (attempt finished, gone, or the write failed).
func (h *WSHandler) pushState(ctx context.Context, conn *ws.Conn, attemptID uuid.UUID, studentID int) bool {
	attempt, err := h.attemptService.Get(ctx, attemptID, studentID)
	if err != nil {
		_ = conn.WriteError("attempt not accessible")
		return false
	}

	remaining := int64(time.Until(attempt.EndTime).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	state := ws.StateResponse{
		Event:            ws.EventState,
		Status:           string(attempt.Status),
		RemainingSeconds: remaining,
		ViolationCount:   attempt.ViolationCount,
		EndTime:          &attempt.EndTime,
	}
	if err := conn.WriteTyped(state); err != nil {
		return false
	}
	return !attempt.Finished()
}
