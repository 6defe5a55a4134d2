package api

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/auth"
	"github.com/satriahrh/callrelay/internal/metrics"
	"github.com/satriahrh/callrelay/internal/websocket"
	"github.com/satriahrh/callrelay/usecase"
)

const (
	defaultCallLimit = 20
	maxCallLimit     = 200
)

// Dependencies are the services the HTTP surface needs. Metrics may be nil.
type Dependencies struct {
	Relay     *websocket.Relay
	Archive   *usecase.ArchiveService
	Operators repositories.OperatorRepository
	Tokens    *auth.TokenService
	Upgrader  *gorilla.Upgrader
	Metrics   *metrics.Collector
	// PublicURL is the externally reachable base of this server, used in
	// the TwiML stream URL. The request host is used when empty.
	PublicURL string
	// HealthChecks are probed by /health, keyed by dependency name.
	HealthChecks map[string]func(context.Context) error
	Logger       *zap.Logger
}

type handler struct {
	Dependencies
	hub *websocket.Hub
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handler{Dependencies: deps, hub: deps.Relay.Hub()}

	// Health check
	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))

	// Telephony side
	e.POST("/twiml", h.twiml)
	e.GET("/ws", h.mediaStream)
	e.GET("/ws/status", h.status)

	// Dispatcher side
	e.POST("/audio/stream", h.audioStream)
	e.GET("/client/notifications", h.notifications)
	e.GET("/client/:caller_number", h.callerStream)

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/operators/auth", h.operatorAuth)
	v1.GET("/calls", h.listCalls)
	v1.GET("/calls/:callSid", h.getCall)
}

func (h *handler) health(c echo.Context) error {
	resp := HealthResponse{
		Status:      "ok",
		Service:     "callrelay",
		ActiveCalls: h.Relay.Registry().Len(),
	}
	code := http.StatusOK
	for name, check := range h.HealthChecks {
		if err := check(c.Request().Context()); err != nil {
			h.Logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			if resp.Failing == nil {
				resp.Failing = map[string]string{}
			}
			resp.Failing[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, resp)
}

// twiml answers the voice webhook and provisions the call ahead of its
// media stream.
func (h *handler) twiml(c echo.Context) error {
	callSID := c.FormValue("CallSid")
	if callSID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "CallSid is required",
		})
	}

	caller := entities.CallerInfo{
		Number:  c.FormValue("From"),
		To:      c.FormValue("To"),
		Name:    c.FormValue("CallerName"),
		City:    c.FormValue("CallerCity"),
		State:   c.FormValue("CallerState"),
		Country: c.FormValue("CallerCountry"),
	}
	h.Relay.Registry().Provision(callSID, caller)

	h.Logger.Info("Incoming call",
		zap.String("callSid", callSID),
		zap.String("from", caller.Number),
		zap.String("city", caller.City))

	body, err := xml.Marshal(twimlResponse{
		Connect: twimlConnect{
			Stream: twimlStream{
				URL:        h.streamURL(c.Request()),
				Parameters: []twimlParameter{{Name: "track", Value: "both_tracks"}},
			},
		},
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, append([]byte(xml.Header), body...))
}

func (h *handler) streamURL(r *http.Request) string {
	base := h.PublicURL
	if base == "" {
		base = "https://" + r.Host
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "wss://" + r.Host + "/ws"
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// mediaStream upgrades the telephony media stream and serves it until
// the call ends.
func (h *handler) mediaStream(c echo.Context) error {
	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade media stream", zap.Error(err))
		return nil
	}
	defer conn.Close()

	if err := h.Relay.ServeMediaStream(c.Request().Context(), conn); err != nil {
		h.Logger.Warn("Media stream closed", zap.Error(err))
	}
	return nil
}

func (h *handler) status(c echo.Context) error {
	sessions := h.Relay.Registry().List()
	baseline := h.Relay.Baseline()
	calls := make([]ActiveCall, 0, len(sessions))
	for _, s := range sessions {
		lang := s.Language().Resolve(baseline)
		call := ActiveCall{
			CallSID:            s.CallSID(),
			StreamSID:          s.StreamSID(),
			CallerNumber:       s.CallerNumber(),
			Streaming:          s.Active(),
			CallerLanguage:     lang.CallerLanguage,
			DispatcherLanguage: lang.DispatcherLanguage,
		}
		if started := s.StartedAt(); !started.IsZero() {
			call.StartedAt = &started
		}
		calls = append(calls, call)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		NotificationClients: h.hub.Count(websocket.TopicNotifications),
		TranscriptionTopics: h.hub.TranscriptionTopics(),
		ActiveCalls:         calls,
		Timestamp:           domain.Timestamp(time.Now()),
	})
}

func (h *handler) audioStream(c echo.Context) error {
	var req AudioStreamRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Audio == "" || req.CallerNumber == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "audio and caller_number are required",
		})
	}

	err := h.Relay.IngestDispatcherAudio(req.CallerNumber, req.Audio)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, AudioStreamResponse{Status: "ok", CallerNumber: req.CallerNumber})
	case errors.Is(err, audio.ErrCodec):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audio",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "call_not_found",
			Message: "No live call for this caller",
		})
	default:
		h.Logger.Error("Failed to ingest dispatcher audio", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to process audio",
		})
	}
}

func (h *handler) notifications(c echo.Context) error {
	return h.subscribe(c, websocket.TopicNotifications, nil)
}

func (h *handler) callerStream(c echo.Context) error {
	callerNumber := c.Param("caller_number")
	if decoded, err := url.PathUnescape(callerNumber); err == nil {
		callerNumber = decoded
	}
	return h.subscribe(c, callerNumber, h.Relay)
}

// subscribe authenticates and upgrades a dispatcher console socket
func (h *handler) subscribe(c echo.Context, topic string, sink websocket.AudioSink) error {
	if h.Tokens.Enabled() {
		token := bearerToken(c)
		if token == "" {
			h.Logger.Warn("Subscriber rejected: missing token", zap.String("topic", topic))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in the token query parameter or Authorization header",
			})
		}
		claims, err := h.Tokens.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("Subscriber rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired JWT token",
			})
		}
		h.Logger.Info("Subscriber authenticated",
			zap.String("operator_id", claims.OperatorID),
			zap.String("topic", topic))
	}

	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade subscriber", zap.Error(err))
		return nil
	}

	greeting := websocket.NewConnectedMessage("", "Subscribed to call notifications")
	if topic != websocket.TopicNotifications {
		greeting = websocket.NewConnectedMessage(topic, "Subscribed to transcriptions")
	}
	websocket.ServeClient(h.hub, conn, topic, greeting, sink, h.Logger)
	return nil
}

func bearerToken(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func (h *handler) operatorAuth(c echo.Context) error {
	var req OperatorAuthRequest

	// Bind and validate request
	if err := c.Bind(&req); err != nil {
		h.Logger.Error("Failed to bind operator auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Username == "" || req.Secret == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Username and secret are required",
		})
	}

	operator, err := h.Operators.ValidateOperator(req.Username, req.Secret)
	if err != nil {
		h.Logger.Warn("Operator authentication failed",
			zap.String("username", req.Username),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid operator credentials",
		})
	}

	token, expiresAt, err := h.Tokens.GenerateOperatorToken(operator.ID, operator.Username)
	if err != nil {
		h.Logger.Error("Failed to generate operator token",
			zap.String("operator_id", operator.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.Logger.Info("Operator authenticated successfully",
		zap.String("operator_id", operator.ID),
		zap.String("username", operator.Username))

	return c.JSON(http.StatusOK, OperatorAuthResponse{
		Token:      token,
		ExpiresAt:  expiresAt,
		OperatorID: operator.ID,
	})
}

func (h *handler) listCalls(c echo.Context) error {
	limit := defaultCallLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(n, maxCallLimit)
	}

	calls, err := h.Archive.RecentCalls(c.Request().Context(), c.QueryParam("caller"), limit)
	if err != nil {
		h.Logger.Error("Failed to list calls", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list calls",
		})
	}
	return c.JSON(http.StatusOK, CallListResponse{Calls: calls, Count: len(calls)})
}

func (h *handler) getCall(c echo.Context) error {
	callSID := c.Param("callSid")
	record, err := h.Archive.Call(c.Request().Context(), callSID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Call not found",
		})
	}
	if err != nil {
		h.Logger.Error("Failed to get call", zap.String("callSid", callSID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get call",
		})
	}
	return c.JSON(http.StatusOK, record)
}
