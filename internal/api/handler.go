package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greenhouse-backend/internal/notification"
	"greenhouse-backend/internal/parse"
	"greenhouse-backend/internal/schedule"
	"greenhouse-backend/internal/store"
)

// Dispatcher queues a notice for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notification.Notice) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	notices    *notification.Builder
	dispatcher Dispatcher
	clock      store.Clock
	loc        *time.Location
	jwtSecret  []byte
	tokenTTL   time.Duration
	logger     *zap.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithWebPush exposes the VAPID public key to clients.
func WithWebPush(opts *webpush.Options) Option {
	return func(h *Handler) { h.webpush = opts }
}

// WithNoticeBuilder overrides the template used for due-soon notices.
func WithNoticeBuilder(b *notification.Builder) Option {
	return func(h *Handler) {
		if b != nil {
			h.notices = b
		}
	}
}

// WithDispatcher enables POST /api/machines/:id/notify.
func WithDispatcher(d Dispatcher) Option {
	return func(h *Handler) { h.dispatcher = d }
}

// WithClock overrides "now" for live status.
func WithClock(c store.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithLocation sets the zone for dates sent without an offset.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

// WithAuth enables POST /api/auth/login.
func WithAuth(secret []byte, ttl time.Duration) Option {
	return func(h *Handler) {
		h.jwtSecret = secret
		h.tokenTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NewHandler creates a new API handler.
func NewHandler(s store.Store, opts ...Option) *Handler {
	notices, _ := notification.NewBuilder("")
	h := &Handler{
		store:    s,
		notices:  notices,
		clock:    utcClock{},
		loc:      time.UTC,
		tokenTTL: 12 * time.Hour,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var compErr *schedule.ComputationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &compErr),
		errors.Is(err, parse.ErrInvalidDate),
		errors.Is(err, parse.ErrInvalidInterval),
		errors.Is(err, parse.ErrInvalidCost),
		errors.Is(err, store.ErrInvalidMachine):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, notification.ErrNotDueSoon):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
