package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"park-timer-backend/internal/engine"
	"park-timer-backend/internal/parse"
	"park-timer-backend/internal/store"
)

// MuteSwitch is the global alert mute.
type MuteSwitch interface {
	SetMuted(muted bool)
	Muted() bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	store   store.Store
	alerts  MuteSwitch
	webpush *webpush.Options

	// summaries holds cached past-day summaries, keyed by request URI.
	summaries *cache.Cache
}

// NewHandler creates a new API handler.
func NewHandler(e *engine.Engine, s store.Store, alerts MuteSwitch, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:  e,
		store:   s,
		alerts:  alerts,
		webpush: webpushOptions,
	}
}

// invalidateSummary drops every cached summary of day. Late changes to a
// past day's visitors, such as completing one left over from yesterday,
// must show up in that day's counts.
func (h *Handler) invalidateSummary(day string) {
	if h.summaries == nil {
		return
	}
	for key := range h.summaries.Items() {
		u, err := url.Parse(key)
		if err != nil || !strings.HasSuffix(u.Path, "/summary") {
			continue
		}
		if cached, err := parse.ParseDay(u.Query().Get("date")); err == nil && cached == day {
			h.summaries.Delete(key)
		}
	}
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

// writeError maps store and engine errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
	case errors.Is(err, engine.ErrInvalidArgument), errors.Is(err, store.ErrInvalidVisitor):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrCompleted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
