package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type muteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

// GetMute handles GET /api/alerts/mute.
func (h *Handler) GetMute(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"muted": h.alerts.Muted()})
}

// PutMute handles PUT /api/alerts/mute. Muting silences both the spoken
// announcement and the chime; timers keep running.
func (h *Handler) PutMute(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	h.alerts.SetMuted(*req.Muted)
	log.WithField("muted", *req.Muted).Info("alert mute changed")
	c.JSON(http.StatusOK, gin.H{"muted": h.alerts.Muted()})
}
