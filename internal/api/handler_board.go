package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"park-timer-backend/internal/model"
	"park-timer-backend/internal/parse"
)

type boardEntry struct {
	ID               string              `json:"id"`
	Type             model.VisitorType   `json:"type"`
	Name             string              `json:"name"`
	Status           model.VisitorStatus `json:"status"`
	TimeMinutes      int                 `json:"timeMinutes"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Countdown        string              `json:"countdown"`
	// Percent of the allotment still left, 0-100.
	Progress int `json:"progress"`
}

type boardResponse struct {
	Date    string       `json:"date"`
	Expired []boardEntry `json:"expired"`
	Active  []boardEntry `json:"active"`
	Pending []boardEntry `json:"pending"`
}

func newBoardEntry(v *model.Visitor) boardEntry {
	remaining := v.RemainingSeconds
	if v.Status == model.StatusPending {
		remaining = v.AllotmentSeconds()
	}
	progress := 0
	if total := v.AllotmentSeconds(); total > 0 && remaining > 0 {
		progress = remaining * 100 / total
		if progress > 100 {
			progress = 100
		}
	}
	return boardEntry{
		ID:               v.ID,
		Type:             v.Type,
		Name:             v.Name,
		Status:           v.Status,
		TimeMinutes:      v.TimeMinutes,
		RemainingSeconds: remaining,
		Countdown:        parse.FormatCountdown(remaining),
		Progress:         progress,
	}
}

// GetBoard handles GET /api/board: today's visitors still on the premises,
// expired first, then running (active and warning), then waiting to start.
func (h *Handler) GetBoard(c *gin.Context) {
	day := h.engine.Today()
	visitors, err := h.store.GetVisitorsByDate(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}

	board := boardResponse{
		Date:    day,
		Expired: []boardEntry{},
		Active:  []boardEntry{},
		Pending: []boardEntry{},
	}
	for i := range visitors {
		v := &visitors[i]
		switch v.Status {
		case model.StatusExpired:
			board.Expired = append(board.Expired, newBoardEntry(v))
		case model.StatusActive, model.StatusWarning:
			board.Active = append(board.Active, newBoardEntry(v))
		case model.StatusPending:
			board.Pending = append(board.Pending, newBoardEntry(v))
		}
	}

	c.JSON(http.StatusOK, board)
}

type summaryResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Warning   int    `json:"warning"`
	Expired   int    `json:"expired"`
	Completed int    `json:"completed"`
	// Minutes sold, including renewals.
	Minutes int `json:"minutes"`
}

// GetSummary handles GET /api/summary?date=.
func (h *Handler) GetSummary(c *gin.Context) {
	day, ok := h.dayParam(c)
	if !ok {
		return
	}
	visitors, err := h.store.GetVisitorsByDate(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}

	summary := summaryResponse{Date: day, Total: len(visitors)}
	for _, v := range visitors {
		summary.Minutes += v.TimeMinutes
		switch v.Status {
		case model.StatusPending:
			summary.Pending++
		case model.StatusActive:
			summary.Active++
		case model.StatusWarning:
			summary.Warning++
		case model.StatusExpired:
			summary.Expired++
		case model.StatusCompleted:
			summary.Completed++
		}
	}

	c.JSON(http.StatusOK, summary)
}

// pastDay reports whether the request asks for a day that is already over;
// only those summaries can be served from cache.
func (h *Handler) pastDay(c *gin.Context) bool {
	day, err := parse.ParseDay(c.Query("date"))
	if err != nil {
		return false
	}
	return day < h.engine.Today()
}
