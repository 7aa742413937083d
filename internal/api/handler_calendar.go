package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calendar-sync-backend/internal/calendar"
	"calendar-sync-backend/internal/model"
)

type calendarQuery struct {
	StartAfter string `form:"start_after" binding:"required"`
	EndBefore  string `form:"end_before" binding:"required"`
}

type eventResponse struct {
	ID                int64           `json:"id"`
	RoomCode          string          `json:"room_code"`
	StartAt           time.Time       `json:"start_at"`
	EndAt             time.Time       `json:"end_at"`
	TitleDE           string          `json:"stp_title_de"`
	TitleEN           string          `json:"stp_title_en"`
	StpType           string          `json:"stp_type"`
	EntryType         model.EntryType `json:"entry_type"`
	DetailedEntryType string          `json:"detailed_entry_type"`
}

type calendarResponse struct {
	Events      []eventResponse `json:"events"`
	LastSync    time.Time       `json:"last_sync"`
	CalendarURL string          `json:"calendar_url"`
}

// GetCalendar handles the GET /api/calendar/:id request.
func (h *Handler) GetCalendar(c *gin.Context) {
	var q calendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "start_after and end_before are required"})
		return
	}
	startAfter, err := time.Parse(time.RFC3339, q.StartAfter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start_after' timestamp format. Use RFC3339."})
		return
	}
	endBefore, err := time.Parse(time.RFC3339, q.EndBefore)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end_before' timestamp format. Use RFC3339."})
		return
	}
	if !endBefore.After(startAfter) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "end_before must be after start_after"})
		return
	}

	roomID := c.Param("id")
	cal, err := h.calendar.Events(c.Request.Context(), roomID, startAfter, endBefore)
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		c.String(http.StatusNotFound, "Room not found")
		return
	case errors.Is(err, calendar.ErrStaleDataUnavailable):
		c.String(http.StatusServiceUnavailable, "calendar is temporarily unavailable, please try again later")
		return
	case err != nil:
		h.log.Error("could not get calendar entries", zap.String("room", roomID), zap.Error(err))
		c.String(http.StatusInternalServerError, "could not get calendar entries, please try again later")
		return
	}

	response := calendarResponse{
		Events:      make([]eventResponse, 0, len(cal.Events)),
		LastSync:    cal.LastSync,
		CalendarURL: cal.CalendarURL,
	}
	for _, e := range cal.Events {
		response.Events = append(response.Events, eventResponse{
			ID:                e.ID,
			RoomCode:          e.RoomCode,
			StartAt:           e.StartAt,
			EndAt:             e.EndAt,
			TitleDE:           e.TitleDE,
			TitleEN:           e.TitleEN,
			StpType:           e.StpType,
			EntryType:         e.EntryType,
			DetailedEntryType: e.DetailedEntryType,
		})
	}
	c.JSON(http.StatusOK, response)
}
