package handler

import (
	"captains-log/dto"
	"captains-log/entities"
	"captains-log/repository"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListStarLogs(c *gin.Context) {
	summary, err := h.StarLogs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetStarLog(c *gin.Context) {
	log, err := h.StarLogs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Star log not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *Handler) CreateStarLog(c *gin.Context) {
	var req dto.CreateStarLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := parseTime(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be an ISO-8601 instant"})
		return
	}
	userId := req.UserId
	if userId == "" {
		userId = h.UserId
	}

	id, err := h.StarLogs.Create(c.Request.Context(), &entities.StarLog{
		Title:     req.Title,
		Content:   req.Content,
		Timestamp: ts,
		Duration:  req.Duration,
		Sentiment: req.Sentiment,
		Keywords:  req.Keywords,
		UserId:    userId,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateStarLogResponse{
		Message: "Star log created successfully",
		ID:      id,
	})
}

func (h *Handler) DeleteStarLog(c *gin.Context) {
	err := h.StarLogs.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Star log not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Message: "Star log deleted successfully", Deleted: 1})
}

func (h *Handler) DeleteAllStarLogs(c *gin.Context) {
	n, err := h.StarLogs.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Message: fmt.Sprintf("Deleted %d log(s)", n), Deleted: n})
}

func (h *Handler) DeleteThisMonth(c *gin.Context) {
	n, err := h.StarLogs.DeleteThisMonth(c.Request.Context())
	respondDeleted(c, n, err, "the current month")
}

func (h *Handler) DeleteLastMonth(c *gin.Context) {
	n, err := h.StarLogs.DeleteLastMonth(c.Request.Context())
	respondDeleted(c, n, err, "the previous month")
}

// DeleteRange removes entries with start <= timestamp < end. Both bounds
// accept RFC 3339 instants or plain dates.
func (h *Handler) DeleteRange(c *gin.Context) {
	start, err := parseTime(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a date or ISO-8601 instant"})
		return
	}
	end, err := parseTime(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a date or ISO-8601 instant"})
		return
	}
	if !start.Before(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be before end"})
		return
	}
	n, err := h.StarLogs.DeleteRange(c.Request.Context(), start, end)
	respondDeleted(c, n, err, "the requested range")
}

func respondDeleted(c *gin.Context, n int64, err error, scope string) {
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, dto.DeleteResponse{Message: "No logs found for " + scope})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{
		Message: fmt.Sprintf("Deleted %d log(s) for %s", n, scope),
		Deleted: n,
	})
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
