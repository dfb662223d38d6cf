package handler

import (
	"captains-log/dto"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) RequestExport(c *gin.Context) {
	job, err := h.Exports.Request(c.Request.Context(), h.UserId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ExportJobResponse{
		JobId:  job.ID,
		Status: string(job.Status),
	})
}

func (h *Handler) GetExport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	status, err := h.Exports.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
