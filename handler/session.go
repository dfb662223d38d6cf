package handler

import (
	"captains-log/dto"
	"captains-log/pkg/capture"
	"captains-log/service"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxChunkBytes bounds one uploaded audio chunk.
const maxChunkBytes = 1 << 20

func (h *Handler) session(c *gin.Context) (*service.Session, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

func streamDevice(s *service.Session) (*capture.StreamDevice, bool) {
	d, ok := s.Device().(*capture.StreamDevice)
	return d, ok
}

func (h *Handler) CreateSession(c *gin.Context) {
	s := h.Sessions.Create(c.Request.Context())
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Sessions.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AttachSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if d, ok := streamDevice(s); ok {
		d.Attach(capture.Format(req.Format), req.SampleRate)
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) StartSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Start(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) PauseSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Pause(c.Request.Context())
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) ResumeSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Resume(c.Request.Context())
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) ResetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Reset(c.Request.Context())
	c.JSON(http.StatusOK, s.Snapshot())
}

// StopSession blocks until the recording is annotated and saved.
func (h *Handler) StopSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := s.Stop(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) PlaySession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Play(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) PushChunk(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	d, ok := streamDevice(s)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "session does not accept uploaded audio"})
		return
	}
	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": d.Write(chunk)})
}

func (h *Handler) SessionTranscript(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, matched := s.Transcript(req.Transcript)
	c.JSON(http.StatusOK, gin.H{"matched": matched, "command": cmd})
}

func (h *Handler) SessionKey(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, matched := s.Key(req.Key, req.Ctrl)
	c.JSON(http.StatusOK, gin.H{"matched": matched, "command": cmd})
}
