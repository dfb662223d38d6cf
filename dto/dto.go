package dto

import (
	"captains-log/entities"
	"github.com/google/uuid"
)

type ExportMessage struct {
	JobId  uuid.UUID `json:"jobId"`
	UserId string    `json:"userId"`
}

type CreateStarLogRequest struct {
	Title     string   `json:"title" binding:"required"`
	Content   string   `json:"content" binding:"required"`
	Timestamp string   `json:"timestamp" binding:"required"`
	Duration  int      `json:"duration" binding:"gte=0"`
	Sentiment string   `json:"sentiment"`
	Keywords  []string `json:"keywords" binding:"max=5"`
	UserId    string   `json:"userId"`
}

type CreateStarLogResponse struct {
	Message string `json:"message"`
	ID      string `json:"_id"`
}

// StarLogSummary is the list payload with aggregate stats.
type StarLogSummary struct {
	TotalEntries     int64               `json:"totalEntries"`
	RecentRecordings []*entities.StarLog `json:"recentRecordings"`
	LogsThisMonth    int64               `json:"logsThisMonth"`
	Streak           int                 `json:"streak"`
}

type DeleteResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

type ExportJobResponse struct {
	JobId       uuid.UUID `json:"jobId"`
	Status      string    `json:"status"`
	DownloadUrl string    `json:"downloadUrl,omitempty"`
}

type CheckoutRequest struct {
	PriceId string `json:"priceId" binding:"required"`
	Amount  string `json:"amount"`
}

type CheckoutResponse struct {
	Ok     bool   `json:"ok"`
	Id     string `json:"id"`
	Url    string `json:"url"`
	Status string `json:"status"`
}

type VerifyPaymentRequest struct {
	SessionId string `json:"sessionId" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success bool `json:"success"`
}

type TranscriptRequest struct {
	Transcript string `json:"transcript"`
}

type KeyRequest struct {
	Key  string `json:"key" binding:"required"`
	Ctrl bool   `json:"ctrl"`
}

type AttachRequest struct {
	Format     string `json:"format" binding:"omitempty,oneof=webm pcm16"`
	SampleRate int    `json:"sampleRate"`
}

// SessionControl is a text frame received on the session websocket.
type SessionControl struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Key        string `json:"key,omitempty"`
	Ctrl       bool   `json:"ctrl,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}
