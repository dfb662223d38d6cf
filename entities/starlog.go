package entities

import (
	"time"
)

// StarLog is one persisted voice memo with its AI annotations.
type StarLog struct {
	ID          string    `json:"_id" gorm:"type:varchar(36);primary_key"`
	Title       string    `json:"title" gorm:"type:varchar(255)"`
	Content     string    `json:"content" gorm:"type:text"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index:idx_starlogs_timestamp"`
	Duration    int       `json:"duration" gorm:"type:integer;not null;default:0"`
	Sentiment   string    `json:"sentiment" gorm:"type:varchar(32)"`
	Keywords    []string  `json:"keywords" gorm:"serializer:json;type:text"`
	UserId      string    `json:"userId" gorm:"type:varchar(255);index:idx_starlogs_user_id"`
	AudioObject string    `json:"audioObject,omitempty" gorm:"type:varchar(500)"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (StarLog) TableName() string {
	return "starlogs"
}
