package entities

import (
	"captains-log/constant"
	"github.com/google/uuid"
	"time"
)

type Job struct {
	ID         uuid.UUID          `json:"id" gorm:"type:uuid;primary_key"`
	EntityId   string             `json:"entity_id" gorm:"type:varchar(255)"`
	EntityType string             `json:"entity_type" gorm:"type:varchar(50)"`
	Status     constant.JobStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_jobs_status"`
	JobType    constant.JobType   `json:"job_type" gorm:"type:varchar(50);not null"`
	ObjectName *string            `json:"object_name" gorm:"type:varchar(500)"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
