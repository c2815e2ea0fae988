// Package domain defines the audit trail written alongside submission
// mutations. Audit writes are best effort: a failed insert is logged and
// never propagated to the caller.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrganisationID snowflake.ID      `json:"organisation_id" gorm:"not null;index"`
	ActorType      string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID        *string           `json:"actor_id,omitempty"`
	Action         string            `json:"action" gorm:"type:text;not null"`
	TargetType     string            `json:"target_type" gorm:"type:text;not null"`
	TargetID       *string           `json:"target_id,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	IPAddress      *string           `json:"ip_address,omitempty"`
	UserAgent      *string           `json:"user_agent,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrganisationID snowflake.ID
	Action         string
	TargetType     string
	TargetID       string
	ActorType      string
	StartAt        *time.Time
	EndAt          *time.Time
	Cursor         *AuditCursor
	Limit          int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
