package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/packflow/pkg/db/pagination"
)

// Entry is one audit record to be written. Actor and target identifiers are
// free-form strings so that both user ids and system actors fit.
type Entry struct {
	OrganisationID snowflake.ID
	ActorType      string
	ActorID        *string
	Action         string
	TargetType     string
	TargetID       *string
	Metadata       map[string]any
	IPAddress      string
	UserAgent      string
}

type ListAuditLogRequest struct {
	pagination.Pagination
	OrganisationID snowflake.ID
	Action         string
	TargetType     string
	TargetID       string
	ActorType      string
	StartAt        *time.Time
	EndAt          *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganisation = errors.New("invalid_organisation")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
