package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/pkg/db/pagination"
)

type CreateSubmissionRequest struct {
	OrganisationID     snowflake.ID   `json:"organisation_id"`
	ComplianceSchemeID *snowflake.ID  `json:"compliance_scheme_id,omitempty"`
	SubmissionType     SubmissionType `json:"submission_type"`
	SubmissionPeriod   string         `json:"submission_period"`
}

type ListSubmissionsRequest struct {
	pagination.Pagination
	OrganisationID   snowflake.ID
	SubmissionType   SubmissionType
	SubmissionPeriod string
}

type ListSubmissionsResponse struct {
	pagination.PageInfo
	Submissions []Submission `json:"submissions"`
}

// AppendEventRequest appends one decoded event variant to a submission's log.
type AppendEventRequest struct {
	SubmissionID snowflake.ID
	UserID       *snowflake.ID
	Event        Event
}

type FileValidityRequest struct {
	SubmissionID      snowflake.ID
	FileType          FileType
	RegistrationSetID *uuid.UUID
}

// SubmitRequest asks for a specific uploaded file to be marked submitted.
type SubmitRequest struct {
	SubmissionID       snowflake.ID
	UserID             *snowflake.ID
	FileID             uuid.UUID
	SubmittedBy        string
	AppReferenceNumber string
	IsResubmission     *bool
}

// ResubmissionReferenceRequest generates and records a resubmission
// application reference.
type ResubmissionReferenceRequest struct {
	SubmissionID snowflake.ID
	UserID       *snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateSubmissionRequest) (*Submission, error)
	List(ctx context.Context, req ListSubmissionsRequest) (ListSubmissionsResponse, error)

	AppendEvent(ctx context.Context, req AppendEventRequest) (Event, error)

	GetStatus(ctx context.Context, submissionID snowflake.ID) (*SubmissionStatus, error)
	GetFileValidity(ctx context.Context, req FileValidityRequest) (FileValidity, error)
	GetRegistrationVerdict(ctx context.Context, submissionID snowflake.ID) (RegistrationVerdict, error)

	Submit(ctx context.Context, req SubmitRequest) error
	CreateResubmissionReference(ctx context.Context, req ResubmissionReferenceRequest) (string, error)
}

var (
	ErrSubmissionNotFound      = errors.New("submission_not_found")
	ErrSubmissionInvalid       = errors.New("submission_invalid")
	ErrInvalidOrganisation     = errors.New("invalid_organisation")
	ErrInvalidSubmissionType   = errors.New("invalid_submission_type")
	ErrInvalidSubmissionPeriod = errors.New("invalid_submission_period")
	ErrInvalidFileType         = errors.New("invalid_file_type")
	ErrInvalidEvent            = errors.New("invalid_event")
	ErrInvalidPageToken        = errors.New("invalid_page_token")
)
