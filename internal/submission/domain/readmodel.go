package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// FileValidity is the reduced state of one file's check/scan/row-validation
// chain.
type FileValidity struct {
	FileType          FileType   `json:"file_type"`
	Uploaded          bool       `json:"uploaded"`
	DataComplete      bool       `json:"data_complete"`
	Valid             bool       `json:"valid"`
	FileID            uuid.UUID  `json:"file_id,omitempty"`
	FileName          string     `json:"file_name,omitempty"`
	RegistrationSetID *uuid.UUID `json:"registration_set_id,omitempty"`
	UploadedBy        *snowflake.ID `json:"uploaded_by,omitempty"`
	UploadedAt        time.Time  `json:"uploaded_at,omitempty"`
	Errors            []string   `json:"errors,omitempty"`
}

// LastValidFiles is the most recent bundle that was fully valid when
// evaluated against the events that existed at its own upload time.
type LastValidFiles struct {
	RegistrationSetID      *uuid.UUID    `json:"registration_set_id,omitempty"`
	CompanyDetailsFileID   uuid.UUID     `json:"company_details_file_id"`
	CompanyDetailsFileName string        `json:"company_details_file_name"`
	BrandsFileName         string        `json:"brands_file_name,omitempty"`
	PartnershipsFileName   string        `json:"partnerships_file_name,omitempty"`
	UploadedBy             *snowflake.ID `json:"uploaded_by,omitempty"`
	UploadedAt             time.Time     `json:"uploaded_at"`
}

// RegistrationVerdict is the combined verdict over a registration bundle.
type RegistrationVerdict struct {
	RegistrationSetID        *uuid.UUID      `json:"registration_set_id,omitempty"`
	CompanyDetails           FileValidity    `json:"company_details"`
	Brands                   FileValidity    `json:"brands"`
	Partnerships             FileValidity    `json:"partnerships"`
	RequiresBrandsFile       bool            `json:"requires_brands_file"`
	RequiresPartnershipsFile bool            `json:"requires_partnerships_file"`
	ValidationPass           bool            `json:"validation_pass"`
	Errors                   []string        `json:"errors,omitempty"`
	LastValidFiles           *LastValidFiles `json:"last_valid_files,omitempty"`
}

type Status string

const (
	StatusNotStarted                      Status = "not_started"
	StatusFileUploaded                    Status = "file_uploaded"
	StatusSubmittedToRegulator            Status = "submitted_to_regulator"
	StatusSubmittedAndHasRecentFileUpload Status = "submitted_and_has_recent_file_upload"
	StatusAcceptedByRegulator             Status = "accepted_by_regulator"
	StatusApprovedByRegulator             Status = "approved_by_regulator"
	StatusCancelledByRegulator            Status = "cancelled_by_regulator"
	StatusQueriedByRegulator              Status = "queried_by_regulator"
	StatusRejectedByRegulator             Status = "rejected_by_regulator"
)

// SubmittedFileInfo describes the file carried by the last Submitted event.
type SubmittedFileInfo struct {
	FileID      uuid.UUID `json:"file_id"`
	FileName    string    `json:"file_name,omitempty"`
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FeePaymentInfo mirrors the latest qualifying fee payment event.
type FeePaymentInfo struct {
	ApplicationReferenceNumber string `json:"application_reference_number"`
	PaymentMethod              string `json:"payment_method"`
	PaymentStatus              string `json:"payment_status"`
	PaidAmount                 int64  `json:"paid_amount"`
}

// ApplicationSubmittedInfo mirrors the latest qualifying application
// submission event.
type ApplicationSubmittedInfo struct {
	ApplicationReferenceNumber string    `json:"application_reference_number"`
	SubmissionDate             time.Time `json:"submission_date"`
	Comments                   string    `json:"comments,omitempty"`
}

// SubmissionStatus is the composite read model recomputed from the full event
// history on every query.
type SubmissionStatus struct {
	SubmissionID       snowflake.ID   `json:"submission_id"`
	SubmissionType     SubmissionType `json:"submission_type"`
	SubmissionPeriod   string         `json:"submission_period"`
	Status             Status         `json:"status"`
	IsSubmitted        bool           `json:"is_submitted"`
	AppReferenceNumber string         `json:"app_reference_number,omitempty"`

	LastUploadedFileName string     `json:"last_uploaded_file_name,omitempty"`
	LastUploadedAt       *time.Time `json:"last_uploaded_at,omitempty"`

	LastSubmittedFile *SubmittedFileInfo `json:"last_submitted_file,omitempty"`

	RegulatorDecision           RegulatorDecision `json:"regulator_decision,omitempty"`
	RegulatorComments           string            `json:"regulator_comments,omitempty"`
	DecisionDate                *time.Time        `json:"decision_date,omitempty"`
	RegistrationReferenceNumber string            `json:"registration_reference_number,omitempty"`

	FeePayment           *FeePaymentInfo           `json:"fee_payment,omitempty"`
	ApplicationSubmitted *ApplicationSubmittedInfo `json:"application_submitted,omitempty"`

	IsLateFeeApplicable bool `json:"is_late_fee_applicable"`

	LastValidFiles *LastValidFiles `json:"last_valid_files,omitempty"`
}
