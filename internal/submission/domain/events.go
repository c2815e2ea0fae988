package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeAntivirusCheck                          EventType = "antivirus_check"
	EventTypeAntivirusResult                         EventType = "antivirus_result"
	EventTypeCheckSplitterValidation                 EventType = "check_splitter_validation"
	EventTypeProducerValidation                      EventType = "producer_validation"
	EventTypeRegistrationValidation                  EventType = "registration_validation"
	EventTypeBrandValidation                         EventType = "brand_validation"
	EventTypePartnerValidation                       EventType = "partner_validation"
	EventTypeSubmitted                               EventType = "submitted"
	EventTypeRegulatorPomDecision                    EventType = "regulator_pom_decision"
	EventTypeRegulatorRegistrationDecision           EventType = "regulator_registration_decision"
	EventTypeRegulatorOrgRegistrationDecision        EventType = "regulator_org_registration_decision"
	EventTypeFeePayment                              EventType = "fee_payment"
	EventTypeApplicationSubmitted                    EventType = "application_submitted"
	EventTypeResubmissionReferenceCreated            EventType = "resubmission_reference_created"
	EventTypeResubmissionApplicationSubmittedCreated EventType = "resubmission_application_submitted_created"
	EventTypeResubmissionFeeViewCreated              EventType = "resubmission_fee_view_created"
)

type FileType string

const (
	FileTypePom            FileType = "pom"
	FileTypeCompanyDetails FileType = "company_details"
	FileTypeBrands         FileType = "brands"
	FileTypePartnerships   FileType = "partnerships"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypePom, FileTypeCompanyDetails, FileTypeBrands, FileTypePartnerships:
		return true
	default:
		return false
	}
}

type ScanResult string

const (
	ScanResultSuccess          ScanResult = "success"
	ScanResultQuarantined      ScanResult = "quarantined"
	ScanResultFileInaccessible ScanResult = "file_inaccessible"
	ScanResultFailed           ScanResult = "failed"
)

type RegulatorDecision string

const (
	RegulatorDecisionNone      RegulatorDecision = "none"
	RegulatorDecisionAccepted  RegulatorDecision = "accepted"
	RegulatorDecisionApproved  RegulatorDecision = "approved"
	RegulatorDecisionCancelled RegulatorDecision = "cancelled"
	RegulatorDecisionQueried   RegulatorDecision = "queried"
	RegulatorDecisionRejected  RegulatorDecision = "rejected"
)

// EventHeader carries the fields common to every event variant. Header fields
// are persisted as columns, not in the payload.
type EventHeader struct {
	ID           snowflake.ID  `json:"-"`
	SubmissionID snowflake.ID  `json:"-"`
	UserID       *snowflake.ID `json:"-"`
	Created      time.Time     `json:"-"`
}

func (h EventHeader) Header() EventHeader { return h }

// Event is the closed set of immutable submission events.
type Event interface {
	Header() EventHeader
	EventType() EventType
}

// AntivirusCheckEvent records a file upload being handed to the scanner.
type AntivirusCheckEvent struct {
	EventHeader
	FileID            uuid.UUID  `json:"file_id"`
	RegistrationSetID *uuid.UUID `json:"registration_set_id,omitempty"`
	FileName          string     `json:"file_name"`
	FileType          FileType   `json:"file_type"`
	Errors            []string   `json:"errors,omitempty"`
}

func (AntivirusCheckEvent) EventType() EventType { return EventTypeAntivirusCheck }

// AntivirusResultEvent records the scan verdict. It correlates back to the
// check by FileID and forward to row validation by BlobName: blob identity
// survives re-upload retries even when the file id changes.
type AntivirusResultEvent struct {
	EventHeader
	FileID                uuid.UUID  `json:"file_id"`
	BlobName              string     `json:"blob_name"`
	ScanResult            ScanResult `json:"scan_result"`
	RequiresRowValidation *bool      `json:"requires_row_validation,omitempty"`
	Errors                []string   `json:"errors,omitempty"`
}

func (AntivirusResultEvent) EventType() EventType { return EventTypeAntivirusResult }

// CheckSplitterValidationEvent records the structural split of a producer
// records file into per-producer data sets.
type CheckSplitterValidationEvent struct {
	EventHeader
	BlobName  string   `json:"blob_name"`
	DataCount int      `json:"data_count"`
	Errors    []string `json:"errors,omitempty"`
}

func (CheckSplitterValidationEvent) EventType() EventType { return EventTypeCheckSplitterValidation }

// RowValidationOutcome is the shared payload of the row-level validation
// variants.
type RowValidationOutcome struct {
	BlobName     string   `json:"blob_name"`
	IsValid      bool     `json:"is_valid"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Errors       []string `json:"errors,omitempty"`
}

type ProducerValidationEvent struct {
	EventHeader
	RowValidationOutcome
}

func (ProducerValidationEvent) EventType() EventType { return EventTypeProducerValidation }

type RegistrationValidationEvent struct {
	EventHeader
	RowValidationOutcome
	RequiresBrandsFile       bool `json:"requires_brands_file"`
	RequiresPartnershipsFile bool `json:"requires_partnerships_file"`
	OrganisationMemberCount  int  `json:"organisation_member_count"`
	RowErrorCount            int  `json:"row_error_count"`
	HasMaxRowErrors          bool `json:"has_max_row_errors"`
}

func (RegistrationValidationEvent) EventType() EventType { return EventTypeRegistrationValidation }

type BrandValidationEvent struct {
	EventHeader
	RowValidationOutcome
}

func (BrandValidationEvent) EventType() EventType { return EventTypeBrandValidation }

type PartnerValidationEvent struct {
	EventHeader
	RowValidationOutcome
}

func (PartnerValidationEvent) EventType() EventType { return EventTypePartnerValidation }

// SubmittedEvent records a file being submitted to the regulator.
type SubmittedEvent struct {
	EventHeader
	FileID         uuid.UUID `json:"file_id"`
	FileName       string    `json:"file_name,omitempty"`
	SubmittedBy    string    `json:"submitted_by"`
	IsResubmission *bool     `json:"is_resubmission,omitempty"`
}

func (SubmittedEvent) EventType() EventType { return EventTypeSubmitted }

// DecisionDetails is the shared payload of the regulator decision variants.
type DecisionDetails struct {
	Decision                    RegulatorDecision `json:"decision"`
	Comments                    string            `json:"comments,omitempty"`
	DecisionDate                *time.Time        `json:"decision_date,omitempty"`
	RegistrationReferenceNumber string            `json:"registration_reference_number,omitempty"`
}

type RegulatorPomDecisionEvent struct {
	EventHeader
	DecisionDetails
}

func (RegulatorPomDecisionEvent) EventType() EventType { return EventTypeRegulatorPomDecision }

type RegulatorRegistrationDecisionEvent struct {
	EventHeader
	DecisionDetails
}

func (RegulatorRegistrationDecisionEvent) EventType() EventType {
	return EventTypeRegulatorRegistrationDecision
}

type RegulatorOrgRegistrationDecisionEvent struct {
	EventHeader
	DecisionDetails
}

func (RegulatorOrgRegistrationDecisionEvent) EventType() EventType {
	return EventTypeRegulatorOrgRegistrationDecision
}

type FeePaymentEvent struct {
	EventHeader
	ApplicationReferenceNumber string `json:"application_reference_number"`
	PaymentMethod              string `json:"payment_method"`
	PaymentStatus              string `json:"payment_status"`
	PaidAmount                 int64  `json:"paid_amount"`
}

func (FeePaymentEvent) EventType() EventType { return EventTypeFeePayment }

type ApplicationSubmittedEvent struct {
	EventHeader
	ApplicationReferenceNumber string    `json:"application_reference_number"`
	SubmissionDate             time.Time `json:"submission_date"`
	Comments                   string    `json:"comments,omitempty"`
}

func (ApplicationSubmittedEvent) EventType() EventType { return EventTypeApplicationSubmitted }

// ResubmissionReferenceCreatedEvent marks that a resubmission application
// reference was generated for the submission.
type ResubmissionReferenceCreatedEvent struct {
	EventHeader
	ApplicationReferenceNumber string `json:"application_reference_number,omitempty"`
}

func (ResubmissionReferenceCreatedEvent) EventType() EventType {
	return EventTypeResubmissionReferenceCreated
}

type ResubmissionApplicationSubmittedCreatedEvent struct {
	EventHeader
}

func (ResubmissionApplicationSubmittedCreatedEvent) EventType() EventType {
	return EventTypeResubmissionApplicationSubmittedCreated
}

type ResubmissionFeeViewCreatedEvent struct {
	EventHeader
}

func (ResubmissionFeeViewCreatedEvent) EventType() EventType {
	return EventTypeResubmissionFeeViewCreated
}

// RowValidationEventType maps a file type to its row-level validation variant.
func RowValidationEventType(fileType FileType) EventType {
	switch fileType {
	case FileTypePom:
		return EventTypeProducerValidation
	case FileTypeCompanyDetails:
		return EventTypeRegistrationValidation
	case FileTypeBrands:
		return EventTypeBrandValidation
	case FileTypePartnerships:
		return EventTypePartnerValidation
	default:
		return ""
	}
}

// RowOutcome extracts the shared row-validation payload from an event, if it
// is one of the row-validation variants.
func RowOutcome(e Event) (RowValidationOutcome, bool) {
	switch v := e.(type) {
	case ProducerValidationEvent:
		return v.RowValidationOutcome, true
	case RegistrationValidationEvent:
		return v.RowValidationOutcome, true
	case BrandValidationEvent:
		return v.RowValidationOutcome, true
	case PartnerValidationEvent:
		return v.RowValidationOutcome, true
	default:
		return RowValidationOutcome{}, false
	}
}

// DecisionOf extracts the shared decision payload from an event, if it is one
// of the regulator decision variants.
func DecisionOf(e Event) (DecisionDetails, bool) {
	switch v := e.(type) {
	case RegulatorPomDecisionEvent:
		return v.DecisionDetails, true
	case RegulatorRegistrationDecisionEvent:
		return v.DecisionDetails, true
	case RegulatorOrgRegistrationDecisionEvent:
		return v.DecisionDetails, true
	default:
		return DecisionDetails{}, false
	}
}
