// Package domain contains the submission aggregate, its immutable event
// variants, and the read models derived from them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubmissionType string

const (
	SubmissionTypeProducer       SubmissionType = "producer"
	SubmissionTypeRegistration   SubmissionType = "registration"
	SubmissionTypeAccreditation  SubmissionType = "accreditation"
	SubmissionTypeSubsidiary     SubmissionType = "subsidiary"
	SubmissionTypeCompaniesHouse SubmissionType = "companies_house"
)

func (t SubmissionType) Valid() bool {
	switch t {
	case SubmissionTypeProducer, SubmissionTypeRegistration, SubmissionTypeAccreditation,
		SubmissionTypeSubsidiary, SubmissionTypeCompaniesHouse:
		return true
	default:
		return false
	}
}

// Submission is the aggregate row. The event log is the source of truth;
// IsSubmitted and AppReferenceNumber are cached projections maintained by the
// submit transition only.
type Submission struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrganisationID     snowflake.ID   `json:"organisation_id" gorm:"not null;index"`
	ComplianceSchemeID *snowflake.ID  `json:"compliance_scheme_id,omitempty"`
	SubmissionType     SubmissionType `json:"submission_type" gorm:"type:text;not null"`
	SubmissionPeriod   string         `json:"submission_period" gorm:"type:text;not null"`
	IsSubmitted        bool           `json:"is_submitted" gorm:"not null;default:false"`
	AppReferenceNumber string         `json:"app_reference_number" gorm:"type:text;not null;default:''"`
	Created            time.Time      `json:"created" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Submission) TableName() string { return "submissions" }
