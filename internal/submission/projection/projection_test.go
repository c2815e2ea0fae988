package projection

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/internal/submission/domain"
)

var fixtureStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fixture builds event snapshots with monotonically increasing ids and
// caller-controlled timestamps, expressed as minute offsets from a fixed
// start.
type fixture struct {
	seq          int64
	submissionID snowflake.ID
}

func newFixture() *fixture {
	return &fixture{submissionID: snowflake.ID(9000)}
}

func (f *fixture) header(min int) domain.EventHeader {
	f.seq++
	return domain.EventHeader{
		ID:           snowflake.ID(f.seq),
		SubmissionID: f.submissionID,
		Created:      fixtureStart.Add(time.Duration(min) * time.Minute),
	}
}

func (f *fixture) check(min int, fileType domain.FileType, fileID uuid.UUID, setID *uuid.UUID, name string) domain.AntivirusCheckEvent {
	return domain.AntivirusCheckEvent{
		EventHeader:       f.header(min),
		FileID:            fileID,
		RegistrationSetID: setID,
		FileName:          name,
		FileType:          fileType,
	}
}

func (f *fixture) result(min int, fileID uuid.UUID, blobName string, scan domain.ScanResult) domain.AntivirusResultEvent {
	return domain.AntivirusResultEvent{
		EventHeader: f.header(min),
		FileID:      fileID,
		BlobName:    blobName,
		ScanResult:  scan,
	}
}

func (f *fixture) resultExempt(min int, fileID uuid.UUID, blobName string) domain.AntivirusResultEvent {
	e := f.result(min, fileID, blobName, domain.ScanResultSuccess)
	e.RequiresRowValidation = boolPtr(false)
	return e
}

func (f *fixture) splitter(min int, blobName string, dataCount int, errs ...string) domain.CheckSplitterValidationEvent {
	return domain.CheckSplitterValidationEvent{
		EventHeader: f.header(min),
		BlobName:    blobName,
		DataCount:   dataCount,
		Errors:      errs,
	}
}

func (f *fixture) producerValidation(min int, blobName string, valid bool, errs ...string) domain.ProducerValidationEvent {
	return domain.ProducerValidationEvent{
		EventHeader:          f.header(min),
		RowValidationOutcome: outcome(blobName, valid, errs),
	}
}

func (f *fixture) registrationValidation(min int, blobName string, valid, requiresBrands, requiresPartnerships bool, errs ...string) domain.RegistrationValidationEvent {
	return domain.RegistrationValidationEvent{
		EventHeader:              f.header(min),
		RowValidationOutcome:     outcome(blobName, valid, errs),
		RequiresBrandsFile:       requiresBrands,
		RequiresPartnershipsFile: requiresPartnerships,
	}
}

func (f *fixture) brandValidation(min int, blobName string, valid bool, errs ...string) domain.BrandValidationEvent {
	return domain.BrandValidationEvent{
		EventHeader:          f.header(min),
		RowValidationOutcome: outcome(blobName, valid, errs),
	}
}

func (f *fixture) partnerValidation(min int, blobName string, valid bool, errs ...string) domain.PartnerValidationEvent {
	return domain.PartnerValidationEvent{
		EventHeader:          f.header(min),
		RowValidationOutcome: outcome(blobName, valid, errs),
	}
}

func (f *fixture) submitted(min int, fileID uuid.UUID, name, by string) domain.SubmittedEvent {
	return domain.SubmittedEvent{
		EventHeader: f.header(min),
		FileID:      fileID,
		FileName:    name,
		SubmittedBy: by,
	}
}

func (f *fixture) decision(min int, decision domain.RegulatorDecision, comments string) domain.RegulatorPomDecisionEvent {
	return domain.RegulatorPomDecisionEvent{
		EventHeader: f.header(min),
		DecisionDetails: domain.DecisionDetails{
			Decision: decision,
			Comments: comments,
		},
	}
}

func (f *fixture) feePayment(min int, ref string, amount int64) domain.FeePaymentEvent {
	return domain.FeePaymentEvent{
		EventHeader:                f.header(min),
		ApplicationReferenceNumber: ref,
		PaymentMethod:              "online",
		PaymentStatus:              "paid",
		PaidAmount:                 amount,
	}
}

func (f *fixture) applicationSubmitted(min int, ref string, submissionDate time.Time) domain.ApplicationSubmittedEvent {
	return domain.ApplicationSubmittedEvent{
		EventHeader:                f.header(min),
		ApplicationReferenceNumber: ref,
		SubmissionDate:             submissionDate,
	}
}

func outcome(blobName string, valid bool, errs []string) domain.RowValidationOutcome {
	out := domain.RowValidationOutcome{BlobName: blobName, IsValid: valid, Errors: errs}
	if !valid {
		out.ErrorCount = len(errs)
		if out.ErrorCount == 0 {
			out.ErrorCount = 1
		}
	}
	return out
}

// reversed returns the snapshot in the opposite order, for order-independence
// checks.
func reversed(events []domain.Event) []domain.Event {
	out := make([]domain.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func minuteOf(min int) time.Time {
	return fixtureStart.Add(time.Duration(min) * time.Minute)
}
