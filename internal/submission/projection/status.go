package projection

import (
	"time"

	"github.com/smallbiznis/packflow/internal/submission/domain"
)

// ProjectStatus recomputes the composite status read model from the full
// event history. Nothing is cached between calls: the snapshot plus the
// submission row fully determine the output.
//
// Supersession rule: once a newer upload exists, every decision, fee payment
// and application-submitted event older than that upload stops contributing.
// The new upload opens a fresh review cycle with the regulator.
func ProjectStatus(sub domain.Submission, events []domain.Event, lateFeeDeadline time.Time) domain.SubmissionStatus {
	sorted := sortedCopy(events)

	status := domain.SubmissionStatus{
		SubmissionID:       sub.ID,
		SubmissionType:     sub.SubmissionType,
		SubmissionPeriod:   sub.SubmissionPeriod,
		Status:             domain.StatusNotStarted,
		IsSubmitted:        sub.IsSubmitted,
		AppReferenceNumber: sub.AppReferenceNumber,
	}

	anchorType := anchorFileType(sub.SubmissionType)
	lastUpload, hasUpload := latestCheck(sorted, anchorType, nil)
	if hasUpload {
		status.LastUploadedFileName = lastUpload.FileName
		uploadedAt := lastUpload.Created
		status.LastUploadedAt = &uploadedAt
	}
	if sub.SubmissionType == domain.SubmissionTypeRegistration {
		status.LastValidFiles = lastValidFiles(sorted)
	}

	if !hasEverValidChain(sorted, sub, status.LastValidFiles) {
		return status
	}

	if !sub.IsSubmitted {
		status.Status = domain.StatusFileUploaded
		return status
	}

	// Everything at or before the last upload is superseded by it.
	var horizon time.Time
	if hasUpload {
		horizon = lastUpload.Created
	}

	lastSubmit, hasSubmit := latestSubmitted(sorted)
	decision, decisionAt, hasDecision := latestDecisionAfter(sorted, horizon)

	switch {
	case hasUpload && hasSubmit && lastUpload.Created.After(lastSubmit.Created):
		// The newer upload holds the submission in the re-upload state even
		// when the regulator has already ruled on it; a post-upload decision
		// fills the informational fields without driving the state.
		status.Status = domain.StatusSubmittedAndHasRecentFileUpload
		if hasDecision {
			status.RegulatorDecision = decision.Decision
			status.RegulatorComments = decision.Comments
			status.DecisionDate = decision.DecisionDate
			status.RegistrationReferenceNumber = decision.RegistrationReferenceNumber
		}
	case hasDecision:
		status.Status = decisionStatus(decision.Decision)
		status.RegulatorDecision = decision.Decision
		status.RegulatorComments = decision.Comments
		status.DecisionDate = decision.DecisionDate
		status.RegistrationReferenceNumber = decision.RegistrationReferenceNumber
		if hasSubmit && lastSubmit.Created.After(decisionAt) {
			status.LastSubmittedFile = submittedFileInfo(lastSubmit)
		}
	default:
		status.Status = domain.StatusSubmittedToRegulator
		if hasSubmit {
			status.LastSubmittedFile = submittedFileInfo(lastSubmit)
		}
	}

	if fee, ok := latestFeePaymentAfter(sorted, horizon); ok {
		status.FeePayment = &domain.FeePaymentInfo{
			ApplicationReferenceNumber: fee.ApplicationReferenceNumber,
			PaymentMethod:              fee.PaymentMethod,
			PaymentStatus:              fee.PaymentStatus,
			PaidAmount:                 fee.PaidAmount,
		}
	}
	if app, ok := latestApplicationSubmittedAfter(sorted, horizon); ok {
		status.ApplicationSubmitted = &domain.ApplicationSubmittedInfo{
			ApplicationReferenceNumber: app.ApplicationReferenceNumber,
			SubmissionDate:             app.SubmissionDate,
			Comments:                   app.Comments,
		}
		resubmission := hasSubmit && lastSubmit.IsResubmission != nil && *lastSubmit.IsResubmission
		if app.SubmissionDate.After(lateFeeDeadline) && !resubmission {
			status.IsLateFeeApplicable = true
		}
	}

	return status
}

// anchorFileType is the file type whose pipeline drives the status machine.
func anchorFileType(submissionType domain.SubmissionType) domain.FileType {
	if submissionType == domain.SubmissionTypeProducer {
		return domain.FileTypePom
	}
	return domain.FileTypeCompanyDetails
}

// hasEverValidChain reports whether any upload of the anchor file type ever
// completed its pipeline successfully, judging each historical chain against
// the events that existed while it was the current one. A later invalid
// re-upload does not reset the submission to NotStarted.
func hasEverValidChain(sorted []domain.Event, sub domain.Submission, lastValid *domain.LastValidFiles) bool {
	switch sub.SubmissionType {
	case domain.SubmissionTypeProducer:
		checks := checksOf(sorted, domain.FileTypePom)
		for i := len(checks) - 1; i >= 0; i-- {
			window := sorted
			if i+1 < len(checks) {
				window = eventsBefore(sorted, checks[i+1].Created)
			}
			if v := reduceFromCheck(window, checks[i]); v.DataComplete && v.Valid {
				return true
			}
		}
		return false
	case domain.SubmissionTypeRegistration:
		return lastValid != nil
	default:
		// No file pipeline for these types; submission state and event
		// presence decide alone.
		return sub.IsSubmitted || len(sorted) > 0
	}
}

func decisionStatus(decision domain.RegulatorDecision) domain.Status {
	switch decision {
	case domain.RegulatorDecisionAccepted:
		return domain.StatusAcceptedByRegulator
	case domain.RegulatorDecisionApproved:
		return domain.StatusApprovedByRegulator
	case domain.RegulatorDecisionCancelled:
		return domain.StatusCancelledByRegulator
	case domain.RegulatorDecisionQueried:
		return domain.StatusQueriedByRegulator
	case domain.RegulatorDecisionRejected:
		return domain.StatusRejectedByRegulator
	default:
		return domain.StatusSubmittedToRegulator
	}
}

func submittedFileInfo(e domain.SubmittedEvent) *domain.SubmittedFileInfo {
	return &domain.SubmittedFileInfo{
		FileID:      e.FileID,
		FileName:    e.FileName,
		SubmittedBy: e.SubmittedBy,
		SubmittedAt: e.Created,
	}
}
