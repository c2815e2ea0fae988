package projection

import (
	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/internal/submission/domain"
)

// CanSubmit decides whether the given file may be marked as submitted. The
// decision is anchored on the exact FileID being submitted, not on the newest
// upload: a concurrent re-upload must not change the verdict for the file the
// caller asked about.
func CanSubmit(events []domain.Event, submissionType domain.SubmissionType, fileID uuid.UUID) bool {
	sorted := sortedCopy(events)
	switch submissionType {
	case domain.SubmissionTypeProducer:
		return canSubmitPomFile(sorted, fileID)
	case domain.SubmissionTypeRegistration:
		return canSubmitRegistrationFile(sorted, fileID)
	default:
		// Other submission types carry no file pipeline to gate on.
		return true
	}
}

func canSubmitPomFile(sorted []domain.Event, fileID uuid.UUID) bool {
	result, ok := latestResultForFile(sorted, fileID)
	if !ok || result.ScanResult != domain.ScanResultSuccess {
		return false
	}
	if result.RequiresRowValidation != nil && !*result.RequiresRowValidation {
		return true
	}

	split, ok := latestCheckSplitter(sorted, result.BlobName)
	if !ok || len(split.Errors) > 0 {
		return false
	}
	rowEvent, ok := latestRowValidation(sorted, domain.EventTypeProducerValidation, result.BlobName)
	if !ok {
		return false
	}
	outcome, _ := domain.RowOutcome(rowEvent)
	return outcome.IsValid
}

func canSubmitRegistrationFile(sorted []domain.Event, fileID uuid.UUID) bool {
	check, ok := checkForFileID(sorted, domain.FileTypeCompanyDetails, fileID)
	if !ok {
		return false
	}
	return validateBundleFromCheck(sorted, check).ValidationPass
}
