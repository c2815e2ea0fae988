package projection

import (
	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/internal/submission/domain"
)

// ReduceFileChain collapses a file type's upload/scan/row-validation chain
// into a single FileValidity. The chain is anchored on the newest antivirus
// check for the file type, optionally restricted to one registration set.
//
// Correlation is asymmetric on purpose: the scan result is matched to its
// check by FileID, but row validation is matched to the scan result by
// BlobName. A re-upload retry produces a fresh FileID while the blob content
// identity is stable, so row-validation outcomes keyed by blob survive the
// retry.
func ReduceFileChain(events []domain.Event, fileType domain.FileType, setID *uuid.UUID) domain.FileValidity {
	sorted := sortedCopy(events)
	check, ok := latestCheck(sorted, fileType, setID)
	if !ok {
		return domain.FileValidity{FileType: fileType}
	}
	return reduceFromCheck(sorted, check)
}

// reduceFromCheck evaluates the chain anchored at a specific antivirus check.
// Callers that need a historical or exact-file verdict anchor here instead of
// on the newest check.
func reduceFromCheck(sorted []domain.Event, check domain.AntivirusCheckEvent) domain.FileValidity {
	validity := domain.FileValidity{
		FileType:          check.FileType,
		Uploaded:          true,
		FileID:            check.FileID,
		FileName:          check.FileName,
		RegistrationSetID: check.RegistrationSetID,
		UploadedBy:        check.UserID,
		UploadedAt:        check.Created,
	}

	result, ok := latestResultForFile(sorted, check.FileID)
	if !ok {
		// Scan still pending. Uploaded, nothing more.
		validity.Errors = firstNonEmpty(check.Errors)
		return validity
	}

	if result.ScanResult != domain.ScanResultSuccess {
		validity.Errors = firstNonEmpty(check.Errors, result.Errors)
		return validity
	}

	// An explicit false exempts the file from row validation. Nil means the
	// producer of the event predates the flag and row validation is required.
	if result.RequiresRowValidation != nil && !*result.RequiresRowValidation {
		validity.DataComplete = true
		validity.Valid = true
		validity.Errors = firstNonEmpty(check.Errors, result.Errors)
		return validity
	}

	rowEvent, ok := latestRowValidation(sorted, domain.RowValidationEventType(check.FileType), result.BlobName)
	if !ok {
		validity.Errors = firstNonEmpty(check.Errors, result.Errors)
		return validity
	}

	outcome, _ := domain.RowOutcome(rowEvent)
	validity.DataComplete = true
	validity.Valid = outcome.IsValid
	validity.Errors = firstNonEmpty(check.Errors, result.Errors, outcome.Errors)
	return validity
}
