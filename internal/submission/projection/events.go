// Package projection derives read models by folding over an immutable event
// snapshot. Every function here is pure: no I/O, no clock reads, identical
// output for identical input.
package projection

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/internal/submission/domain"
)

// sortedCopy orders a snapshot by Created ascending. Equal timestamps order
// by event ID ascending: snowflake ids are time-sortable, which keeps every
// "latest" rule deterministic when the store returns colliding timestamps.
func sortedCopy(events []domain.Event) []domain.Event {
	out := make([]domain.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return eventBefore(out[i], out[j])
	})
	return out
}

func eventBefore(a, b domain.Event) bool {
	ha, hb := a.Header(), b.Header()
	if !ha.Created.Equal(hb.Created) {
		return ha.Created.Before(hb.Created)
	}
	return ha.ID < hb.ID
}

// latestCheck returns the newest antivirus check for the file type, optionally
// restricted to a registration set.
func latestCheck(sorted []domain.Event, fileType domain.FileType, setID *uuid.UUID) (domain.AntivirusCheckEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		check, ok := sorted[i].(domain.AntivirusCheckEvent)
		if !ok || check.FileType != fileType {
			continue
		}
		if setID != nil && (check.RegistrationSetID == nil || *check.RegistrationSetID != *setID) {
			continue
		}
		return check, true
	}
	return domain.AntivirusCheckEvent{}, false
}

// checksOf returns every antivirus check for the file type, oldest first.
func checksOf(sorted []domain.Event, fileType domain.FileType) []domain.AntivirusCheckEvent {
	var checks []domain.AntivirusCheckEvent
	for _, e := range sorted {
		if check, ok := e.(domain.AntivirusCheckEvent); ok && check.FileType == fileType {
			checks = append(checks, check)
		}
	}
	return checks
}

// checkForFileID returns the antivirus check that introduced the given file.
func checkForFileID(sorted []domain.Event, fileType domain.FileType, fileID uuid.UUID) (domain.AntivirusCheckEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		check, ok := sorted[i].(domain.AntivirusCheckEvent)
		if ok && check.FileType == fileType && check.FileID == fileID {
			return check, true
		}
	}
	return domain.AntivirusCheckEvent{}, false
}

// latestResultForFile correlates a scan result to its check by FileID.
func latestResultForFile(sorted []domain.Event, fileID uuid.UUID) (domain.AntivirusResultEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		result, ok := sorted[i].(domain.AntivirusResultEvent)
		if ok && result.FileID == fileID {
			return result, true
		}
	}
	return domain.AntivirusResultEvent{}, false
}

// latestRowValidation correlates a row-validation event to a scan result by
// BlobName.
func latestRowValidation(sorted []domain.Event, eventType domain.EventType, blobName string) (domain.Event, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		if e.EventType() != eventType {
			continue
		}
		if outcome, ok := domain.RowOutcome(e); ok && outcome.BlobName == blobName {
			return e, true
		}
	}
	return nil, false
}

func latestCheckSplitter(sorted []domain.Event, blobName string) (domain.CheckSplitterValidationEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		split, ok := sorted[i].(domain.CheckSplitterValidationEvent)
		if ok && split.BlobName == blobName {
			return split, true
		}
	}
	return domain.CheckSplitterValidationEvent{}, false
}

func latestSubmitted(sorted []domain.Event) (domain.SubmittedEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		if submitted, ok := sorted[i].(domain.SubmittedEvent); ok {
			return submitted, true
		}
	}
	return domain.SubmittedEvent{}, false
}

// latestDecisionAfter returns the newest regulator decision created strictly
// after the horizon, together with its creation time. Placeholder decisions
// with the value "none" never drive status and are skipped.
func latestDecisionAfter(sorted []domain.Event, horizon time.Time) (domain.DecisionDetails, time.Time, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		details, ok := domain.DecisionOf(e)
		if !ok || details.Decision == domain.RegulatorDecisionNone {
			continue
		}
		created := e.Header().Created
		if !created.After(horizon) {
			continue
		}
		return details, created, true
	}
	return domain.DecisionDetails{}, time.Time{}, false
}

func latestFeePaymentAfter(sorted []domain.Event, horizon time.Time) (domain.FeePaymentEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		fee, ok := sorted[i].(domain.FeePaymentEvent)
		if ok && fee.Created.After(horizon) {
			return fee, true
		}
	}
	return domain.FeePaymentEvent{}, false
}

func latestApplicationSubmittedAfter(sorted []domain.Event, horizon time.Time) (domain.ApplicationSubmittedEvent, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		app, ok := sorted[i].(domain.ApplicationSubmittedEvent)
		if ok && app.Created.After(horizon) {
			return app, true
		}
	}
	return domain.ApplicationSubmittedEvent{}, false
}

// eventsBefore filters the sorted snapshot to events created strictly before
// the horizon. Used for point-in-time bundle evaluation.
func eventsBefore(sorted []domain.Event, horizon time.Time) []domain.Event {
	var out []domain.Event
	for _, e := range sorted {
		if e.Header().Created.Before(horizon) {
			out = append(out, e)
		}
	}
	return out
}

func firstNonEmpty(lists ...[]string) []string {
	for _, list := range lists {
		if len(list) > 0 {
			return list
		}
	}
	return nil
}
