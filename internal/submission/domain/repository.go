package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SubmissionCursor points past the last submission returned by a page.
type SubmissionCursor struct {
	ID      snowflake.ID
	Created time.Time
}

type ListSubmissionsFilter struct {
	OrganisationID   snowflake.ID
	SubmissionType   SubmissionType
	SubmissionPeriod string
	Cursor           *SubmissionCursor
	Limit            int
}

// ListEventsFilter narrows the event snapshot fetched from storage. The
// engine re-filters defensively; storage-side filtering is an optimization
// only.
type ListEventsFilter struct {
	EventTypes []EventType
}

type Repository interface {
	CreateSubmission(ctx context.Context, db *gorm.DB, submission *Submission) error
	GetSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Submission, error)
	ListSubmissions(ctx context.Context, db *gorm.DB, filter ListSubmissionsFilter) ([]*Submission, error)

	// MarkSubmitted and SetAppReference are the only mutations on the
	// submission row. Each is conditional and applied independently by the
	// submit transition.
	MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetAppReference(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string) error

	AppendEvent(ctx context.Context, db *gorm.DB, event Event) error
	ListEvents(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, filter ListEventsFilter) ([]Event, error)
}
