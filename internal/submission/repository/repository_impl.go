package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/packflow/internal/submission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateSubmission(ctx context.Context, db *gorm.DB, submission *domain.Submission) error {
	return db.WithContext(ctx).Create(submission).Error
}

func (r *repo) GetSubmission(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Submission, error) {
	var item domain.Submission
	err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListSubmissions(ctx context.Context, db *gorm.DB, filter domain.ListSubmissionsFilter) ([]*domain.Submission, error) {
	var items []*domain.Submission
	stmt := db.WithContext(ctx).Model(&domain.Submission{}).
		Where("organisation_id = ?", filter.OrganisationID)

	if filter.SubmissionType != "" {
		stmt = stmt.Where("submission_type = ?", filter.SubmissionType)
	}
	if period := strings.TrimSpace(filter.SubmissionPeriod); period != "" {
		stmt = stmt.Where("submission_period = ?", period)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created < ?) OR (created = ? AND id < ?)",
			filter.Cursor.Created,
			filter.Cursor.Created,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSubmitted flips the cached submitted flag. The flag is monotonic; there
// is no way back to false.
func (r *repo) MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE submissions SET is_submitted = TRUE WHERE id = ?`,
		id,
	).Error
}

func (r *repo) SetAppReference(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE submissions SET app_reference_number = ? WHERE id = ?`,
		reference,
		id,
	).Error
}

func (r *repo) AppendEvent(ctx context.Context, db *gorm.DB, event domain.Event) error {
	record, err := domain.NewEventRecord(event)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, submissionID snowflake.ID, filter domain.ListEventsFilter) ([]domain.Event, error) {
	var records []domain.EventRecord
	stmt := db.WithContext(ctx).Model(&domain.EventRecord{}).
		Where("submission_id = ?", submissionID)

	if len(filter.EventTypes) > 0 {
		stmt = stmt.Where("event_type IN ?", filter.EventTypes)
	}

	if err := stmt.Order("created asc, id asc").Find(&records).Error; err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(records))
	for i := range records {
		event, err := records[i].Decode()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
