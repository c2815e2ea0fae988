package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/packflow/internal/audit/domain"
	"github.com/smallbiznis/packflow/internal/clock"
	"github.com/smallbiznis/packflow/internal/config"
	"github.com/smallbiznis/packflow/internal/submission/domain"
	"github.com/smallbiznis/packflow/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubRepo struct {
	submission *domain.Submission
	events     []domain.Event

	created          []*domain.Submission
	appended         []domain.Event
	markSubmitted    int
	setAppReference  int
	lastAppReference string
}

func (r *stubRepo) CreateSubmission(_ context.Context, _ *gorm.DB, submission *domain.Submission) error {
	r.created = append(r.created, submission)
	return nil
}

func (r *stubRepo) GetSubmission(_ context.Context, _ *gorm.DB, id snowflake.ID) (*domain.Submission, error) {
	if r.submission == nil || r.submission.ID != id {
		return nil, nil
	}
	copied := *r.submission
	return &copied, nil
}

func (r *stubRepo) ListSubmissions(_ context.Context, _ *gorm.DB, _ domain.ListSubmissionsFilter) ([]*domain.Submission, error) {
	if r.submission == nil {
		return nil, nil
	}
	return []*domain.Submission{r.submission}, nil
}

func (r *stubRepo) MarkSubmitted(_ context.Context, _ *gorm.DB, _ snowflake.ID) error {
	r.markSubmitted++
	return nil
}

func (r *stubRepo) SetAppReference(_ context.Context, _ *gorm.DB, _ snowflake.ID, reference string) error {
	r.setAppReference++
	r.lastAppReference = reference
	return nil
}

func (r *stubRepo) AppendEvent(_ context.Context, _ *gorm.DB, event domain.Event) error {
	r.appended = append(r.appended, event)
	return nil
}

func (r *stubRepo) ListEvents(_ context.Context, _ *gorm.DB, _ snowflake.ID, filter domain.ListEventsFilter) ([]domain.Event, error) {
	if len(filter.EventTypes) == 0 {
		return r.events, nil
	}
	allowed := make(map[domain.EventType]bool, len(filter.EventTypes))
	for _, eventType := range filter.EventTypes {
		allowed[eventType] = true
	}
	var matched []domain.Event
	for _, event := range r.events {
		if allowed[event.EventType()] {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

type stubAudit struct {
	entries []auditdomain.Entry
	err     error
}

func (a *stubAudit) Record(_ context.Context, entry auditdomain.Entry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *stubAudit) List(_ context.Context, _ auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type stubRefGen struct {
	reference string
}

func (g *stubRefGen) ApplicationReference(_ snowflake.ID, _ string) string {
	return g.reference
}

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *stubRepo, audit *stubAudit) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticComplianceConfigHolder(config.ComplianceConfig{
		DefaultLateFeeDeadline: testStart.Add(30 * 24 * time.Hour),
		LateFeeDeadlines:       map[string]time.Time{},
	})

	svc := NewService(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(testStart),
		Compliance: holder,
		Repo:       repo,
		Audit:      audit,
		RefGen:     &stubRefGen{reference: "PF-2026P1-16-01HTESTREF"},
	})
	return svc.(*Service)
}

func producerSubmission(isSubmitted bool) *domain.Submission {
	return &domain.Submission{
		ID:               snowflake.ID(100),
		OrganisationID:   snowflake.ID(42),
		SubmissionType:   domain.SubmissionTypeProducer,
		SubmissionPeriod: "2026-P1",
		IsSubmitted:      isSubmitted,
		Created:          testStart,
	}
}

func validPomEvents(fileID uuid.UUID) []domain.Event {
	header := func(id int64, min int) domain.EventHeader {
		return domain.EventHeader{
			ID:           snowflake.ID(id),
			SubmissionID: snowflake.ID(100),
			Created:      testStart.Add(time.Duration(min) * time.Minute),
		}
	}
	return []domain.Event{
		domain.AntivirusCheckEvent{
			EventHeader: header(1, 0),
			FileID:      fileID,
			FileName:    "pom.csv",
			FileType:    domain.FileTypePom,
		},
		domain.AntivirusResultEvent{
			EventHeader: header(2, 1),
			FileID:      fileID,
			BlobName:    "blob-1",
			ScanResult:  domain.ScanResultSuccess,
		},
		domain.CheckSplitterValidationEvent{
			EventHeader: header(3, 2),
			BlobName:    "blob-1",
			DataCount:   10,
		},
		domain.ProducerValidationEvent{
			EventHeader:          header(4, 3),
			RowValidationOutcome: domain.RowValidationOutcome{BlobName: "blob-1", IsValid: true},
		},
	}
}

func TestSubmit_GateRejectionWritesNothing(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(false)}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID: snowflake.ID(100),
		FileID:       uuid.New(),
		SubmittedBy:  "jo.bloggs",
	})

	assert.ErrorIs(t, err, domain.ErrSubmissionInvalid)
	assert.Zero(t, repo.markSubmitted)
	assert.Zero(t, repo.setAppReference)
	assert.Empty(t, repo.appended)
}

func TestSubmit_FirstSubmission(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(false),
		events:     validPomEvents(fileID),
	}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID:       snowflake.ID(100),
		FileID:             fileID,
		SubmittedBy:        "jo.bloggs",
		AppReferenceNumber: "APP-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.markSubmitted)
	assert.Equal(t, 1, repo.setAppReference)
	assert.Equal(t, "APP-1", repo.lastAppReference)
	require.Len(t, repo.appended, 1)

	submitted, ok := repo.appended[0].(domain.SubmittedEvent)
	require.True(t, ok)
	assert.Equal(t, fileID, submitted.FileID)
	assert.Equal(t, "pom.csv", submitted.FileName)
	assert.Equal(t, "jo.bloggs", submitted.SubmittedBy)
	assert.NotZero(t, submitted.ID)
	assert.Equal(t, testStart, submitted.Created)
}

func TestSubmit_FirstSubmissionWithoutReference(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(false),
		events:     validPomEvents(fileID),
	}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID: snowflake.ID(100),
		FileID:       fileID,
		SubmittedBy:  "jo.bloggs",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.markSubmitted)
	assert.Zero(t, repo.setAppReference)
	assert.Len(t, repo.appended, 1)
}

// A retry that only carries the reference must update the row without
// appending a duplicate Submitted event.
func TestSubmit_ReferenceOnlyRetry(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(true),
		events:     validPomEvents(fileID),
	}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID:       snowflake.ID(100),
		FileID:             fileID,
		SubmittedBy:        "jo.bloggs",
		AppReferenceNumber: "APP-2",
	})

	require.NoError(t, err)
	assert.Zero(t, repo.markSubmitted)
	assert.Equal(t, 1, repo.setAppReference)
	assert.Empty(t, repo.appended)
}

func TestSubmit_UnchangedReferenceIsNoop(t *testing.T) {
	fileID := uuid.New()
	sub := producerSubmission(true)
	sub.AppReferenceNumber = "APP-1"
	repo := &stubRepo{submission: sub, events: validPomEvents(fileID)}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID:       snowflake.ID(100),
		FileID:             fileID,
		SubmittedBy:        "jo.bloggs",
		AppReferenceNumber: "APP-1",
	})

	require.NoError(t, err)
	assert.Zero(t, repo.markSubmitted)
	assert.Zero(t, repo.setAppReference)
	assert.Empty(t, repo.appended)
}

// Re-submitting without a reference is a genuine new submission of the file,
// not a retry, so the event is appended again.
func TestSubmit_ResubmissionWithoutReferenceAppends(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(true),
		events:     validPomEvents(fileID),
	}
	svc := newTestService(t, repo, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID: snowflake.ID(100),
		FileID:       fileID,
		SubmittedBy:  "jo.bloggs",
	})

	require.NoError(t, err)
	assert.Zero(t, repo.markSubmitted)
	assert.Len(t, repo.appended, 1)
}

func TestSubmit_UnknownSubmission(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAudit{})

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID: snowflake.ID(999),
		FileID:       uuid.New(),
	})

	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

func TestSubmit_AuditFailureDoesNotPropagate(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(false),
		events:     validPomEvents(fileID),
	}
	audit := &stubAudit{err: errors.New("audit store down")}
	svc := newTestService(t, repo, audit)

	err := svc.Submit(context.Background(), domain.SubmitRequest{
		SubmissionID: snowflake.ID(100),
		FileID:       fileID,
		SubmittedBy:  "jo.bloggs",
	})

	require.NoError(t, err)
	assert.Len(t, audit.entries, 1)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAudit{})
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateSubmissionRequest{
		SubmissionType:   domain.SubmissionTypeProducer,
		SubmissionPeriod: "2026-P1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganisation)

	_, err = svc.Create(ctx, domain.CreateSubmissionRequest{
		OrganisationID:   snowflake.ID(42),
		SubmissionType:   "bogus",
		SubmissionPeriod: "2026-P1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmissionType)

	_, err = svc.Create(ctx, domain.CreateSubmissionRequest{
		OrganisationID: snowflake.ID(42),
		SubmissionType: domain.SubmissionTypeProducer,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmissionPeriod)
}

func TestCreate_GeneratesIdentity(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubAudit{})

	created, err := svc.Create(context.Background(), domain.CreateSubmissionRequest{
		OrganisationID:   snowflake.ID(42),
		SubmissionType:   domain.SubmissionTypeRegistration,
		SubmissionPeriod: " 2026-P1 ",
	})

	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "2026-P1", created.SubmissionPeriod)
	assert.Equal(t, testStart, created.Created)
	assert.False(t, created.IsSubmitted)
	require.Len(t, repo.created, 1)
}

func TestAppendEvent_StampsHeader(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(false)}
	svc := newTestService(t, repo, &stubAudit{})
	userID := snowflake.ID(7)

	stamped, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(100),
		UserID:       &userID,
		Event: domain.AntivirusCheckEvent{
			FileID:   uuid.New(),
			FileName: "pom.csv",
			FileType: domain.FileTypePom,
		},
	})

	require.NoError(t, err)
	header := stamped.Header()
	assert.NotZero(t, header.ID)
	assert.Equal(t, snowflake.ID(100), header.SubmissionID)
	require.NotNil(t, header.UserID)
	assert.Equal(t, userID, *header.UserID)
	assert.Equal(t, testStart, header.Created)
	assert.Len(t, repo.appended, 1)
}

func TestAppendEvent_ViewMarkerRecordsOnce(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(true)}
	svc := newTestService(t, repo, &stubAudit{})

	first, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(100),
		Event:        domain.ResubmissionFeeViewCreatedEvent{},
	})
	require.NoError(t, err)
	require.Len(t, repo.appended, 1)

	repo.events = append(repo.events, first)

	second, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(100),
		Event:        domain.ResubmissionFeeViewCreatedEvent{},
	})
	require.NoError(t, err)
	assert.Equal(t, first.Header().ID, second.Header().ID)
	assert.Len(t, repo.appended, 1)
}

func TestAppendEvent_RejectsSubmittedEvent(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(false)}
	svc := newTestService(t, repo, &stubAudit{})

	_, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(100),
		Event:        domain.SubmittedEvent{FileID: uuid.New()},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	assert.Empty(t, repo.appended)
}

func TestAppendEvent_RejectsInvalidFileType(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(false)}
	svc := newTestService(t, repo, &stubAudit{})

	_, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(100),
		Event: domain.AntivirusCheckEvent{
			FileID:   uuid.New(),
			FileType: "spreadsheet",
		},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestAppendEvent_UnknownSubmission(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAudit{})

	_, err := svc.AppendEvent(context.Background(), domain.AppendEventRequest{
		SubmissionID: snowflake.ID(999),
		Event: domain.AntivirusCheckEvent{
			FileID:   uuid.New(),
			FileType: domain.FileTypePom,
		},
	})

	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

func TestGetStatus_ProjectsFromSnapshot(t *testing.T) {
	fileID := uuid.New()
	repo := &stubRepo{
		submission: producerSubmission(false),
		events:     validPomEvents(fileID),
	}
	svc := newTestService(t, repo, &stubAudit{})

	status, err := svc.GetStatus(context.Background(), snowflake.ID(100))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFileUploaded, status.Status)
	assert.Equal(t, "pom.csv", status.LastUploadedFileName)
}

func TestGetFileValidity_InvalidFileType(t *testing.T) {
	svc := newTestService(t, &stubRepo{submission: producerSubmission(false)}, &stubAudit{})

	_, err := svc.GetFileValidity(context.Background(), domain.FileValidityRequest{
		SubmissionID: snowflake.ID(100),
		FileType:     "spreadsheet",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidFileType)
}

func TestCreateResubmissionReference(t *testing.T) {
	repo := &stubRepo{submission: producerSubmission(true)}
	svc := newTestService(t, repo, &stubAudit{})

	ref, err := svc.CreateResubmissionReference(context.Background(), domain.ResubmissionReferenceRequest{
		SubmissionID: snowflake.ID(100),
	})

	require.NoError(t, err)
	assert.Equal(t, "PF-2026P1-16-01HTESTREF", ref)
	assert.Equal(t, 1, repo.setAppReference)
	assert.Equal(t, ref, repo.lastAppReference)
	require.Len(t, repo.appended, 1)

	event, ok := repo.appended[0].(domain.ResubmissionReferenceCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, ref, event.ApplicationReferenceNumber)
}

func TestList_InvalidPageToken(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAudit{})

	_, err := svc.List(context.Background(), domain.ListSubmissionsRequest{
		OrganisationID: snowflake.ID(42),
		Pagination:     pagination.Pagination{PageToken: "not-base64!"},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
