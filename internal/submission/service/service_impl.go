package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/packflow/internal/audit/domain"
	"github.com/smallbiznis/packflow/internal/clock"
	"github.com/smallbiznis/packflow/internal/config"
	"github.com/smallbiznis/packflow/internal/observability/metrics"
	"github.com/smallbiznis/packflow/internal/reference"
	"github.com/smallbiznis/packflow/internal/submission/domain"
	"github.com/smallbiznis/packflow/internal/submission/projection"
	"github.com/smallbiznis/packflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Compliance *config.ComplianceConfigHolder
	Metrics    *metrics.Metrics `optional:"true"`
	Repo       domain.Repository
	Audit      auditdomain.Service
	RefGen     reference.Generator
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	compliance *config.ComplianceConfigHolder
	metrics    *metrics.Metrics
	repo       domain.Repository
	audit      auditdomain.Service
	refGen     reference.Generator
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("submission.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		compliance: p.Compliance,
		metrics:    p.Metrics,
		repo:       p.Repo,
		audit:      p.Audit,
		refGen:     p.RefGen,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubmissionRequest) (*domain.Submission, error) {
	if req.OrganisationID == 0 {
		return nil, domain.ErrInvalidOrganisation
	}
	if !req.SubmissionType.Valid() {
		return nil, domain.ErrInvalidSubmissionType
	}
	period := strings.TrimSpace(req.SubmissionPeriod)
	if period == "" {
		return nil, domain.ErrInvalidSubmissionPeriod
	}

	submission := &domain.Submission{
		ID:                 s.genID.Generate(),
		OrganisationID:     req.OrganisationID,
		ComplianceSchemeID: req.ComplianceSchemeID,
		SubmissionType:     req.SubmissionType,
		SubmissionPeriod:   period,
		Created:            s.clock.Now(),
	}
	if err := s.repo.CreateSubmission(ctx, s.db, submission); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.recordAudit(ctx, submission, nil, "submission.create", map[string]any{
		"submission_type":   string(submission.SubmissionType),
		"submission_period": submission.SubmissionPeriod,
	})
	return submission, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSubmissionsRequest) (domain.ListSubmissionsResponse, error) {
	if req.OrganisationID == 0 {
		return domain.ListSubmissionsResponse{}, domain.ErrInvalidOrganisation
	}

	var cursor *domain.SubmissionCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListSubmissionsResponse{}, domain.ErrInvalidPageToken
		}
		created, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListSubmissionsResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListSubmissionsResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.SubmissionCursor{ID: id, Created: created}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.ListSubmissions(ctx, s.db, domain.ListSubmissionsFilter{
		OrganisationID:   req.OrganisationID,
		SubmissionType:   req.SubmissionType,
		SubmissionPeriod: req.SubmissionPeriod,
		Cursor:           cursor,
		Limit:            pageSize,
	})
	if err != nil {
		return domain.ListSubmissionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *domain.Submission) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.Created.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(items) > pageSize {
		items = items[:pageSize]
	}
	submissions := make([]domain.Submission, 0, len(items))
	for _, item := range items {
		submissions = append(submissions, *item)
	}

	resp := domain.ListSubmissionsResponse{Submissions: submissions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	if !resp.HasMore {
		resp.NextPageToken = ""
	}
	return resp, nil
}

func (s *Service) AppendEvent(ctx context.Context, req domain.AppendEventRequest) (domain.Event, error) {
	if req.Event == nil {
		return nil, domain.ErrInvalidEvent
	}
	if err := validateEvent(req.Event); err != nil {
		return nil, err
	}

	submission, err := s.repo.GetSubmission(ctx, s.db, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, domain.ErrSubmissionNotFound
	}

	// First-view markers record at most once per submission. A repeat append
	// returns the original event instead of duplicating it.
	if t := req.Event.EventType(); t == domain.EventTypeResubmissionApplicationSubmittedCreated ||
		t == domain.EventTypeResubmissionFeeViewCreated {
		existing, err := s.repo.ListEvents(ctx, s.db, submission.ID, domain.ListEventsFilter{
			EventTypes: []domain.EventType{t},
		})
		if err != nil {
			return nil, fmt.Errorf("list %s events: %w", t, err)
		}
		if len(existing) > 0 {
			return existing[0], nil
		}
	}

	stamped := domain.WithHeader(req.Event, domain.EventHeader{
		ID:           s.genID.Generate(),
		SubmissionID: submission.ID,
		UserID:       req.UserID,
		Created:      s.clock.Now(),
	})
	if err := s.repo.AppendEvent(ctx, s.db, stamped); err != nil {
		return nil, fmt.Errorf("append %s event: %w", stamped.EventType(), err)
	}

	s.metrics.RecordEventAppended(ctx, string(stamped.EventType()))
	return stamped, nil
}

func (s *Service) GetStatus(ctx context.Context, submissionID snowflake.ID) (*domain.SubmissionStatus, error) {
	submission, events, err := s.loadSnapshot(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	deadline := s.compliance.Current().LateFeeDeadline(submission.SubmissionPeriod)
	status := projection.ProjectStatus(*submission, events, deadline)
	return &status, nil
}

func (s *Service) GetFileValidity(ctx context.Context, req domain.FileValidityRequest) (domain.FileValidity, error) {
	if !req.FileType.Valid() {
		return domain.FileValidity{}, domain.ErrInvalidFileType
	}

	_, events, err := s.loadSnapshot(ctx, req.SubmissionID)
	if err != nil {
		return domain.FileValidity{}, err
	}
	return projection.ReduceFileChain(events, req.FileType, req.RegistrationSetID), nil
}

func (s *Service) GetRegistrationVerdict(ctx context.Context, submissionID snowflake.ID) (domain.RegistrationVerdict, error) {
	_, events, err := s.loadSnapshot(ctx, submissionID)
	if err != nil {
		return domain.RegistrationVerdict{}, err
	}
	return projection.ValidateRegistrationBundle(events), nil
}

// Submit marks a specific uploaded file as submitted to the regulator. The
// transition is idempotent: repeated calls converge on the same row state and
// never append duplicate events for reference-only retries.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) error {
	submission, events, err := s.loadSnapshot(ctx, req.SubmissionID)
	if err != nil {
		return err
	}

	if !projection.CanSubmit(events, submission.SubmissionType, req.FileID) {
		s.metrics.RecordGateRejection(ctx, string(submission.SubmissionType))
		s.metrics.RecordSubmitAttempt(ctx, string(submission.SubmissionType), "rejected")
		return domain.ErrSubmissionInvalid
	}

	// The flag flip and the reference overwrite are independent persists.
	// Either may apply without the other on a retry.
	alreadySubmitted := submission.IsSubmitted
	if !alreadySubmitted {
		if err := s.repo.MarkSubmitted(ctx, s.db, submission.ID); err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
	}

	appReference := strings.TrimSpace(req.AppReferenceNumber)
	if appReference != "" && appReference != submission.AppReferenceNumber {
		if err := s.repo.SetAppReference(ctx, s.db, submission.ID, appReference); err != nil {
			return fmt.Errorf("set app reference: %w", err)
		}
	}

	// A repeat call that only carries a reference update is not a new
	// submission; appending another Submitted event would corrupt the
	// status projection's cycle detection.
	if !(alreadySubmitted && appReference != "") {
		event := domain.SubmittedEvent{
			EventHeader: domain.EventHeader{
				ID:           s.genID.Generate(),
				SubmissionID: submission.ID,
				UserID:       req.UserID,
				Created:      s.clock.Now(),
			},
			FileID:         req.FileID,
			FileName:       fileNameFor(events, req.FileID),
			SubmittedBy:    req.SubmittedBy,
			IsResubmission: req.IsResubmission,
		}
		if err := s.repo.AppendEvent(ctx, s.db, event); err != nil {
			return fmt.Errorf("append submitted event: %w", err)
		}
		s.metrics.RecordEventAppended(ctx, string(domain.EventTypeSubmitted))
	}

	s.metrics.RecordSubmitAttempt(ctx, string(submission.SubmissionType), "accepted")
	s.recordAudit(ctx, submission, req.UserID, "submission.submit", map[string]any{
		"file_id":              req.FileID.String(),
		"app_reference_number": appReference,
	})
	return nil
}

func (s *Service) CreateResubmissionReference(ctx context.Context, req domain.ResubmissionReferenceRequest) (string, error) {
	submission, err := s.repo.GetSubmission(ctx, s.db, req.SubmissionID)
	if err != nil {
		return "", err
	}
	if submission == nil {
		return "", domain.ErrSubmissionNotFound
	}

	appReference := s.refGen.ApplicationReference(submission.OrganisationID, submission.SubmissionPeriod)
	if err := s.repo.SetAppReference(ctx, s.db, submission.ID, appReference); err != nil {
		return "", fmt.Errorf("set app reference: %w", err)
	}

	event := domain.ResubmissionReferenceCreatedEvent{
		EventHeader: domain.EventHeader{
			ID:           s.genID.Generate(),
			SubmissionID: submission.ID,
			UserID:       req.UserID,
			Created:      s.clock.Now(),
		},
		ApplicationReferenceNumber: appReference,
	}
	if err := s.repo.AppendEvent(ctx, s.db, event); err != nil {
		return "", fmt.Errorf("append resubmission reference event: %w", err)
	}

	s.metrics.RecordEventAppended(ctx, string(domain.EventTypeResubmissionReferenceCreated))
	s.recordAudit(ctx, submission, req.UserID, "submission.resubmission_reference", map[string]any{
		"app_reference_number": appReference,
	})
	return appReference, nil
}

func (s *Service) loadSnapshot(ctx context.Context, submissionID snowflake.ID) (*domain.Submission, []domain.Event, error) {
	submission, err := s.repo.GetSubmission(ctx, s.db, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if submission == nil {
		return nil, nil, domain.ErrSubmissionNotFound
	}

	events, err := s.repo.ListEvents(ctx, s.db, submissionID, domain.ListEventsFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	return submission, events, nil
}

// recordAudit writes the audit trail best effort. Failures are logged and
// never surfaced to the caller.
func (s *Service) recordAudit(ctx context.Context, submission *domain.Submission, userID *snowflake.ID, action string, metadata map[string]any) {
	var actorID *string
	actorType := "system"
	if userID != nil {
		value := userID.String()
		actorID = &value
		actorType = "user"
	}
	targetID := submission.ID.String()

	if err := s.audit.Record(ctx, auditdomain.Entry{
		OrganisationID: submission.OrganisationID,
		ActorType:      actorType,
		ActorID:        actorID,
		Action:         action,
		TargetType:     "submission",
		TargetID:       &targetID,
		Metadata:       metadata,
	}); err != nil {
		s.log.Warn("audit write failed",
			zap.String("action", action),
			zap.Int64("submission_id", int64(submission.ID)),
			zap.Error(err),
		)
	}
}

func fileNameFor(events []domain.Event, fileID uuid.UUID) string {
	for i := len(events) - 1; i >= 0; i-- {
		if check, ok := events[i].(domain.AntivirusCheckEvent); ok && check.FileID == fileID {
			return check.FileName
		}
	}
	return ""
}

func validateEvent(e domain.Event) error {
	switch v := e.(type) {
	case domain.AntivirusCheckEvent:
		if v.FileID == uuid.Nil || !v.FileType.Valid() {
			return domain.ErrInvalidEvent
		}
	case domain.AntivirusResultEvent:
		if v.FileID == uuid.Nil || strings.TrimSpace(v.BlobName) == "" {
			return domain.ErrInvalidEvent
		}
	case domain.CheckSplitterValidationEvent:
		if strings.TrimSpace(v.BlobName) == "" {
			return domain.ErrInvalidEvent
		}
	case domain.SubmittedEvent:
		// Submitted events are appended by the submit transition only.
		return domain.ErrInvalidEvent
	}

	if outcome, ok := domain.RowOutcome(e); ok && strings.TrimSpace(outcome.BlobName) == "" {
		return domain.ErrInvalidEvent
	}
	return nil
}
