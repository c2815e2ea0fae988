package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	submissiondomain "github.com/smallbiznis/packflow/internal/submission/domain"
	"github.com/smallbiznis/packflow/pkg/db/pagination"
	"gorm.io/datatypes"
)

type createSubmissionRequest struct {
	OrganisationID     string `json:"organisation_id" binding:"required"`
	ComplianceSchemeID string `json:"compliance_scheme_id"`
	SubmissionType     string `json:"submission_type" binding:"required"`
	SubmissionPeriod   string `json:"submission_period" binding:"required"`
}

func (s *Server) CreateSubmission(c *gin.Context) {
	var body createSubmissionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	organisationID, err := snowflake.ParseString(strings.TrimSpace(body.OrganisationID))
	if err != nil {
		AbortWithError(c, newValidationError("organisation_id", "invalid_organisation_id", "invalid organisation id"))
		return
	}

	req := submissiondomain.CreateSubmissionRequest{
		OrganisationID:   organisationID,
		SubmissionType:   submissiondomain.SubmissionType(strings.TrimSpace(body.SubmissionType)),
		SubmissionPeriod: body.SubmissionPeriod,
	}
	if scheme := strings.TrimSpace(body.ComplianceSchemeID); scheme != "" {
		schemeID, err := snowflake.ParseString(scheme)
		if err != nil {
			AbortWithError(c, newValidationError("compliance_scheme_id", "invalid_compliance_scheme_id", "invalid compliance scheme id"))
			return
		}
		req.ComplianceSchemeID = &schemeID
	}

	created, err := s.submissionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type listSubmissionsQuery struct {
	PageToken        string `form:"page_token"`
	PageSize         int    `form:"page_size"`
	OrganisationID   string `form:"organisation_id"`
	SubmissionType   string `form:"submission_type"`
	SubmissionPeriod string `form:"submission_period"`
}

func (s *Server) ListSubmissions(c *gin.Context) {
	var query listSubmissionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	organisationID, err := snowflake.ParseString(strings.TrimSpace(query.OrganisationID))
	if err != nil {
		AbortWithError(c, newValidationError("organisation_id", "invalid_organisation_id", "invalid organisation id"))
		return
	}

	resp, err := s.submissionSvc.List(c.Request.Context(), submissiondomain.ListSubmissionsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		OrganisationID:   organisationID,
		SubmissionType:   submissiondomain.SubmissionType(strings.TrimSpace(query.SubmissionType)),
		SubmissionPeriod: strings.TrimSpace(query.SubmissionPeriod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetSubmissionStatus(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	status, err := s.submissionSvc.GetStatus(c.Request.Context(), submissionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type fileValidityQuery struct {
	FileType          string `form:"file_type" binding:"required"`
	RegistrationSetID string `form:"registration_set_id"`
}

func (s *Server) GetFileValidity(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	var query fileValidityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := submissiondomain.FileValidityRequest{
		SubmissionID: submissionID,
		FileType:     submissiondomain.FileType(strings.TrimSpace(query.FileType)),
	}
	if raw := strings.TrimSpace(query.RegistrationSetID); raw != "" {
		setID, err := uuid.Parse(raw)
		if err != nil {
			AbortWithError(c, newValidationError("registration_set_id", "invalid_registration_set_id", "invalid registration set id"))
			return
		}
		req.RegistrationSetID = &setID
	}

	validity, err := s.submissionSvc.GetFileValidity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, validity)
}

func (s *Server) GetRegistrationVerdict(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	verdict, err := s.submissionSvc.GetRegistrationVerdict(c.Request.Context(), submissionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

type appendEventRequest struct {
	EventType string          `json:"event_type" binding:"required"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

// AppendSubmissionEvent ingests one processing-pipeline event. The payload is
// decoded through the same codec the store uses, so the wire shape and the
// persisted shape cannot drift apart.
func (s *Server) AppendSubmissionEvent(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	var body appendEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record := submissiondomain.EventRecord{
		EventType: submissiondomain.EventType(strings.TrimSpace(body.EventType)),
		Payload:   datatypes.JSON(body.Payload),
	}
	event, err := record.Decode()
	if err != nil {
		AbortWithError(c, newValidationError("payload", "invalid_event", "invalid event payload"))
		return
	}

	req := submissiondomain.AppendEventRequest{
		SubmissionID: submissionID,
		Event:        event,
	}
	if userID, ok := s.optionalUserID(c, body.UserID); ok {
		req.UserID = userID
	} else {
		return
	}

	stamped, err := s.submissionSvc.AppendEvent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	header := stamped.Header()
	c.JSON(http.StatusCreated, gin.H{
		"id":         header.ID.String(),
		"event_type": stamped.EventType(),
		"created":    header.Created,
	})
}

type submitRequest struct {
	FileID             string `json:"file_id" binding:"required"`
	UserID             string `json:"user_id"`
	SubmittedBy        string `json:"submitted_by" binding:"required"`
	AppReferenceNumber string `json:"app_reference_number"`
	IsResubmission     *bool  `json:"is_resubmission"`
}

func (s *Server) Submit(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fileID, err := uuid.Parse(strings.TrimSpace(body.FileID))
	if err != nil {
		AbortWithError(c, newValidationError("file_id", "invalid_file_id", "invalid file id"))
		return
	}

	req := submissiondomain.SubmitRequest{
		SubmissionID:       submissionID,
		FileID:             fileID,
		SubmittedBy:        strings.TrimSpace(body.SubmittedBy),
		AppReferenceNumber: body.AppReferenceNumber,
		IsResubmission:     body.IsResubmission,
	}
	if userID, ok := s.optionalUserID(c, body.UserID); ok {
		req.UserID = userID
	} else {
		return
	}

	if err := s.submissionSvc.Submit(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type resubmissionReferenceRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) CreateResubmissionReference(c *gin.Context) {
	submissionID, ok := s.submissionIDParam(c)
	if !ok {
		return
	}

	var body resubmissionReferenceRequest
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := submissiondomain.ResubmissionReferenceRequest{SubmissionID: submissionID}
	if userID, ok := s.optionalUserID(c, body.UserID); ok {
		req.UserID = userID
	} else {
		return
	}

	reference, err := s.submissionSvc.CreateResubmissionReference(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"app_reference_number": reference})
}

func (s *Server) submissionIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_submission_id", "invalid submission id"))
		return 0, false
	}
	return id, true
}

// optionalUserID parses a user id when present. The second return is false
// only when the request was aborted.
func (s *Server) optionalUserID(c *gin.Context, raw string) (*snowflake.ID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return nil, false
	}
	return &userID, true
}
