package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/packflow/internal/audit"
	"github.com/smallbiznis/packflow/internal/clock"
	"github.com/smallbiznis/packflow/internal/config"
	"github.com/smallbiznis/packflow/internal/migration"
	"github.com/smallbiznis/packflow/internal/observability"
	"github.com/smallbiznis/packflow/internal/ratelimit"
	"github.com/smallbiznis/packflow/internal/reference"
	"github.com/smallbiznis/packflow/internal/server"
	"github.com/smallbiznis/packflow/internal/submission"
	"github.com/smallbiznis/packflow/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fx.App
	server  *server.Server
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	var (
		srv    *server.Server
		dbConn *gorm.DB
	)

	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		migration.Module,
		audit.Module,
		ratelimit.Module,
		reference.Module,
		submission.Module,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		server:  srv,
		db:      dbConn,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_NAME", "file::memory:?cache=shared")
	// In-memory sqlite holds its data per connection, keep the pool at one.
	setEnvIfEmpty("DATABASE_MAX_OPEN_CONN", "1")
	setEnvIfEmpty("DATABASE_MAX_IDLE_CONN", "1")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	for _, table := range []string{"submission_events", "audit_logs", "submissions"} {
		if err := env.db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

func doJSON(t *testing.T, method, path string, payload any) (int, []byte) {
	t.Helper()

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, body
}

func createSubmission(t *testing.T, submissionType, period string) string {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions", map[string]any{
		"organisation_id":   "4242",
		"submission_type":   submissionType,
		"submission_period": period,
	})
	if status != http.StatusCreated {
		t.Fatalf("create submission: %d: %s", status, string(body))
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected submission id, got %s", string(body))
	}
	return strconv.FormatInt(created.ID, 10)
}

func appendEvent(t *testing.T, submissionID, eventType string, payload map[string]any) {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/events", map[string]any{
		"event_type": eventType,
		"payload":    payload,
	})
	if status != http.StatusCreated {
		t.Fatalf("append %s: %d: %s", eventType, status, string(body))
	}
}

type statusResponse struct {
	Status             string `json:"status"`
	IsSubmitted        bool   `json:"is_submitted"`
	AppReferenceNumber string `json:"app_reference_number"`
	RegulatorDecision  string `json:"regulator_decision"`
	LastSubmittedFile  *struct {
		FileID      string `json:"file_id"`
		SubmittedBy string `json:"submitted_by"`
	} `json:"last_submitted_file"`
	LastValidFiles *struct {
		CompanyDetailsFileName string `json:"company_details_file_name"`
	} `json:"last_valid_files"`
}

func getStatus(t *testing.T, submissionID string) statusResponse {
	t.Helper()

	status, body := doJSON(t, http.MethodGet, "/api/v1/submissions/"+submissionID+"/status", nil)
	if status != http.StatusOK {
		t.Fatalf("get status: %d: %s", status, string(body))
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return parsed
}

// appendValidProducerChain walks one upload through the full pipeline: scan
// handed off, clean scan verdict, structural split, and row validation.
func appendValidProducerChain(t *testing.T, submissionID string, fileID uuid.UUID, fileName string) {
	t.Helper()
	blobName := "blob-" + fileID.String()

	appendEvent(t, submissionID, "antivirus_check", map[string]any{
		"file_id":   fileID.String(),
		"file_name": fileName,
		"file_type": "pom",
	})
	appendEvent(t, submissionID, "antivirus_result", map[string]any{
		"file_id":     fileID.String(),
		"blob_name":   blobName,
		"scan_result": "success",
	})
	appendEvent(t, submissionID, "check_splitter_validation", map[string]any{
		"blob_name":  blobName,
		"data_count": 12,
	})
	appendEvent(t, submissionID, "producer_validation", map[string]any{
		"blob_name": blobName,
		"is_valid":  true,
	})
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_ProducerSubmissionLifecycle(t *testing.T) {
	resetDatabase(t)

	submissionID := createSubmission(t, "producer", "2026-P1")

	if got := getStatus(t, submissionID); got.Status != "not_started" {
		t.Fatalf("expected not_started before any upload, got %s", got.Status)
	}

	fileID := uuid.New()
	appendValidProducerChain(t, submissionID, fileID, "producers-q1.csv")

	if got := getStatus(t, submissionID); got.Status != "file_uploaded" {
		t.Fatalf("expected file_uploaded after valid chain, got %s", got.Status)
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/submit", map[string]any{
		"file_id":              fileID.String(),
		"submitted_by":         "jordan.reeves@acme.test",
		"app_reference_number": "PF-2026P1-ACME-01",
	})
	if status != http.StatusNoContent {
		t.Fatalf("submit: %d: %s", status, string(body))
	}

	got := getStatus(t, submissionID)
	if got.Status != "submitted_to_regulator" {
		t.Fatalf("expected submitted_to_regulator, got %s", got.Status)
	}
	if !got.IsSubmitted {
		t.Fatalf("expected is_submitted true")
	}
	if got.AppReferenceNumber != "PF-2026P1-ACME-01" {
		t.Fatalf("expected app reference recorded, got %q", got.AppReferenceNumber)
	}
	if got.LastSubmittedFile == nil || got.LastSubmittedFile.FileID != fileID.String() {
		t.Fatalf("expected last submitted file %s, got %+v", fileID, got.LastSubmittedFile)
	}

	// A fresh upload supersedes the submitted state.
	appendValidProducerChain(t, submissionID, uuid.New(), "producers-q1-fixed.csv")
	if got := getStatus(t, submissionID); got.Status != "submitted_and_has_recent_file_upload" {
		t.Fatalf("expected submitted_and_has_recent_file_upload, got %s", got.Status)
	}

	// A decision on the new cycle overrides the recent-upload state.
	appendEvent(t, submissionID, "regulator_pom_decision", map[string]any{
		"decision": "accepted",
	})
	got = getStatus(t, submissionID)
	if got.Status != "accepted_by_regulator" {
		t.Fatalf("expected accepted_by_regulator, got %s", got.Status)
	}
	if got.RegulatorDecision != "accepted" {
		t.Fatalf("expected decision accepted, got %q", got.RegulatorDecision)
	}
}

func TestE2E_SubmitGateRejectsQuarantinedFile(t *testing.T) {
	resetDatabase(t)

	submissionID := createSubmission(t, "producer", "2026-P1")
	fileID := uuid.New()

	appendEvent(t, submissionID, "antivirus_check", map[string]any{
		"file_id":   fileID.String(),
		"file_name": "producers.csv",
		"file_type": "pom",
	})
	appendEvent(t, submissionID, "antivirus_result", map[string]any{
		"file_id":     fileID.String(),
		"blob_name":   "blob-" + fileID.String(),
		"scan_result": "quarantined",
	})

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/submit", map[string]any{
		"file_id":      fileID.String(),
		"submitted_by": "jordan.reeves@acme.test",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for quarantined file, got %d: %s", status, string(body))
	}

	if got := getStatus(t, submissionID); got.IsSubmitted {
		t.Fatalf("expected submission untouched after rejected submit")
	}
}

func TestE2E_RegistrationVerdict(t *testing.T) {
	resetDatabase(t)

	submissionID := createSubmission(t, "registration", "2026")
	fileID := uuid.New()
	blobName := "blob-" + fileID.String()

	appendEvent(t, submissionID, "antivirus_check", map[string]any{
		"file_id":   fileID.String(),
		"file_name": "company-details.csv",
		"file_type": "company_details",
	})
	appendEvent(t, submissionID, "antivirus_result", map[string]any{
		"file_id":     fileID.String(),
		"blob_name":   blobName,
		"scan_result": "success",
	})
	appendEvent(t, submissionID, "registration_validation", map[string]any{
		"blob_name":                  blobName,
		"is_valid":                   true,
		"requires_brands_file":       false,
		"requires_partnerships_file": false,
	})

	status, body := doJSON(t, http.MethodGet, "/api/v1/submissions/"+submissionID+"/registration-verdict", nil)
	if status != http.StatusOK {
		t.Fatalf("get verdict: %d: %s", status, string(body))
	}
	var verdict struct {
		ValidationPass bool `json:"validation_pass"`
		CompanyDetails struct {
			Uploaded     bool `json:"uploaded"`
			DataComplete bool `json:"data_complete"`
			Valid        bool `json:"valid"`
		} `json:"company_details"`
	}
	if err := json.Unmarshal(body, &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.ValidationPass {
		t.Fatalf("expected bundle to pass, got %s", string(body))
	}
	if !verdict.CompanyDetails.Uploaded || !verdict.CompanyDetails.DataComplete || !verdict.CompanyDetails.Valid {
		t.Fatalf("expected valid company details chain, got %s", string(body))
	}

	status, body = doJSON(t, http.MethodGet, "/api/v1/submissions/"+submissionID+"/file-validity?file_type=company_details", nil)
	if status != http.StatusOK {
		t.Fatalf("get file validity: %d: %s", status, string(body))
	}
	var validity struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &validity); err != nil {
		t.Fatalf("decode file validity: %v", err)
	}
	if !validity.Valid {
		t.Fatalf("expected valid file, got %s", string(body))
	}

	if got := getStatus(t, submissionID); got.LastValidFiles == nil ||
		got.LastValidFiles.CompanyDetailsFileName != "company-details.csv" {
		t.Fatalf("expected last valid files on status, got %+v", got.LastValidFiles)
	}
}

func TestE2E_SubmittedEventCannotBeIngested(t *testing.T) {
	resetDatabase(t)

	submissionID := createSubmission(t, "producer", "2026-P1")

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/events", map[string]any{
		"event_type": "submitted",
		"payload": map[string]any{
			"file_id":      uuid.New().String(),
			"submitted_by": "jordan.reeves@acme.test",
		},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for submitted event, got %d: %s", status, string(body))
	}
}

func TestE2E_SubmitWritesAuditLog(t *testing.T) {
	resetDatabase(t)

	submissionID := createSubmission(t, "producer", "2026-P1")
	fileID := uuid.New()
	appendValidProducerChain(t, submissionID, fileID, "producers.csv")

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions/"+submissionID+"/submit", map[string]any{
		"file_id":      fileID.String(),
		"submitted_by": "jordan.reeves@acme.test",
	})
	if status != http.StatusNoContent {
		t.Fatalf("submit: %d: %s", status, string(body))
	}

	status, body = doJSON(t, http.MethodGet, "/api/v1/audit-logs?organisation_id=4242", nil)
	if status != http.StatusOK {
		t.Fatalf("list audit logs: %d: %s", status, string(body))
	}
	var logs struct {
		AuditLogs []struct {
			Action   string `json:"action"`
			TargetID string `json:"target_id"`
		} `json:"audit_logs"`
	}
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("decode audit logs: %v", err)
	}

	found := false
	for _, entry := range logs.AuditLogs {
		if entry.Action == "submission.submit" && entry.TargetID == submissionID {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected submission.submit audit entry, got %s", string(body))
	}
}

func TestE2E_CreateSubmissionValidation(t *testing.T) {
	resetDatabase(t)

	status, body := doJSON(t, http.MethodPost, "/api/v1/submissions", map[string]any{
		"organisation_id":   "4242",
		"submission_type":   "quarterly-magazine",
		"submission_period": "2026-P1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown submission type, got %d: %s", status, string(body))
	}
}
