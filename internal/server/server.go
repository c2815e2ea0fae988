package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/packflow/internal/audit"
	auditdomain "github.com/smallbiznis/packflow/internal/audit/domain"
	"github.com/smallbiznis/packflow/internal/config"
	"github.com/smallbiznis/packflow/internal/observability"
	obsmetrics "github.com/smallbiznis/packflow/internal/observability/metrics"
	obsmiddleware "github.com/smallbiznis/packflow/internal/observability/logger"
	obstracing "github.com/smallbiznis/packflow/internal/observability/tracing"
	"github.com/smallbiznis/packflow/internal/ratelimit"
	"github.com/smallbiznis/packflow/internal/reference"
	"github.com/smallbiznis/packflow/internal/submission"
	submissiondomain "github.com/smallbiznis/packflow/internal/submission/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	ratelimit.Module,
	reference.Module,
	submission.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	genID         *snowflake.Node
	submissionSvc submissiondomain.Service
	auditSvc      auditdomain.Service
	ingestLimiter *ratelimit.IngestLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	GenID         *snowflake.Node
	SubmissionSvc submissiondomain.Service
	AuditSvc      auditdomain.Service
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		genID:         p.GenID,
		submissionSvc: p.SubmissionSvc,
		auditSvc:      p.AuditSvc,
		ingestLimiter: p.IngestLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/submissions", s.CreateSubmission)
	api.GET("/submissions", s.ListSubmissions)
	api.GET("/submissions/:id/status", s.GetSubmissionStatus)
	api.GET("/submissions/:id/file-validity", s.GetFileValidity)
	api.GET("/submissions/:id/registration-verdict", s.GetRegistrationVerdict)
	api.POST("/submissions/:id/events", s.EventIngestRateLimit(), s.AppendSubmissionEvent)
	api.POST("/submissions/:id/submit", s.SubmitRateLimit(), s.Submit)
	api.POST("/submissions/:id/resubmission-reference", s.CreateResubmissionReference)

	api.GET("/audit-logs", s.ListAuditLogs)
}
