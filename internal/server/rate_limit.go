package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/packflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/packflow/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonEventIngest       = "event-ingest-rate"
	rateLimitReasonSubmitRate        = "submit-rate"
	rateLimitReasonSubmitConcurrency = "submit-concurrency"
)

// EventIngestRateLimit throttles pipeline event writes per submission.
func (s *Server) EventIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		submissionID, ok := s.submissionIDParam(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		allowed, err := s.ingestLimiter.AllowEventIngest(ctx, submissionID)
		if err != nil {
			logger.FromContext(ctx).Warn("event ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyRateLimited(c, rateLimitReasonEventIngest, s.obsMetrics)
			return
		}

		c.Next()
	}
}

// SubmitRateLimit throttles submit attempts and serializes concurrent submits
// on the same submission. The lock is best effort, the submit transition stays
// idempotent without it.
func (s *Server) SubmitRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		submissionID, ok := s.submissionIDParam(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		allowed, err := s.ingestLimiter.AllowSubmit(ctx, submissionID)
		if err != nil {
			logger.FromContext(ctx).Warn("submit rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyRateLimited(c, rateLimitReasonSubmitRate, s.obsMetrics)
			return
		}

		lockToken, acquired, err := s.ingestLimiter.TryLockSubmit(ctx, submissionID)
		if err != nil {
			logger.FromContext(ctx).Warn("submit concurrency lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			denyRateLimited(c, rateLimitReasonSubmitConcurrency, s.obsMetrics)
			return
		}
		defer func() {
			if err := s.ingestLimiter.ReleaseSubmit(ctx, submissionID, lockToken); err != nil {
				logger.FromContext(ctx).Warn("submit concurrency unlock failed",
					zap.Error(err),
					zap.Stringer("submission_id", submissionID),
				)
			}
		}()

		c.Next()
	}
}

func denyRateLimited(c *gin.Context, reason string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	endpoint := rateLimitEndpoint(c)
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func rateLimitEndpoint(c *gin.Context) string {
	if endpoint := c.FullPath(); endpoint != "" {
		return endpoint
	}
	return c.Request.URL.Path
}
