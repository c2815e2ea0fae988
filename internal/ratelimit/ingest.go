package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/packflow/internal/config"
)

const (
	keyEventIngestSubmission = "packflow:ingest:submission:%s"
	keySubmitSubmission      = "packflow:submit:submission:%s"
	keySubmitLock            = "packflow:submit:lock:%s"
)

// IngestLimiter throttles pipeline event ingestion and submit attempts.
// Buckets are keyed per submission so one noisy pipeline cannot starve the
// rest of the submissions.
type IngestLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	ingestRate  float64
	ingestBurst int
	submitRate  float64
	submitBurst int
	lockTTL     time.Duration
}

func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.EventIngestRate <= 0 || limitCfg.EventIngestBurst <= 0 {
		return nil, errors.New("event ingest rate limit must be positive")
	}
	if limitCfg.SubmitRate <= 0 || limitCfg.SubmitBurst <= 0 {
		return nil, errors.New("submit rate limit must be positive")
	}
	if limitCfg.SubmitLockTTLSeconds <= 0 {
		return nil, errors.New("submit lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngestLimiter{
		enabled:     true,
		bucket:      NewTokenBucket(client),
		locker:      NewLocker(client),
		ingestRate:  limitCfg.EventIngestRate,
		ingestBurst: limitCfg.EventIngestBurst,
		submitRate:  limitCfg.SubmitRate,
		submitBurst: limitCfg.SubmitBurst,
		lockTTL:     time.Duration(limitCfg.SubmitLockTTLSeconds) * time.Second,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowEventIngest consumes one event ingest token for the submission.
func (l *IngestLimiter) AllowEventIngest(ctx context.Context, submissionID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestSubmission, submissionID.String()), l.ingestRate, l.ingestBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// AllowSubmit consumes one submit token for the submission.
func (l *IngestLimiter) AllowSubmit(ctx context.Context, submissionID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keySubmitSubmission, submissionID.String()), l.submitRate, l.submitBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// TryLockSubmit serializes concurrent submit attempts on one submission.
func (l *IngestLimiter) TryLockSubmit(ctx context.Context, submissionID snowflake.ID) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keySubmitLock, submissionID.String()), l.lockTTL)
}

func (l *IngestLimiter) ReleaseSubmit(ctx context.Context, submissionID snowflake.ID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keySubmitLock, submissionID.String()), token)
}
