package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/logger"
)

const (
	defaultRetentionDays = 30
	// parked rows are kept twice as long so operators can inspect failures
	parkedRetentionFactor = 2
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteParkedBefore(tx *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxRetentionRepo
	RetentionDays int
	MaxAttempts   int
}

// outboxRetentionJob prunes published moderation events and rows the
// publisher gave up on.
type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	if params.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   time.Duration(days) * 24 * time.Hour,
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.Add(-j.retention)
	parkedCutoff := now.Add(-j.retention * parkedRetentionFactor)

	var published, parked int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if published, err = j.repo.DeletePublishedBefore(tx, publishedCutoff); err != nil {
			return fmt.Errorf("delete published: %w", err)
		}
		if parked, err = j.repo.DeleteParkedBefore(tx, parkedCutoff, j.maxAttempts); err != nil {
			return fmt.Errorf("delete parked: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff": publishedCutoff,
		"parked_cutoff":    parkedCutoff,
		"published_pruned": published,
		"parked_pruned":    parked,
	}), "outbox retention complete")
	return nil
}
