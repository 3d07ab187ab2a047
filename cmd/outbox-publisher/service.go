package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/db/models"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
	"github.com/citydirectory/directory-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollMs       = 500
	defaultMaxAttempts  = 10
	batchPublishTimeout = 15 * time.Second
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond

	jobName = "outbox-publish"

	reasonNonRetryable = "non_retryable"
	reasonMaxAttempts  = "max_attempts"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

// stopper is implemented by publishers holding background flush goroutines.
type stopper interface {
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.JobMetrics
}

// Service drains outbox_events onto Pub/Sub. A row is marked published only
// after the broker acknowledged it, so delivery is at least once.
//
// Each batch is published in two passes: every row is handed to its topic's
// publisher first, then the acks are awaited and recorded in fetch order.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	registry     registryResolver
	newPublisher publisherFactory
	publishers   map[string]publisher
	metrics      *metrics.JobMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// inflight is one row between dispatch and settle. err is set when the row
// never reached a publisher.
type inflight struct {
	event  models.OutboxEvent
	fields map[string]any
	result publishResult
	err    error
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}
	cfg := params.Config.Outbox

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		newPublisher: factory,
		publishers:   map[string]publisher{},
		metrics:      params.Metrics,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. Failed polls back off exponentially up to
// maxBackoff; a poll that found rows is followed immediately by the next.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	defer s.stopPublishers()

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		processed, err := s.runBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			err = s.sleep(ctx, withJitter(backoff))
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			err = s.sleep(ctx, withJitter(s.pollInterval))
		}
		if err != nil {
			return err
		}
	}
}

// runBatch wraps processBatch with the job metrics. Empty polls are not
// recorded.
func (s *Service) runBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	processed, err := s.processBatch(ctx)
	if err == nil && !processed {
		return false, nil
	}
	s.metrics.ObserveDuration(jobName, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(jobName)
		return processed, err
	}
	s.metrics.IncSuccess(jobName)
	return true, nil
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(events) == 0 {
			return err
		}
		processed = true

		publishCtx, cancel := context.WithTimeout(ctx, batchPublishTimeout)
		defer cancel()

		batch := make([]inflight, 0, len(events))
		for _, event := range events {
			batch = append(batch, s.dispatch(publishCtx, event))
		}
		for _, item := range batch {
			if err := s.settle(ctx, publishCtx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) inflight {
	item := inflight{event: event, fields: eventFields(event)}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		item.err = err
		return item
	}
	topic := resolved.Descriptor.Topic
	item.fields["topic"] = topic
	item.fields["event_id"] = resolved.Envelope.EventID

	pub := s.publisherFor(topic)
	if pub == nil {
		item.err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
		return item
	}
	item.result = pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	})
	if item.result == nil {
		item.err = registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	return item
}

// settle waits for the ack and records the outcome on the row. Only a failure
// to record is returned; publish failures stay on the row.
func (s *Service) settle(ctx, publishCtx context.Context, tx *gorm.DB, item inflight) error {
	err := item.err
	if err == nil {
		_, err = item.result.Get(publishCtx)
	}
	id := item.event.ID

	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, id); markErr != nil {
			return fmt.Errorf("mark published %s: %w", id, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, item.fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return s.park(ctx, tx, item, reasonNonRetryable, err)
	}
	attempt := item.event.AttemptCount + 1
	item.fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		return s.park(ctx, tx, item, reasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	item.fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, item.fields), "outbox publish failed")
	if markErr := s.repo.MarkFailedTx(tx, id, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", id, markErr)
	}
	return nil
}

// park pins a row at the attempt ceiling so the fetch query skips it. The row
// stays in the table for inspection until retention removes it.
func (s *Service) park(ctx context.Context, tx *gorm.DB, item inflight, reason string, err error) error {
	item.fields["terminal_reason"] = reason
	item.fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, item.fields), "outbox event will not be retried")

	if markErr := s.repo.MarkTerminalTx(tx, item.event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", item.event.ID, markErr)
	}
	return nil
}

// publisherFor keeps one publisher per topic for the life of the service.
func (s *Service) publisherFor(topic string) publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPublisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

func (s *Service) stopPublishers() {
	for topic, pub := range s.publishers {
		if st, ok := pub.(stopper); ok {
			st.Stop()
		}
		delete(s.publishers, topic)
	}
}

func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !resolved.Envelope.OccurredAt.IsZero() {
		attrs["occurred_at"] = resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return attrs
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func (g gcpPublisher) Stop() {
	g.p.Stop()
}
