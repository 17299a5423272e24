package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
)

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxRelay moves committed outbox events to the message broker.
type OutboxRelay struct {
	db          repository.DBTX
	repo        repository.OutboxRepository
	pub         Publisher
	topicPrefix string
	batchSize   int
	logger      *slog.Logger
}

// NewOutboxRelay creates an OutboxRelay. batchSize <= 0 means 100.
func NewOutboxRelay(db repository.DBTX, repo repository.OutboxRepository, pub Publisher, topicPrefix string, batchSize int, logger *slog.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		db:          db,
		repo:        repo,
		pub:         pub,
		topicPrefix: topicPrefix,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Topic returns the broker topic for an event type, e.g. "bpp.archive.game.imported".
func (r *OutboxRelay) Topic(event domain.EventType) string {
	if r.topicPrefix == "" {
		return string(event)
	}
	return r.topicPrefix + "." + string(event)
}

// RelayOnce publishes one batch in insertion order. Publishing stops at the
// first failure; events before it are marked published, the rest are retried
// on the next call.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.repo.FetchUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	var pubErr error
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			pubErr = fmt.Errorf("marshal event %s: %w", ev.EventID, err)
			break
		}
		if err := r.pub.Publish(ctx, r.Topic(ev.EventType), []byte(ev.AggregateID), value); err != nil {
			pubErr = fmt.Errorf("publish event %s: %w", ev.EventID, err)
			break
		}
		ids = append(ids, ev.SeqID)
	}

	if len(ids) > 0 {
		if err := r.repo.MarkPublished(ctx, r.db, ids); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
		r.logger.Info("relayed outbox batch", "count", len(ids))
	}
	return len(ids), pubErr
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			r.logger.Error("outbox relay error", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
