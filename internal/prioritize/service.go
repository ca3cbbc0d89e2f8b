package prioritize

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/message"
	"github.com/oklog/ulid/v2"
)

// CriticalAlertThreshold is the final score at or above which a scored
// message is pushed to the notifier.
const CriticalAlertThreshold = 90

// Notifier delivers critical-message alerts after a run completes.
type Notifier interface {
	Send(ctx context.Context, critical []*ScoredMessage) error
}

// SubmitResult is the outcome of submitting a batch for prioritization.
type SubmitResult struct {
	Accepted []string
	Skipped  int
}

// Service is the business boundary for prioritization: dedup, lifecycle,
// async dispatch, persistence, and notification.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a new prioritization service. metrics and notifier may
// be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Submit accepts records for prioritization. Records without a message ID
// or already present in the store are skipped; the rest are persisted as
// pending and scored asynchronously in one sequential run.
//
// A store failure mid-batch aborts acceptance of the remaining records, but
// rows already persisted as pending are still dispatched for scoring so they
// don't strand.
func (s *Service) Submit(ctx context.Context, records []message.Record) (*SubmitResult, error) {
	var (
		accepted  []string
		rows      []*ScoredMessage
		skipped   int
		submitErr error
	)

	now := time.Now()

	for _, rec := range records {
		if rec.MessageID == "" {
			skipped++
			continue
		}

		// dedup: one scored row per upstream message, pending included
		if _, ok, err := s.store.GetByMessageID(ctx, rec.MessageID); err != nil {
			submitErr = err
			break
		} else if ok {
			skipped++
			continue
		}

		sm := &ScoredMessage{
			ID:        ulid.Make().String(),
			Record:    rec,
			Status:    StatusPending,
			CreatedAt: now,
		}
		if err := s.store.Put(ctx, sm); err != nil {
			submitErr = err
			break
		}

		accepted = append(accepted, sm.ID)
		rows = append(rows, sm)
	}

	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues("accepted").Add(float64(len(accepted)))
		s.metrics.SubmitsTotal.WithLabelValues("skipped").Add(float64(skipped))
	}

	if len(rows) > 0 {
		// pass copies, not store pointers, so the run never races readers
		go s.run(context.WithoutCancel(ctx), rows)
	}

	if submitErr != nil {
		return nil, submitErr
	}
	return &SubmitResult{Accepted: accepted, Skipped: skipped}, nil
}

// RecoverPending re-dispatches messages stranded in the pending state, such
// as rows persisted by a process that died before its run finished or rows
// whose scored result failed to persist. Call once at startup, after the
// store is ready. Returns the number of messages dispatched.
func (s *Service) RecoverPending(ctx context.Context) (int, error) {
	rows, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	go s.run(context.WithoutCancel(ctx), rows)
	return len(rows), nil
}

// Get retrieves a scored message by ID.
func (s *Service) Get(ctx context.Context, id string) (*ScoredMessage, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns scored messages matching the filter, highest score first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*ScoredMessage, error) {
	return s.store.List(ctx, f)
}

// Stats returns inbox summary counts.
func (s *Service) Stats(ctx context.Context) (*InboxStats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) run(ctx context.Context, rows []*ScoredMessage) {
	L := s.logger.With("run_size", len(rows))

	records := make([]message.Record, len(rows))
	for i, row := range rows {
		records[i] = row.Record
	}

	rr := s.engine.Run(ctx, records)

	var critical []*ScoredMessage

	for i, sm := range rr.Messages {
		// Run preserves input order, so results align with the pending rows
		// the records came from.
		sm.ID = rows[i].ID
		sm.CreatedAt = rows[i].CreatedAt

		if err := s.store.Put(ctx, sm); err != nil {
			L.Error(ctx, err, "failed to persist scored message", "id", sm.ID)
			continue
		}

		if s.metrics != nil {
			s.metrics.ObserveScored(sm)
		}

		if sm.Score >= CriticalAlertThreshold {
			critical = append(critical, sm)
		}
	}

	if s.notifier != nil && len(critical) > 0 {
		if err := s.notifier.Send(ctx, critical); err != nil {
			L.Error(ctx, err, "failed to send critical alerts", "count", len(critical))
		}
	}

	L.Info(ctx, "run complete",
		"messages", len(rr.Messages),
		"batches", rr.Batches,
		"fallback_batches", rr.FallbackBatches,
		"critical", len(critical),
		"duration", rr.Duration,
	)
}
