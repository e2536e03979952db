// Package historian drains queued lobby audit records into Postgres in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
)

// Queue is the source of audit records, normally a cache.EventQueue.
type Queue interface {
	Name() string
	Pop(ctx context.Context, timeout time.Duration) (*models.LobbyEvent, error)
}

// Sink persists a batch of records atomically.
type Sink interface {
	InsertLobbyEvents(ctx context.Context, events []models.LobbyEvent) error
}

type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each blocking pop so the loop notices cancellation.
	PopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = time.Second
	}
	return o
}

// Service accumulates records popped from the queue and writes them whenever
// the batch fills or the flush timer fires. A failed write keeps the batch for
// the next timer attempt, up to maxPending records.
type Service struct {
	queue  Queue
	sink   Sink
	opts   Options
	logger *logrus.Logger

	batch      []models.LobbyEvent
	maxPending int
	// failing holds off size triggered flushes until a timer flush succeeds.
	failing bool
}

func New(queue Queue, sink Sink, opts Options, logger *logrus.Logger) *Service {
	opts = opts.withDefaults()
	return &Service{
		queue:      queue,
		sink:       sink,
		opts:       opts,
		logger:     logger,
		batch:      make([]models.LobbyEvent, 0, opts.BatchSize),
		maxPending: opts.BatchSize * 50,
	}
}

// Run processes the queue until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) error {
	s.logger.WithField("queue", s.queue.Name()).Info("historian started")
	lastFlush := time.Now()

	for {
		if ctx.Err() != nil {
			break
		}
		if time.Since(lastFlush) >= s.opts.FlushDelay {
			s.failing = !s.flush(ctx)
			lastFlush = time.Now()
		}

		ev, err := s.queue.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.WithError(err).Error("failed to pop lobby event")
			select {
			case <-ctx.Done():
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}
		if ev == nil {
			continue
		}
		s.batch = append(s.batch, *ev)
		if len(s.batch) >= s.opts.BatchSize && !s.failing {
			s.failing = !s.flush(ctx)
			lastFlush = time.Now()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(shutdownCtx)
	s.logger.Info("historian stopped")
	return nil
}

// flush writes the batch and reports whether it was accepted.
func (s *Service) flush(ctx context.Context) bool {
	if len(s.batch) == 0 {
		return true
	}
	if err := s.sink.InsertLobbyEvents(ctx, s.batch); err != nil {
		s.logger.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush lobby events")
		if len(s.batch) > s.maxPending {
			dropped := len(s.batch) - s.maxPending
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.logger.WithField("dropped", dropped).Warn("historian backlog full, dropping oldest events")
		}
		return false
	}
	s.logger.Debugf("flushed %d lobby events", len(s.batch))
	s.batch = s.batch[:0]
	return true
}

// Pending reports how many records are waiting to be written.
func (s *Service) Pending() int { return len(s.batch) }
