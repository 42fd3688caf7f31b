// Package journal archives dispatched events through an EventRepository.
//
// Listen runs on the core goroutine and must never block it, so events are
// handed over through a bounded buffer. When the buffer is full the event
// is dropped and counted.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"

	"github.com/rs/zerolog"
)

const (
	defaultBuffer        = 256
	defaultBatchSize     = 64
	defaultFlushInterval = 500 * time.Millisecond
)

type Option func(*Journal)

func WithBuffer(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.buffer = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(j *Journal) {
		if d > 0 {
			j.flushEvery = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

type Journal struct {
	repo       ports.EventRepository
	tx         ports.TxManager
	logger     zerolog.Logger
	buffer     int
	batchSize  int
	flushEvery time.Duration

	ch      chan event.Event
	round   int
	dropped atomic.Int64
	written atomic.Int64
}

func New(repo ports.EventRepository, tx ports.TxManager, opts ...Option) *Journal {
	j := &Journal{
		repo:       repo,
		tx:         tx,
		logger:     zerolog.Nop(),
		buffer:     defaultBuffer,
		batchSize:  defaultBatchSize,
		flushEvery: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.ch = make(chan event.Event, j.buffer)
	return j
}

// Listen is a pipeline listener. Events between round_start and round_end
// are tagged with the round number when they do not carry one already.
func (j *Journal) Listen(ev event.Event) {
	if ev.Kind == event.KindRound && ev.Name == event.RoundStart {
		if r, ok := ev.Details[event.DetailRound].(int); ok {
			j.round = r
		}
	}
	if _, ok := ev.Details[event.DetailRound]; !ok && j.round != 0 {
		ev = ev.With(event.DetailRound, j.round)
	}
	if ev.Kind == event.KindRound && ev.Name == event.RoundEnd {
		j.round = 0
	}

	select {
	case j.ch <- ev:
	default:
		n := j.dropped.Add(1)
		j.logger.Warn().Str("event", ev.Name).Int64("dropped_total", n).Msg("journal buffer full, event dropped")
	}
}

func (j *Journal) Dropped() int64 { return j.dropped.Load() }
func (j *Journal) Written() int64 { return j.written.Load() }

// Run writes buffered events until ctx is done, then flushes what is left
// without the cancelled context.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.flushEvery)
	defer ticker.Stop()

	batch := make([]event.Event, 0, j.batchSize)
	for {
		select {
		case ev := <-j.ch:
			batch = append(batch, ev)
			if len(batch) >= j.batchSize {
				batch = j.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = j.flush(ctx, batch)
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for {
				select {
				case ev := <-j.ch:
					batch = append(batch, ev)
				default:
					j.flush(final, batch)
					return nil
				}
			}
		}
	}
}

func (j *Journal) flush(ctx context.Context, batch []event.Event) []event.Event {
	if len(batch) == 0 {
		return batch
	}
	err := j.tx.RunInTx(ctx, func(ctx context.Context) error {
		return j.repo.Append(ctx, batch)
	})
	if err != nil {
		j.logger.Error().Err(err).Int("events", len(batch)).Msg("journal write failed")
	} else {
		j.written.Add(int64(len(batch)))
	}
	return batch[:0]
}
