package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
)

type stubTxManager struct{}

func (stubTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubEventRepo struct {
	mu      sync.Mutex
	events  []event.Event
	batches int
	fail    error
}

func (r *stubEventRepo) Append(_ context.Context, events []event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.batches++
	r.events = append(r.events, events...)
	return nil
}

func (r *stubEventRepo) List(context.Context, ports.EventFilter) ([]event.Event, error) {
	return nil, ports.ErrNotFound
}

func (r *stubEventRepo) snapshot() ([]event.Event, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...), r.batches
}

func TestJournal_TagsRoundAndFlushesOnStop(t *testing.T) {
	repo := &stubEventRepo{}
	j := New(repo, stubTxManager{}, WithBatchSize(100), WithFlushInterval(time.Hour))

	j.Listen(event.New(event.KindRound, event.RoundStart, "", map[string]any{event.DetailRound: 3}))
	j.Listen(event.New(event.KindAction, "wait", "", nil))
	j.Listen(event.New(event.KindRound, event.RoundEnd, "", map[string]any{event.DetailRound: 3}))
	j.Listen(event.New(event.KindAction, "look", "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	events, batches := repo.snapshot()
	if len(events) != 4 || batches != 1 {
		t.Fatalf("expected one batch of 4, got %d events in %d batches", len(events), batches)
	}
	if events[1].Details[event.DetailRound] != 3 {
		t.Fatalf("in-round event must carry the round, got %+v", events[1].Details)
	}
	if _, ok := events[3].Details[event.DetailRound]; ok {
		t.Fatalf("events after round_end carry no round, got %+v", events[3].Details)
	}
	if j.Written() != 4 {
		t.Fatalf("expected 4 written, got %d", j.Written())
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	j := New(&stubEventRepo{}, stubTxManager{}, WithBuffer(2))

	for i := 0; i < 5; i++ {
		j.Listen(event.New(event.KindSystem, "tick", "", nil))
	}
	if j.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", j.Dropped())
	}
}

func TestJournal_WritesBatches(t *testing.T) {
	repo := &stubEventRepo{}
	j := New(repo, stubTxManager{}, WithBatchSize(2), WithFlushInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.Listen(event.New(event.KindSystem, "a", "", nil))
	j.Listen(event.New(event.KindSystem, "b", "", nil))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if events, _ := repo.snapshot(); len(events) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("batch was never written")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestJournal_FailedWriteIsNotCounted(t *testing.T) {
	repo := &stubEventRepo{fail: errors.New("db down")}
	j := New(repo, stubTxManager{})
	j.Listen(event.New(event.KindSystem, "a", "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if j.Written() != 0 {
		t.Fatalf("expected nothing written, got %d", j.Written())
	}
}
