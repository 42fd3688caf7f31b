package inmemory

import "sync"

type Snapshot struct {
	ActionTotal    uint64            `json:"action_total"`
	ActionSuccess  uint64            `json:"action_success"`
	ActionRejected uint64            `json:"action_rejected"`
	ActionFailure  uint64            `json:"action_failure"`
	ByAction       map[string]uint64 `json:"by_action"`
	ByErrorCode    map[string]uint64 `json:"by_error_code"`
	Rounds         uint64            `json:"rounds"`
	Turns          uint64            `json:"turns"`
	TurnTimeouts   uint64            `json:"turn_timeouts"`
}

// Recorder implements ports.ActionMetrics and ports.TurnMetrics.
type Recorder struct {
	mu       sync.Mutex
	success  uint64
	rejected uint64
	failure  uint64
	byAction map[string]uint64
	byCode   map[string]uint64
	rounds   uint64
	turns    uint64
	timeouts uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byAction: map[string]uint64{},
		byCode:   map[string]uint64{},
	}
}

func (r *Recorder) RecordSuccess(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	r.byAction[action]++
}

func (r *Recorder) RecordRejected(action, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
	r.byAction[action]++
	r.byCode[code]++
}

func (r *Recorder) RecordFailure(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
	r.byAction[action]++
}

func (r *Recorder) RecordTurn(_ uint32, timedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns++
	if timedOut {
		r.timeouts++
	}
}

func (r *Recorder) RecordRound(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		ActionSuccess:  r.success,
		ActionRejected: r.rejected,
		ActionFailure:  r.failure,
		ActionTotal:    r.success + r.rejected + r.failure,
		ByAction:       make(map[string]uint64, len(r.byAction)),
		ByErrorCode:    make(map[string]uint64, len(r.byCode)),
		Rounds:         r.rounds,
		Turns:          r.turns,
		TurnTimeouts:   r.timeouts,
	}
	for k, v := range r.byAction {
		out.ByAction[k] = v
	}
	for k, v := range r.byCode {
		out.ByErrorCode[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
