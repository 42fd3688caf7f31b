package inmemory

import "testing"

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	r.RecordSuccess("move")
	r.RecordSuccess("wait")
	r.RecordRejected("move", "invalid_value")
	r.RecordFailure("look")
	r.RecordRound(1)
	r.RecordTurn(1, true)
	r.RecordTurn(2, false)

	s := r.Snapshot()
	if s.ActionTotal != 4 {
		t.Fatalf("expected total 4, got %d", s.ActionTotal)
	}
	if s.ActionSuccess != 2 || s.ActionRejected != 1 || s.ActionFailure != 1 {
		t.Fatalf("unexpected split %+v", s)
	}
	if s.ByAction["move"] != 2 {
		t.Fatalf("expected move count 2, got %d", s.ByAction["move"])
	}
	if s.ByErrorCode["invalid_value"] != 1 {
		t.Fatalf("expected invalid_value count 1")
	}
	if s.Rounds != 1 || s.Turns != 2 || s.TurnTimeouts != 1 {
		t.Fatalf("unexpected turn counters %+v", s)
	}
}
