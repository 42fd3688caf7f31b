package ports

type ActionMetrics interface {
	RecordSuccess(action string)
	RecordRejected(action, code string)
	RecordFailure(action string)
}

type TurnMetrics interface {
	RecordTurn(actor uint32, timedOut bool)
	RecordRound(round int)
}
