package model

import "time"

const TableNameJournalEvent = "journal_events"

// JournalEvent mapped from table <journal_events>
type JournalEvent struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement:true" json:"seq"`
	EventID    string    `gorm:"column:event_id;not null" json:"event_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Kind       string    `gorm:"column:kind;not null" json:"kind"`
	Message    string    `gorm:"column:message;not null" json:"message"`
	ActorID    *int64    `gorm:"column:actor_id" json:"actor_id"`
	Round      *int32    `gorm:"column:round" json:"round"`
	Details    []byte    `gorm:"column:details;type:jsonb" json:"details"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

// TableName JournalEvent's table name
func (*JournalEvent) TableName() string {
	return TableNameJournalEvent
}
