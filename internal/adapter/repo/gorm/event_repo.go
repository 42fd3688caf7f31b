package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"turnkeep/internal/adapter/repo/gorm/model"
	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return EventRepo{db: db}
}

// Append stores events once each; an event id already in the journal is
// skipped.
func (r EventRepo) Append(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.JournalEvent, 0, len(events))
	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode details of %s: %w", e.ID, err)
		}
		rows = append(rows, model.JournalEvent{
			EventID:    e.ID,
			Name:       e.Name,
			Kind:       string(e.Kind),
			Message:    e.Message,
			ActorID:    actorColumn(e),
			Round:      roundColumn(e),
			Details:    details,
			OccurredAt: e.OccurredAt,
		})
	}
	return dbFrom(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&rows).Error
}

// List returns the newest matching events in the order they happened.
func (r EventRepo) List(ctx context.Context, filter ports.EventFilter) ([]event.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := dbFrom(ctx, r.db).Model(&model.JournalEvent{})
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Actor != 0 {
		query = query.Where("actor_id = ?", int64(filter.Actor))
	}
	if filter.Round != 0 {
		query = query.Where("round = ?", filter.Round)
	}
	if !filter.From.IsZero() {
		query = query.Where("occurred_at >= ?", filter.From)
	}
	if !filter.Before.IsZero() {
		query = query.Where("occurred_at < ?", filter.Before)
	}

	rows := []model.JournalEvent{}
	err := query.
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "seq"}, Desc: true}}}).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ports.ErrNotFound
	}

	out := make([]event.Event, len(rows))
	for i, row := range rows {
		ev, err := toEvent(row)
		if err != nil {
			return nil, err
		}
		out[len(rows)-1-i] = ev
	}
	return out, nil
}

func toEvent(row model.JournalEvent) (event.Event, error) {
	var details map[string]any
	if len(row.Details) > 0 {
		if err := json.Unmarshal(row.Details, &details); err != nil {
			return event.Event{}, fmt.Errorf("decode details of %s: %w", row.EventID, err)
		}
	}
	return event.Event{
		ID:         row.EventID,
		Name:       row.Name,
		Message:    row.Message,
		Kind:       event.Kind(row.Kind),
		Details:    details,
		OccurredAt: row.OccurredAt,
	}, nil
}

func actorColumn(e event.Event) *int64 {
	switch v := e.Details[event.DetailActor].(type) {
	case store.Entity:
		n := int64(v)
		return &n
	case float64:
		n := int64(v)
		return &n
	}
	return nil
}

func roundColumn(e event.Event) *int32 {
	switch v := e.Details[event.DetailRound].(type) {
	case int:
		n := int32(v)
		return &n
	case float64:
		n := int32(v)
		return &n
	}
	return nil
}
