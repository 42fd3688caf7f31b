package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"turnkeep/internal/adapter/repo/memory"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/platform/config"

	"github.com/rs/zerolog"
)

func TestBuildJournalStore_InMemoryWithoutDSN(t *testing.T) {
	repo, tx, err := buildJournalStore(context.Background(), config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildJournalStore: %v", err)
	}
	if _, ok := repo.(memory.EventRepo); !ok {
		t.Fatalf("expected memory event repo, got %T", repo)
	}
	if _, ok := tx.(memory.TxManager); !ok {
		t.Fatalf("expected memory tx manager, got %T", tx)
	}

	err = tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return repo.Append(ctx, []event.Event{{ID: "e1", Name: "look", Kind: event.KindAction}})
	})
	if err != nil {
		t.Fatalf("append in tx: %v", err)
	}
}

func TestNewLogger_WritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, zerolog.WarnLevel)

	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.Warn().Msg("shown")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line: %v (%q)", err, buf.String())
	}
	if line["service"] != serviceName || line["message"] != "shown" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
