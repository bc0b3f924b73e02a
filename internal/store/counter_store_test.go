package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"moneybook/internal/engine"
)

func TestCounterStoreSave(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO ident_counters") || !strings.Contains(query, "GREATEST") {
				t.Fatalf("counter save must never move a sequence backwards: %s", query)
			}
			if args[0] != 2025 || args[1] != 6 || args[2] != "AP" || args[3] != 12 {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewCounterStore(stubDB{})
	state := engine.CounterState{Year: 2025, Month: time.June, Code: engine.CodePayable, Seq: 12}
	if err := store.Save(ctx, execer, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCounterStoreListAll(t *testing.T) {
	ctx := context.Background()
	store := NewCounterStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM ident_counters") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*[]counterRow) = []counterRow{{Year: 2025, Month: 6, Code: "CO", Seq: 3}}
			return nil
		},
	})
	states, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 || states[0].Month != time.June || states[0].Code != engine.CodeCashOut {
		t.Fatalf("unexpected states: %#v", states)
	}
}
