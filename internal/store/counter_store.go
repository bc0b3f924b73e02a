package store

import (
	"context"
	"time"

	"moneybook/internal/engine"
)

// CounterStore persists the identifier generator's monthly buckets so
// display identifiers survive restarts without ever being reissued.
type CounterStore struct {
	db DB
}

func NewCounterStore(db DB) *CounterStore {
	return &CounterStore{db: db}
}

type counterRow struct {
	Year  int    `db:"year"`
	Month int    `db:"month"`
	Code  string `db:"code"`
	Seq   int    `db:"seq"`
}

func (s *CounterStore) Save(ctx context.Context, tx Execer, state engine.CounterState) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ident_counters (year, month, code, seq)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (year, month, code) DO UPDATE
		SET seq = GREATEST(ident_counters.seq, EXCLUDED.seq)
	`, state.Year, int(state.Month), string(state.Code), state.Seq)
	return err
}

func (s *CounterStore) Delete(ctx context.Context, tx Execer, state engine.CounterState) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM ident_counters WHERE year = $1 AND month = $2 AND code = $3
	`, state.Year, int(state.Month), string(state.Code))
	return err
}

func (s *CounterStore) ListAll(ctx context.Context) ([]engine.CounterState, error) {
	var rows []counterRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT year, month, code, seq FROM ident_counters
	`)
	if err != nil {
		return nil, err
	}
	states := make([]engine.CounterState, 0, len(rows))
	for _, row := range rows {
		states = append(states, engine.CounterState{
			Year:  row.Year,
			Month: time.Month(row.Month),
			Code:  engine.Code(row.Code),
			Seq:   row.Seq,
		})
	}
	return states, nil
}
