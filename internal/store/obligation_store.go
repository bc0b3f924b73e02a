package store

import (
	"context"
	"time"

	"moneybook/internal/engine"
)

type ObligationStore struct {
	db DB
}

func NewObligationStore(db DB) *ObligationStore {
	return &ObligationStore{db: db}
}

type obligationRow struct {
	ID            string     `db:"id"`
	UserID        string     `db:"user_id"`
	Counterparty  string     `db:"counterparty"`
	Polarity      string     `db:"polarity"`
	Original      int64      `db:"original"`
	Remaining     int64      `db:"remaining"`
	DueDate       *time.Time `db:"due_date"`
	Settled       bool       `db:"settled"`
	WalletID      string     `db:"wallet_id"`
	OriginEntryID string     `db:"origin_entry_id"`
	CreatedAt     time.Time  `db:"created_at"`
}

type settlementRow struct {
	ID           string    `db:"id"`
	ObligationID string    `db:"obligation_id"`
	Magnitude    int64     `db:"magnitude"`
	WalletID     string    `db:"wallet_id"`
	Note         string    `db:"note"`
	EntryID      string    `db:"entry_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// Upsert writes the obligation header; remaining, settled and due date
// are the fields that move after creation.
func (s *ObligationStore) Upsert(ctx context.Context, tx Execer, ob engine.Obligation) error {
	var dueDate *time.Time
	if !ob.DueDate.IsZero() {
		due := ob.DueDate
		dueDate = &due
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO obligations (
			id, user_id, counterparty, polarity, original, remaining,
			due_date, settled, wallet_id, origin_entry_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET remaining = EXCLUDED.remaining,
		    settled = EXCLUDED.settled,
		    due_date = EXCLUDED.due_date
	`, ob.ID, ob.OwnerID, ob.Counterparty, string(ob.Polarity), ob.Original, ob.Remaining,
		dueDate, ob.Settled, ob.WalletID, ob.OriginEntryID, ob.CreatedAt)
	return err
}

func (s *ObligationStore) Delete(ctx context.Context, tx Execer, obligationID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM obligations WHERE id = $1`, obligationID)
	return err
}

func (s *ObligationStore) InsertSettlement(ctx context.Context, tx Execer, obligationID string, rec engine.SettlementRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settlements (id, obligation_id, magnitude, wallet_id, note, entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, obligationID, rec.Magnitude, rec.WalletID, rec.Note, rec.EntryID, rec.CreatedAt)
	return err
}

func (s *ObligationStore) DeleteSettlement(ctx context.Context, tx Execer, settlementID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM settlements WHERE id = $1`, settlementID)
	return err
}

// ListAll loads every obligation with its settlement history in
// settlement creation order.
func (s *ObligationStore) ListAll(ctx context.Context) ([]engine.Obligation, error) {
	var rows []obligationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, counterparty, polarity, original, remaining,
		       due_date, settled, wallet_id, origin_entry_id, created_at
		FROM obligations
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	var recRows []settlementRow
	err = s.db.SelectContext(ctx, &recRows, `
		SELECT id, obligation_id, magnitude, wallet_id, note, entry_id, created_at
		FROM settlements
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}

	history := make(map[string][]engine.SettlementRecord)
	for _, rec := range recRows {
		history[rec.ObligationID] = append(history[rec.ObligationID], engine.SettlementRecord{
			ID:        rec.ID,
			Magnitude: rec.Magnitude,
			WalletID:  rec.WalletID,
			Note:      rec.Note,
			EntryID:   rec.EntryID,
			CreatedAt: rec.CreatedAt,
		})
	}

	obligations := make([]engine.Obligation, 0, len(rows))
	for _, row := range rows {
		ob := engine.Obligation{
			ID:            row.ID,
			OwnerID:       row.UserID,
			Counterparty:  row.Counterparty,
			Polarity:      engine.Polarity(row.Polarity),
			Original:      row.Original,
			Remaining:     row.Remaining,
			Settled:       row.Settled,
			WalletID:      row.WalletID,
			OriginEntryID: row.OriginEntryID,
			Settlements:   history[row.ID],
			CreatedAt:     row.CreatedAt,
		}
		if row.DueDate != nil {
			ob.DueDate = *row.DueDate
		}
		obligations = append(obligations, ob)
	}
	return obligations, nil
}
