package store

import (
	"context"
	"time"

	"moneybook/internal/engine"
)

type EntryStore struct {
	db DB
}

func NewEntryStore(db DB) *EntryStore {
	return &EntryStore{db: db}
}

type entryRow struct {
	ID             string    `db:"id"`
	DisplayID      string    `db:"display_id"`
	UserID         string    `db:"user_id"`
	WalletID       string    `db:"wallet_id"`
	Direction      string    `db:"direction"`
	Magnitude      int64     `db:"magnitude"`
	Category       string    `db:"category"`
	Note           string    `db:"note"`
	EntryDate      time.Time `db:"entry_date"`
	IsTransfer     bool      `db:"is_transfer"`
	IsObligation   bool      `db:"is_obligation_linked"`
	IsCorrection   bool      `db:"is_balance_correction"`
	ObligationID   *string   `db:"obligation_id"`
	ObligationRole *string   `db:"obligation_role"`
	ObligationSide *string   `db:"obligation_polarity"`
	CreatedAt      time.Time `db:"created_at"`
}

func (s *EntryStore) Insert(ctx context.Context, tx Execer, entry engine.LedgerEntry) error {
	var obligationID, role, polarity *string
	if entry.Flags.ObligationLinked {
		id := entry.Linkage.ObligationID
		r := string(entry.Linkage.Role)
		p := string(entry.Linkage.Polarity)
		obligationID, role, polarity = &id, &r, &p
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, display_id, user_id, wallet_id, direction, magnitude,
			category, note, entry_date, is_transfer, is_obligation_linked,
			is_balance_correction, obligation_id, obligation_role,
			obligation_polarity, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, entry.ID, entry.DisplayID, entry.OwnerID, entry.WalletID, string(entry.Direction),
		entry.Magnitude, entry.Category, entry.Note, entry.Date, entry.Flags.Transfer,
		entry.Flags.ObligationLinked, entry.Flags.BalanceCorrection, obligationID, role,
		polarity, entry.CreatedAt)
	return err
}

func (s *EntryStore) UpdateLabels(ctx context.Context, tx Execer, entryID, category, note string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries SET category = $1, note = $2 WHERE id = $3
	`, category, note, entryID)
	return err
}

func (s *EntryStore) Delete(ctx context.Context, tx Execer, entryID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = $1`, entryID)
	return err
}

func (s *EntryStore) ListAll(ctx context.Context) ([]engine.LedgerEntry, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, display_id, user_id, wallet_id, direction, magnitude,
		       category, note, entry_date, is_transfer, is_obligation_linked,
		       is_balance_correction, obligation_id, obligation_role,
		       obligation_polarity, created_at
		FROM ledger_entries
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	entries := make([]engine.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry := engine.LedgerEntry{
			ID:        row.ID,
			DisplayID: row.DisplayID,
			OwnerID:   row.UserID,
			WalletID:  row.WalletID,
			Direction: engine.Direction(row.Direction),
			Magnitude: row.Magnitude,
			Category:  row.Category,
			Note:      row.Note,
			Date:      row.EntryDate,
			Flags: engine.EntryFlags{
				Transfer:          row.IsTransfer,
				ObligationLinked:  row.IsObligation,
				BalanceCorrection: row.IsCorrection,
			},
			CreatedAt: row.CreatedAt,
		}
		if row.IsObligation && row.ObligationID != nil {
			entry.Linkage = engine.Linkage{
				ObligationID: *row.ObligationID,
				Role:         engine.Role(derefStringPtr(row.ObligationRole)),
				Polarity:     engine.Polarity(derefStringPtr(row.ObligationSide)),
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
