package store

import (
	"context"
	"time"

	"moneybook/internal/engine"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

type walletRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *WalletStore) Insert(ctx context.Context, tx Execer, wallet engine.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, name, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, wallet.ID, wallet.OwnerID, wallet.Name, wallet.Balance, wallet.CreatedAt)
	return err
}

func (s *WalletStore) UpdateBalance(ctx context.Context, tx Execer, walletID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1 WHERE id = $2
	`, balance, walletID)
	return err
}

func (s *WalletStore) Delete(ctx context.Context, tx Execer, walletID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM wallets WHERE id = $1`, walletID)
	return err
}

func (s *WalletStore) ListAll(ctx context.Context) ([]engine.Wallet, error) {
	var rows []walletRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, balance, created_at
		FROM wallets
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	wallets := make([]engine.Wallet, 0, len(rows))
	for _, row := range rows {
		wallets = append(wallets, engine.Wallet{
			ID:        row.ID,
			OwnerID:   row.UserID,
			Name:      row.Name,
			Balance:   row.Balance,
			CreatedAt: row.CreatedAt,
		})
	}
	return wallets, nil
}
