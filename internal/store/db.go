// Package store persists the ledger's row types. Stores are thin: all
// invariants live in the engine, so a store only moves one row shape in
// or out of Postgres.
package store

import (
	"context"
	"database/sql"
)

// Execer is the write surface a store method needs. Both *sqlx.DB and
// *sqlx.Tx satisfy it; mutating methods take it explicitly so the
// service layer decides the transaction boundary.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the read handle a store keeps for queries outside any
// transaction, typically hydration at startup.
type DB interface {
	Execer
	Getter
	Selecter
}
