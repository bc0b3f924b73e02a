package store

import (
	"context"
	"time"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, id, username, email, passwordHash)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE email = $1
	`, email)
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = $1
	`, userID)
	return user, err
}
