package main

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"moneybook/internal/config"
	"moneybook/internal/db"

	"github.com/jmoiron/sqlx"
)

// Applies migrations/*.sql in filename order. Each file runs inside one
// transaction together with its schema_migrations record, so a failing
// migration leaves nothing half-applied.
func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatalf("failed to read migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		done, err := applied(database, filename)
		if err != nil {
			log.Fatalf("failed to read migration state: %v", err)
		}
		if done {
			continue
		}
		if err := runFile(database, file, filename); err != nil {
			log.Fatalf("failed to apply %s: %v", filename, err)
		}
		log.Printf("applied %s", filename)
	}
}

func applied(database *sqlx.DB, filename string) (bool, error) {
	var exists bool
	err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename)
	return exists, err
}

func runFile(database *sqlx.DB, path, filename string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	for _, stmt := range statements(upSection(string(content))) {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// upSection cuts the file at the "-- +migrate Down" marker; everything
// below it is the rollback half and is never executed here.
func upSection(content string) string {
	up, _, _ := strings.Cut(content, "-- +migrate Down")
	return up
}

func statements(sqlText string) []string {
	var out []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			out = append(out, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		out = append(out, current.String())
	}
	var trimmed []string
	for _, stmt := range out {
		if strings.TrimSpace(stmt) != "" {
			trimmed = append(trimmed, stmt)
		}
	}
	return trimmed
}
