package export

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/movements-dev/triodos-movements/internal/model"
)

// Store keeps movements in a SQLite database, one row per (year, position).
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReplaceYear swaps every stored movement of year for movs in one transaction.
func (s *Store) ReplaceYear(ctx context.Context, year int, movs []model.Movement) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM movements WHERE year = ?`, year); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movements (
			year, position, date_execution, date_value, description, amount,
			operation, establishment, concept, ref_n
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range movs {
		_, err = stmt.ExecContext(ctx,
			year, i,
			m.DateExecution, m.DateValue, m.Description, m.Amount.StringFixed(2),
			nullable(m.Operation), nullable(m.Establishment), nullable(m.Concept), nullable(m.RefN),
		)
		if err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Count returns how many movements are stored for year.
func (s *Store) Count(ctx context.Context, year int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE year = ?`, year).Scan(&n)
	return n, err
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS movements (
		year INTEGER NOT NULL,
		position INTEGER NOT NULL,
		date_execution TEXT NOT NULL,
		date_value TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		operation TEXT,
		establishment TEXT,
		concept TEXT,
		ref_n TEXT,
		PRIMARY KEY (year, position)
	);`)
	if err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func saveSQLite(ctx context.Context, path string, year int, movs []model.Movement) error {
	store, err := OpenStore(path)
	if err != nil {
		return err
	}
	if err := store.ReplaceYear(ctx, year, movs); err != nil {
		_ = store.Close()
		return err
	}
	return store.Close()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
