package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(cfg Config) (*sqliteBackend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	b := &sqliteBackend{db: db}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return b, nil
}

func (s *sqliteBackend) migrate(ctx context.Context) error {
	ddl, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(ddl))
	return err
}

func (s *sqliteBackend) list(ctx context.Context, k kind) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM documents WHERE kind = ? ORDER BY seq`, string(k))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, []byte(doc))
	}
	return out, rows.Err()
}

func (s *sqliteBackend) get(ctx context.Context, k kind, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE kind = ? AND id = ?`, string(k), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", k, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (s *sqliteBackend) insert(ctx context.Context, k kind, id string, doc []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(kind, id, data) VALUES(?, ?, ?)`,
		string(k), id, string(doc),
	)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", k, id, err)
	}
	return nil
}

func (s *sqliteBackend) replace(ctx context.Context, k kind, id string, doc []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE kind = ? AND id = ?`,
		string(doc), string(k), id,
	)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", k, id, err)
	}
	return affectedOne(res, k, id)
}

func (s *sqliteBackend) remove(ctx context.Context, k kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(k), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", k, id, err)
	}
	return affectedOne(res, k, id)
}

func affectedOne(res sql.Result, k kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", k, id, ErrNotFound)
	}
	return nil
}

func (s *sqliteBackend) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
