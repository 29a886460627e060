// Package programs stores BASIC programs in SQLite, seeds them from a YAML
// catalog and serves them over HTTP.
package programs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/tibasic"
)

var (
	ErrNotFound    = errors.New("program not found")
	ErrInvalidName = errors.New("invalid program name")
)

// Program names follow the calculator's rule: up to 8 letters and digits,
// starting with a letter.
var namePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,7}$`)

// Program is one stored program.
type Program struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is a program library backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(logger.AreaDatabase, "program store opened at %s", path)
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS programs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_programs_updated_at ON programs(updated_at)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create programs table: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeName upper-cases name and checks it against the naming rule.
func NormalizeName(name string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !namePattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

// Save inserts or replaces the program with p.Name. The source must compile;
// the compile error is returned otherwise. The stored program is returned.
func (s *Store) Save(ctx context.Context, p Program) (*Program, error) {
	name, err := NormalizeName(p.Name)
	if err != nil {
		return nil, err
	}
	if _, err := tibasic.Compile(p.Source); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	existing, err := s.Get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		p.ID = uuid.NewString()
		p.CreatedAt = now
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO programs (id, name, description, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, name, p.Description, p.Source, now.Unix(), now.Unix())
	case err != nil:
		return nil, err
	default:
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		_, err = s.db.ExecContext(ctx,
			`UPDATE programs SET description = ?, source = ?, updated_at = ? WHERE id = ?`,
			p.Description, p.Source, now.Unix(), p.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save program %s: %w", name, err)
	}

	p.Name = name
	p.UpdatedAt = now
	logger.Info(logger.AreaDatabase, "saved program %s (%s)", name, p.ID)
	return &p, nil
}

// Get returns the program with the given name.
func (s *Store) Get(ctx context.Context, name string) (*Program, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, source, created_at, updated_at FROM programs WHERE name = ?`, n)

	var p Program
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Source, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
		}
		return nil, fmt.Errorf("failed to load program %s: %w", n, err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return &p, nil
}

// List returns all programs ordered by name, without their source.
func (s *Store) List(ctx context.Context) ([]Program, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM programs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var list []Program
	for rows.Next() {
		var p Program
		var created, updated int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(created, 0).UTC()
		p.UpdatedAt = time.Unix(updated, 0).UTC()
		list = append(list, p)
	}
	return list, rows.Err()
}

// Delete removes the program with the given name.
func (s *Store) Delete(ctx context.Context, name string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE name = ?`, n)
	if err != nil {
		return fmt.Errorf("failed to delete program %s: %w", n, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	logger.Info(logger.AreaDatabase, "deleted program %s", n)
	return nil
}
