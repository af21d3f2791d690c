package preset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"
)

// Repository persists preset labels.
type Repository interface {
	List(ctx context.Context) ([]Preset, error)
	Get(ctx context.Context, number int) (*Preset, error)
	SetLabel(ctx context.Context, number int, label string) (*Preset, error)
	MarkStored(ctx context.Context, number int) error
}

// SQLiteRepository implements Repository on the presets table.
type SQLiteRepository struct {
	db    *sql.DB
	count int
}

// NewSQLiteRepository creates a repository for count presets, numbered
// 0..count-1. A count of zero means DefaultCount.
func NewSQLiteRepository(db *sql.DB, count int) *SQLiteRepository {
	if count <= 0 {
		count = DefaultCount
	}
	return &SQLiteRepository{db: db, count: count}
}

// Count returns the number of presets managed.
func (r *SQLiteRepository) Count() int {
	return r.count
}

// Seed inserts a row with the default label for every missing preset.
// Existing labels are left alone.
func (r *SQLiteRepository) Seed(ctx context.Context) error {
	const query = `INSERT OR IGNORE INTO presets (number, label, updated_at) VALUES (?, ?, ?)`
	now := formatTime(time.Now())
	for n := range r.count {
		if _, err := r.db.ExecContext(ctx, query, n, DefaultLabel(n), now); err != nil {
			return fmt.Errorf("seeding preset %d: %w", n, err)
		}
	}
	return nil
}

// List returns the managed presets ordered by number.
func (r *SQLiteRepository) List(ctx context.Context) ([]Preset, error) {
	const query = `SELECT number, label, stored_at, updated_at
		FROM presets WHERE number < ? ORDER BY number`
	rows, err := r.db.QueryContext(ctx, query, r.count)
	if err != nil {
		return nil, fmt.Errorf("querying presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presets: %w", err)
	}
	return presets, nil
}

// Get returns one preset.
func (r *SQLiteRepository) Get(ctx context.Context, number int) (*Preset, error) {
	if err := r.checkNumber(number); err != nil {
		return nil, err
	}
	const query = `SELECT number, label, stored_at, updated_at FROM presets WHERE number = ?`
	p, err := scanPreset(r.db.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPresetNotFound, number)
	}
	return p, err
}

// SetLabel changes a preset's label, creating the row if needed.
func (r *SQLiteRepository) SetLabel(ctx context.Context, number int, label string) (*Preset, error) {
	if err := r.checkNumber(number); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return nil, fmt.Errorf("%w: %d characters", ErrLabelTooLong, utf8.RuneCountInString(label))
	}

	const query = `INSERT INTO presets (number, label, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (number) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, number, label, formatTime(time.Now())); err != nil {
		return nil, fmt.Errorf("updating preset %d: %w", number, err)
	}
	return r.Get(ctx, number)
}

// MarkStored records that the camera was told to save the position.
func (r *SQLiteRepository) MarkStored(ctx context.Context, number int) error {
	if err := r.checkNumber(number); err != nil {
		return err
	}
	now := formatTime(time.Now())
	const query = `INSERT INTO presets (number, label, stored_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (number) DO UPDATE SET stored_at = excluded.stored_at, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, number, DefaultLabel(number), now, now); err != nil {
		return fmt.Errorf("marking preset %d stored: %w", number, err)
	}
	return nil
}

// Import reads a legacy presets.json document and applies its labels to
// presets still carrying their default label. It returns how many labels
// were applied, so running it on every start only imports once.
func (r *SQLiteRepository) Import(ctx context.Context, src io.Reader) (int, error) {
	var entries []legacyPreset
	if err := json.NewDecoder(src).Decode(&entries); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	const query = `UPDATE presets SET label = ?, updated_at = ? WHERE number = ? AND label = ?`
	now := formatTime(time.Now())

	applied := 0
	for _, e := range entries {
		if r.checkNumber(e.Number) != nil || utf8.RuneCountInString(e.Text) > MaxLabelLength {
			continue
		}
		res, err := r.db.ExecContext(ctx, query, e.Text, now, e.Number, DefaultLabel(e.Number))
		if err != nil {
			return applied, fmt.Errorf("importing preset %d: %w", e.Number, err)
		}
		if n, _ := res.RowsAffected(); n > 0 { //nolint:errcheck // sqlite always reports
			applied++
		}
	}
	return applied, nil
}

// ImportFile runs Import on the file at path.
func (r *SQLiteRepository) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening presets file: %w", err)
	}
	defer f.Close()
	return r.Import(ctx, f)
}

func (r *SQLiteRepository) checkNumber(number int) error {
	if number < 0 || number >= r.count {
		return fmt.Errorf("%w: %d not in 0..%d", ErrInvalidNumber, number, r.count-1)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (*Preset, error) {
	var (
		p         Preset
		storedAt  sql.NullString
		updatedAt string
	)
	if err := row.Scan(&p.Number, &p.Text, &storedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning preset: %w", err)
	}
	p.UpdatedAt = parseTime(updatedAt)
	if storedAt.Valid {
		t := parseTime(storedAt.String)
		p.StoredAt = &t
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // written by formatTime or the column default
	return t
}
