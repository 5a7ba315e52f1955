// Package forms is the non-conformity form record store. It sits outside the
// ingestion pipeline: forms are filled in by quality technicians, not derived
// from the export, and live in a local sqlite database.
package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a form id or numero does not exist.
var ErrNotFound = errors.New("form not found")

// Valid workflow states.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

// Form is one non-conformity record.
type Form struct {
	ID             int64     `json:"id"`
	Numero         string    `json:"numero"`
	Machine        string    `json:"machine"`
	Material       string    `json:"material"`
	Description    string    `json:"description"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	ProductionDate string    `json:"productionDate"`
	UnitPrice      float64   `json:"unitPrice"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS forms (
  id              INTEGER PRIMARY KEY,
  numero          TEXT NOT NULL UNIQUE,
  machine         TEXT NOT NULL,
  material        TEXT NOT NULL DEFAULT '',
  description     TEXT NOT NULL DEFAULT '',
  reason          TEXT NOT NULL DEFAULT '',
  status          TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','in_progress','closed')),
  priority        TEXT NOT NULL DEFAULT 'normal',
  production_date TEXT NOT NULL DEFAULT '',
  unit_price      REAL NOT NULL DEFAULT 0,
  created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_forms_status ON forms(status);
CREATE INDEX IF NOT EXISTS idx_forms_machine ON forms(machine);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// NextNumero allocates the next form number, "NC-<year>-<seq>", scanning the
// existing maximum for the year so numbering survives restarts.
func (d *DB) NextNumero(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("NC-%d-", year)
	var maxNumero sql.NullString
	err := d.sql.QueryRowContext(ctx,
		"SELECT MAX(numero) FROM forms WHERE numero LIKE ?", prefix+"%").Scan(&maxNumero)
	if err != nil {
		return "", err
	}
	seq := 1
	if maxNumero.Valid {
		var got int
		if _, err := fmt.Sscanf(strings.TrimPrefix(maxNumero.String, prefix), "%d", &got); err == nil {
			seq = got + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// Create inserts a new form. Empty numero gets allocated; empty status
// defaults to open.
func (d *DB) Create(ctx context.Context, f *Form) error {
	if f.Machine == "" {
		return errors.New("machine is required")
	}
	if f.Status == "" {
		f.Status = StatusOpen
	}
	if f.Priority == "" {
		f.Priority = "normal"
	}
	if f.Numero == "" {
		numero, err := d.NextNumero(ctx, time.Now().Year())
		if err != nil {
			return err
		}
		f.Numero = numero
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO forms(numero, machine, material, description, reason, status, priority, production_date, unit_price) VALUES(?,?,?,?,?,?,?,?,?)`,
		f.Numero, f.Machine, f.Material, f.Description, f.Reason, f.Status, f.Priority, f.ProductionDate, f.UnitPrice)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

// Get fetches one form by id.
func (d *DB) Get(ctx context.Context, id int64) (*Form, error) {
	row := d.sql.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	return scanForm(row)
}

// Update rewrites the mutable fields of an existing form.
func (d *DB) Update(ctx context.Context, f *Form) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE forms SET machine = ?, material = ?, description = ?, reason = ?, status = ?, priority = ?, production_date = ?, unit_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		f.Machine, f.Material, f.Description, f.Reason, f.Status, f.Priority, f.ProductionDate, f.UnitPrice, f.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a form by id.
func (d *DB) Delete(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM forms WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOptions controls selection when listing forms.
type ListOptions struct {
	Status  string
	Machine string
	Search  string
}

// List returns forms matching the filters, newest first.
func (d *DB) List(ctx context.Context, opts ListOptions) ([]Form, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Status != "" {
		where += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.Machine != "" {
		where += " AND machine = ?"
		args = append(args, opts.Machine)
	}
	if opts.Search != "" {
		where += " AND (numero LIKE ? OR material LIKE ? OR description LIKE ?)"
		pattern := fmt.Sprintf("%%%s%%", opts.Search)
		args = append(args, pattern, pattern, pattern)
	}

	rows, err := d.sql.QueryContext(ctx, selectColumns+" "+where+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const selectColumns = "SELECT id, numero, machine, material, description, reason, status, priority, production_date, unit_price, created_at, updated_at FROM forms"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanForm(row rowScanner) (*Form, error) {
	var f Form
	var createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.Numero, &f.Machine, &f.Material, &f.Description, &f.Reason,
		&f.Status, &f.Priority, &f.ProductionDate, &f.UnitPrice, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.CreatedAt = parseSQLiteTime(createdAt)
	f.UpdatedAt = parseSQLiteTime(updatedAt)
	return &f, nil
}

// parseSQLiteTime handles CURRENT_TIMESTAMP's format, then RFC3339.
func parseSQLiteTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
