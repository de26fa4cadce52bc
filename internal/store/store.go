// Package store persists applications and their sanitized sections in SQLite.
//
// Sections are stored as the JSON of their sanitized form and are run through
// the sanitizer again on every read, so callers always get schema-shaped
// documents even after the catalog changes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/summary"
)

// Schema creates the application tables.
const Schema = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	business_idea TEXT NOT NULL DEFAULT '',
	subject_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_costs REAL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sections (
	app_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	section_key TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (app_id, section_key)
);
CREATE INDEX IF NOT EXISTS idx_applications_updated ON applications(updated_at);
`

var (
	// ErrNotFound reports an unknown application id.
	ErrNotFound = errors.New("application not found")
	// ErrUnknownSection reports a section key the catalog does not declare.
	ErrUnknownSection = errors.New("unknown section")
)

// Status is the application lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValid     Status = "valid"
	StatusSubmitted Status = "submitted"
	StatusArchived  Status = "archived"
)

// Validate enforces supported statuses.
func (s Status) Validate() error {
	switch s {
	case StatusDraft, StatusValid, StatusSubmitted, StatusArchived:
		return nil
	default:
		return fmt.Errorf("unsupported status: %q", s)
	}
}

// Application is one stored application header.
type Application struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	BusinessIdea string    `json:"business_idea"`
	SubjectType  string    `json:"subject_type"`
	Status       Status    `json:"status"`
	TotalCosts   *float64  `json:"total_costs,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewApplication is the input to CreateApplication.
type NewApplication struct {
	Title        string `json:"title"`
	BusinessIdea string `json:"business_idea"`
	SubjectType  string `json:"subject_type"`
}

// Store is safe for concurrent use.
type Store struct {
	db       *sql.DB
	pipeline sanitize.Pipeline
	now      func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, pipeline sanitize.Pipeline) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, pipeline)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies pragmas and the schema.
func New(ctx context.Context, db *sql.DB, pipeline sanitize.Pipeline) (*Store, error) {
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db, pipeline: pipeline, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateApplication inserts a new draft application.
func (s *Store) CreateApplication(ctx context.Context, in NewApplication) (Application, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	app := Application{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(in.Title),
		BusinessIdea: strings.TrimSpace(in.BusinessIdea),
		SubjectType:  strings.TrimSpace(in.SubjectType),
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (id, title, business_idea, subject_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Title, app.BusinessIdea, app.SubjectType, string(app.Status), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Application{}, fmt.Errorf("store: create application: %w", err)
	}
	return app, nil
}

const applicationColumns = `id, title, business_idea, subject_type, status, total_costs, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var (
		app        Application
		status     string
		totalCosts sql.NullFloat64
		created    int64
		updated    int64
	)
	if err := row.Scan(&app.ID, &app.Title, &app.BusinessIdea, &app.SubjectType, &status, &totalCosts, &created, &updated); err != nil {
		return Application{}, err
	}
	app.Status = Status(status)
	if totalCosts.Valid {
		v := totalCosts.Float64
		app.TotalCosts = &v
	}
	app.CreatedAt = time.UnixMilli(created).UTC()
	app.UpdatedAt = time.UnixMilli(updated).UTC()
	return app, nil
}

// GetApplication loads one application header.
func (s *Store) GetApplication(ctx context.Context, id string) (Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Application{}, fmt.Errorf("store: get application: %w", err)
	}
	return app, nil
}

// ListApplications returns every application, most recently updated first.
func (s *Store) ListApplications(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list applications: %w", err)
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan application: %w", err)
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

// SetStatus moves an application to status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE applications SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	return requireRow(res, id)
}

// SaveSections upserts the given sections in one transaction. Sections are
// written as given; callers are expected to pass sanitized values. When the
// cost section is among them the application's total costs are refreshed.
func (s *Store) SaveSections(ctx context.Context, id string, doc document.Document) error {
	reg := s.pipeline.Registry()
	for _, key := range doc.SectionKeys() {
		if _, ok := reg.Section(key); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSection, key)
		}
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("store: save sections: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().UnixMilli()
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM applications WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("store: save sections: %w", err)
	}

	for _, key := range doc.SectionKeys() {
		data, err := json.Marshal(doc[key])
		if err != nil {
			return fmt.Errorf("store: marshal section %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sections (app_id, section_key, data, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(app_id, section_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			id, key, string(data), now)
		if err != nil {
			return fmt.Errorf("store: upsert section %s: %w", key, err)
		}
	}

	if _, ok := doc[summary.CostSection]; ok {
		if _, err := tx.ExecContext(ctx, `UPDATE applications SET total_costs = ?, updated_at = ? WHERE id = ?`,
			summary.Compute(doc).Years[0].TotalCosts, now, id); err != nil {
			return fmt.Errorf("store: update totals: %w", err)
		}
	} else if _, err := tx.ExecContext(ctx, `UPDATE applications SET updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("store: touch application: %w", err)
	}
	return tx.Commit()
}

// LoadSections reads every stored section back through the sanitizer. The
// reserved personal section is included when stored. Sections never saved
// surface as "section is missing" issues.
func (s *Store) LoadSections(ctx context.Context, id string) (document.Result, error) {
	if _, err := s.GetApplication(ctx, id); err != nil {
		return document.Result{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT section_key, data FROM sections WHERE app_id = ? ORDER BY section_key`, id)
	if err != nil {
		return document.Result{}, fmt.Errorf("store: load sections: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]any)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return document.Result{}, fmt.Errorf("store: scan section: %w", err)
		}
		decoded, err := sanitize.Decode([]byte(data))
		if err != nil {
			return document.Result{}, fmt.Errorf("store: decode section %s: %w", key, err)
		}
		raw[key] = decoded
	}
	if err := rows.Err(); err != nil {
		return document.Result{}, fmt.Errorf("store: load sections: %w", err)
	}

	result := s.pipeline.Run(raw)
	reserved := s.pipeline.Registry().Reserved()
	if stored, ok := raw[reserved.Key]; ok {
		section, issues := s.pipeline.RunSection(reserved.Key, stored)
		result.Data[reserved.Key] = section
		result.Issues = append(result.Issues, issues...)
		result.Success = len(result.Issues) == 0
	}
	return result, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
