// Package library stores the study materials a user has ingested together
// with their lesson progress.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/cognitive-os/internal/sqlitedb"
	"github.com/koscakluka/cognitive-os/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultCoverColor = "#8B5CF6"

var ErrNotFound = errors.New("material not found")

type MaterialStatus string

const (
	StatusNew        MaterialStatus = "new"
	StatusInProgress MaterialStatus = "in_progress"
	StatusCompleted  MaterialStatus = "completed"
)

type Material struct {
	ID           string
	Title        string
	CoverColor   string
	Progress     int
	Status       MaterialStatus
	LastAccessed time.Time
	IsFavorite   bool
	ModulesCount int
	RawText      string
	// SourceURL points at the stored original upload, if any.
	SourceURL string
}

type Library struct {
	db     *sql.DB
	ownsDB bool
	now    func() time.Time
}

type Option func(*Library)

func withClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(path string, opts ...Option) (*Library, error) {
	db, err := sqlitedb.Open(path, sqlitedb.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	lib, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	lib.ownsDB = true
	return lib, nil
}

func New(db *sql.DB, opts ...Option) (*Library, error) {
	if db == nil {
		return nil, fmt.Errorf("library: missing database connection")
	}

	for _, stmt := range []string{schemaMaterials, schemaMaterialsIndexes} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare library schema: %w", err)
		}
	}

	lib := &Library{db: db, now: time.Now}
	for _, opt := range opts {
		opt(lib)
	}
	return lib, nil
}

// DB exposes the connection so other stores can share the same file.
func (l *Library) DB() *sql.DB {
	return l.db
}

func (l *Library) Close() error {
	if l == nil || !l.ownsDB {
		return nil
	}
	return l.db.Close()
}

// Add stores m as the most recently accessed material. Missing fields get
// their defaults: a fresh ID, the default cover color and status new.
func (l *Library) Add(ctx context.Context, m Material) (Material, error) {
	ctx, span := tracer.Start(ctx, "add material")
	defer span.End()

	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Material{}, fmt.Errorf("failed to generate material id: %w", err)
		}
		m.ID = id.String()
	}
	if m.CoverColor == "" {
		m.CoverColor = DefaultCoverColor
	}
	if m.Status == "" {
		m.Status = StatusNew
	}
	m.Progress = utils.Clamp(m.Progress, 0, 100)
	m.LastAccessed = l.now().UTC()
	span.SetAttributes(attribute.String("library.material_id", m.ID))

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO materials (id, title, cover_color, progress, status, last_accessed, is_favorite, modules_count, raw_text, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Title, m.CoverColor, m.Progress, string(m.Status), m.LastAccessed.UnixMilli(),
		boolToInt(m.IsFavorite), m.ModulesCount, m.RawText, m.SourceURL)
	if err != nil {
		return Material{}, fmt.Errorf("failed to insert material %s: %w", m.ID, err)
	}

	logger.Debug("material added", "id", m.ID, "title", m.Title)
	return m, nil
}

func (l *Library) Get(ctx context.Context, id string) (Material, error) {
	ctx, span := tracer.Start(ctx, "get material", trace.WithAttributes(attribute.String("library.material_id", id)))
	defer span.End()

	row := l.db.QueryRowContext(ctx, selectMaterials+" WHERE id = ?", id)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Material{}, fmt.Errorf("failed to read material %s: %w", id, err)
	}
	return m, nil
}

// List returns every material, most recently accessed first.
func (l *Library) List(ctx context.Context) ([]Material, error) {
	ctx, span := tracer.Start(ctx, "list materials")
	defer span.End()

	rows, err := l.db.QueryContext(ctx, selectMaterials+" ORDER BY last_accessed DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	materials := []Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read materials: %w", err)
	}
	return materials, nil
}

// UpdateProgress stores percent clamped into [0, 100] and touches the
// material. It is completed at 100 and in progress below.
func (l *Library) UpdateProgress(ctx context.Context, id string, percent int) error {
	ctx, span := tracer.Start(ctx, "update material progress", trace.WithAttributes(
		attribute.String("library.material_id", id),
		attribute.Int("library.progress", percent),
	))
	defer span.End()

	percent = utils.Clamp(percent, 0, 100)
	status := StatusInProgress
	if percent >= 100 {
		status = StatusCompleted
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE materials SET progress = ?, status = ?, last_accessed = ?
		WHERE id = ?
	`, percent, string(status), l.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update progress of %s: %w", id, err)
	}
	return expectOne(result, id)
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (l *Library) ToggleFavorite(ctx context.Context, id string) (favorite bool, err error) {
	ctx, span := tracer.Start(ctx, "toggle favorite material", trace.WithAttributes(attribute.String("library.material_id", id)))
	defer span.End()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, "UPDATE materials SET is_favorite = 1 - is_favorite WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite of %s: %w", id, err)
	}
	if err = expectOne(result, id); err != nil {
		return false, err
	}

	var flag int
	if err = tx.QueryRowContext(ctx, "SELECT is_favorite FROM materials WHERE id = ?", id).Scan(&flag); err != nil {
		return false, fmt.Errorf("failed to read favorite of %s: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return flag == 1, nil
}

const selectMaterials = `
	SELECT id, title, cover_color, progress, status, last_accessed, is_favorite, modules_count, raw_text, source_url
	FROM materials`

type scanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row scanner) (Material, error) {
	var (
		m            Material
		status       string
		lastAccessed int64
		favorite     int
	)
	if err := row.Scan(&m.ID, &m.Title, &m.CoverColor, &m.Progress, &status, &lastAccessed,
		&favorite, &m.ModulesCount, &m.RawText, &m.SourceURL); err != nil {
		return Material{}, err
	}
	m.Status = MaterialStatus(status)
	m.LastAccessed = time.UnixMilli(lastAccessed).UTC()
	m.IsFavorite = favorite == 1
	return m, nil
}

func expectOne(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
