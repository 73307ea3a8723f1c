package historybun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-report-export/export"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// State is the outcome of a recorded export.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Entry is one recorded export.
type Entry struct {
	ID          string
	Title       string
	Format      export.Format
	State       State
	Filename    string
	ArtifactKey string
	Rows        int64
	Pages       int64
	Size        int64
	// ErrorKind is set for failed exports. Causes are not persisted.
	ErrorKind export.ErrorKind
	CreatedAt time.Time
}

// Filter narrows List results. A zero Limit returns every entry.
type Filter struct {
	Format export.Format
	State  State
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Store keeps report history in a Bun-backed database.
type Store struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

// NewStore creates a Bun-backed history store.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// CreateTable creates the history table when missing.
func (s *Store) CreateTable(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return notConfigured()
	}
	if _, err := s.DB.NewCreateTable().Model((*entryModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return export.NewError(export.KindPersistence, "create report history table", err)
	}
	return nil
}

// Record inserts an entry and returns its ID. An entry with an existing ID
// is replaced.
func (s *Store) Record(ctx context.Context, entry Entry) (string, error) {
	if s == nil || s.DB == nil {
		return "", notConfigured()
	}
	if entry.ID == "" {
		entry.ID = s.nextID()
	}
	if entry.State == "" {
		entry.State = StateCompleted
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	model := modelFromEntry(entry)
	query := s.DB.NewInsert().Model(&model).On("CONFLICT (id) DO UPDATE")
	for _, column := range mutableColumns {
		query = query.Set(column + " = EXCLUDED." + column)
	}
	if _, err := query.Exec(ctx); err != nil {
		return "", export.NewError(export.KindPersistence, "record report history", err)
	}
	return entry.ID, nil
}

// Get returns an entry by ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if s == nil || s.DB == nil {
		return Entry{}, notConfigured()
	}
	if id == "" {
		return Entry{}, export.NewError(export.KindValidation, "history ID is required", nil)
	}

	model := new(entryModel)
	err := s.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, export.NewError(export.KindNotFound, fmt.Sprintf("report %q not found", id), nil)
		}
		return Entry{}, export.NewError(export.KindPersistence, "read report history", err)
	}
	return model.toEntry(), nil
}

// List returns entries matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if s == nil || s.DB == nil {
		return nil, notConfigured()
	}

	models := make([]entryModel, 0)
	query := s.DB.NewSelect().Model(&models)
	if filter.Format != "" {
		query = query.Where("format = ?", filter.Format)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, export.NewError(export.KindPersistence, "list report history", err)
	}

	entries := make([]Entry, 0, len(models))
	for _, model := range models {
		entries = append(entries, model.toEntry())
	}
	return entries, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return notConfigured()
	}
	if id == "" {
		return export.NewError(export.KindValidation, "history ID is required", nil)
	}

	res, err := s.DB.NewDelete().Model((*entryModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return export.NewError(export.KindPersistence, "delete report history", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("report %q not found", id), nil)
	}
	return nil
}

type entryModel struct {
	bun.BaseModel `bun:"table:report_history,alias:report_history"`

	ID          string    `bun:",pk"`
	Title       string    `bun:",notnull"`
	Format      string    `bun:",notnull"`
	State       string    `bun:",notnull"`
	Filename    string    `bun:"filename"`
	ArtifactKey string    `bun:"artifact_key"`
	Rows        int64     `bun:"row_count"`
	Pages       int64     `bun:"page_count"`
	Size        int64     `bun:"size_bytes"`
	ErrorKind   string    `bun:"error_kind"`
	CreatedAt   time.Time `bun:"created_at"`
}

var mutableColumns = []string{
	"title", "format", "state", "filename", "artifact_key",
	"row_count", "page_count", "size_bytes", "error_kind", "created_at",
}

func modelFromEntry(entry Entry) entryModel {
	return entryModel{
		ID:          entry.ID,
		Title:       entry.Title,
		Format:      string(entry.Format),
		State:       string(entry.State),
		Filename:    entry.Filename,
		ArtifactKey: entry.ArtifactKey,
		Rows:        entry.Rows,
		Pages:       entry.Pages,
		Size:        entry.Size,
		ErrorKind:   string(entry.ErrorKind),
		CreatedAt:   entry.CreatedAt,
	}
}

func (m entryModel) toEntry() Entry {
	return Entry{
		ID:          m.ID,
		Title:       m.Title,
		Format:      export.Format(m.Format),
		State:       State(m.State),
		Filename:    m.Filename,
		ArtifactKey: m.ArtifactKey,
		Rows:        m.Rows,
		Pages:       m.Pages,
		Size:        m.Size,
		ErrorKind:   export.ErrorKind(m.ErrorKind),
		CreatedAt:   m.CreatedAt,
	}
}

func notConfigured() error {
	return export.NewError(export.KindInternal, "history database not configured", nil)
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) nextID() string {
	if s.IDGenerator != nil {
		return s.IDGenerator()
	}
	return uuid.NewString()
}
