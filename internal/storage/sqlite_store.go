package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go-page-designer/internal/model"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// SQLiteStore implements DataStore on a SQLite database. Template trees are
// stored as JSON documents; aliases and checkouts are regular tables.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and applies pending migrations.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// One connection: SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("SQLite template store ready", "path", path)
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetBasePath returns the database file path.
func (s *SQLiteStore) GetBasePath() string {
	return s.path
}

// SaveTemplate inserts or replaces the template document.
func (s *SQLiteStore) SaveTemplate(t *model.TemplateInstance) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %w", t.ID, err)
	}
	_, err = s.db.Exec(`
INSERT INTO templates (id, name, scope, revision, document, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  scope = excluded.scope,
  revision = excluded.revision,
  document = excluded.document,
  updated_at = excluded.updated_at`,
		t.ID, t.Name, t.Scope.String(), t.Revision, string(doc), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", t.ID, err)
	}
	s.logger.Debug("Saved template", "templateID", t.ID, "revision", t.Revision)
	return nil
}

// LoadTemplate reads a template document.
func (s *SQLiteStore) LoadTemplate(templateID string) (*model.TemplateInstance, error) {
	if templateID == "" {
		return nil, fmt.Errorf("template ID cannot be empty")
	}
	var doc string
	err := s.db.QueryRow(`SELECT document FROM templates WHERE id = ?`, templateID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	var t model.TemplateInstance
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", templateID, err)
	}
	return &t, nil
}

// GetAllTemplateIDs lists template IDs in ascending order.
func (s *SQLiteStore) GetAllTemplateIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan template id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteTemplate removes the template with its aliases and checkout.
func (s *SQLiteStore) DeleteTemplate(templateID string) error {
	if templateID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete of %s: %w", templateID, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM page_aliases WHERE template_id = ?`,
		`DELETE FROM checkouts WHERE template_id = ?`,
		`DELETE FROM templates WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, templateID); err != nil {
			return fmt.Errorf("failed to delete template %s: %w", templateID, err)
		}
	}
	return tx.Commit()
}

// ReadAll loads every template ordered by ID.
func (s *SQLiteStore) ReadAll() ([]*model.TemplateInstance, error) {
	rows, err := s.db.Query(`SELECT document FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	defer rows.Close()

	templates := []*model.TemplateInstance{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		var t model.TemplateInstance
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template: %w", err)
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

// BindAlias points aliasPath at templateID.
func (s *SQLiteStore) BindAlias(aliasPath, templateID string) error {
	if aliasPath == "" || templateID == "" {
		return fmt.Errorf("alias path and template ID are required")
	}
	_, err := s.db.Exec(`
INSERT INTO page_aliases (alias_path, template_id) VALUES (?, ?)
ON CONFLICT(alias_path) DO UPDATE SET template_id = excluded.template_id`, aliasPath, templateID)
	if err != nil {
		return fmt.Errorf("failed to bind alias %s: %w", aliasPath, err)
	}
	return nil
}

// ResolveAlias returns the template bound to aliasPath.
func (s *SQLiteStore) ResolveAlias(aliasPath string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT template_id FROM page_aliases WHERE alias_path = ?`, aliasPath).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("alias %s: %w", aliasPath, ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve alias %s: %w", aliasPath, err)
	}
	return id, nil
}

// CheckOut takes the edit lock of a template.
func (s *SQLiteStore) CheckOut(templateID string, userID int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin checkout of %s: %w", templateID, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM templates WHERE id = ?`, templateID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check template %s: %w", templateID, err)
	}
	if exists == 0 {
		return fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}

	var holder int
	err = tx.QueryRow(`SELECT user_id FROM checkouts WHERE template_id = ?`, templateID).Scan(&holder)
	switch {
	case err == nil && holder != userID:
		return fmt.Errorf("template %s held by user %d: %w", templateID, holder, ErrCheckedOut)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to read checkout of %s: %w", templateID, err)
	}

	_, err = tx.Exec(`
INSERT INTO checkouts (template_id, user_id, checked_out_at) VALUES (?, ?, ?)
ON CONFLICT(template_id) DO UPDATE SET user_id = excluded.user_id, checked_out_at = excluded.checked_out_at`,
		templateID, userID, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to check out %s: %w", templateID, err)
	}
	return tx.Commit()
}

// CheckIn releases the edit lock of a template.
func (s *SQLiteStore) CheckIn(templateID string) error {
	if _, err := s.db.Exec(`DELETE FROM checkouts WHERE template_id = ?`, templateID); err != nil {
		return fmt.Errorf("failed to check in %s: %w", templateID, err)
	}
	return nil
}

// CheckedOutBy returns the current lock of a template.
func (s *SQLiteStore) CheckedOutBy(templateID string) (Checkout, bool, error) {
	var (
		userID int
		at     int64
	)
	err := s.db.QueryRow(`SELECT user_id, checked_out_at FROM checkouts WHERE template_id = ?`, templateID).Scan(&userID, &at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkout{}, false, nil
		}
		return Checkout{}, false, fmt.Errorf("failed to read checkout of %s: %w", templateID, err)
	}
	return Checkout{TemplateID: templateID, UserID: userID, CheckedOutAt: time.Unix(0, at).UTC()}, true, nil
}
