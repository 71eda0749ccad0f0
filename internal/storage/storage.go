package storage

import (
	"errors"
	"time"

	"go-page-designer/internal/model"
)

var (
	// ErrNotFound is returned (wrapped) when a template or alias does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCheckedOut is returned by CheckOut when another user already holds the template.
	ErrCheckedOut = errors.New("template is checked out by another user")
)

// Checkout is the exclusive edit lock of a template.
type Checkout struct {
	TemplateID   string    `json:"templateId"`
	UserID       int       `json:"userId"`
	CheckedOutAt time.Time `json:"checkedOutAt"`
}

// DataStore defines the operations needed for persisting page templates.
// This allows swapping implementations (JSON files vs. SQLite).
type DataStore interface {
	// SaveTemplate persists the whole template tree.
	SaveTemplate(t *model.TemplateInstance) error

	// LoadTemplate retrieves a template by its ID.
	LoadTemplate(templateID string) (*model.TemplateInstance, error)

	// GetAllTemplateIDs returns a list of all known template IDs.
	GetAllTemplateIDs() ([]string, error)

	// DeleteTemplate removes a template. Deleting a missing template is not an error.
	DeleteTemplate(templateID string) error

	// ReadAll retrieves every template.
	ReadAll() ([]*model.TemplateInstance, error)

	// BindAlias points a page alias path at a template.
	BindAlias(aliasPath, templateID string) error

	// ResolveAlias returns the template bound to a page alias path.
	ResolveAlias(aliasPath string) (string, error)

	// CheckOut takes the edit lock of a template for userID. Taking a lock the
	// user already holds succeeds; a lock held by someone else fails with ErrCheckedOut.
	CheckOut(templateID string, userID int) error

	// CheckIn releases the edit lock. Releasing a free template is not an error.
	CheckIn(templateID string) error

	// CheckedOutBy returns the current lock of a template, if any.
	CheckedOutBy(templateID string) (Checkout, bool, error)

	// GetBasePath returns the storage location (directory or database file).
	GetBasePath() string
}
