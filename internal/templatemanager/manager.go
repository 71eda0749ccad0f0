// Package templatemanager owns the lifecycle of stored page templates: it
// resolves page aliases, loads templates for editing, persists edited zones,
// clones templates for single pages and manages checkouts.
package templatemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go-page-designer/internal/ctxlog"
	"go-page-designer/internal/model"
	"go-page-designer/internal/security"
	"go-page-designer/internal/storage"

	"github.com/google/uuid"
)

// Change is published after a template was persisted.
type Change struct {
	TemplateID string
	ZoneIDs    []string // empty when the whole template was saved
	Revision   int64
	// Refresh asks other open design surfaces to reload the page.
	Refresh bool
}

// Manager provides methods for managing page templates on top of a DataStore.
type Manager struct {
	store  storage.DataStore
	logger *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*keyLock

	listenersMu sync.RWMutex
	listeners   map[int]func(Change)
	nextID      int
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a new Manager instance.
func NewManager(store storage.DataStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		store:     store,
		logger:    logger,
		locks:     make(map[string]*keyLock),
		listeners: make(map[int]func(Change)),
	}
}

// GetStore returns the underlying data store.
func (m *Manager) GetStore() storage.DataStore {
	return m.store
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx, m.logger)
}

// Lock serializes load-modify-save cycles on one key (usually a page alias
// path). The returned func releases the lock.
func (m *Manager) Lock(key string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.locksMu.Unlock()
	}
}

// Subscribe registers fn for every saved change. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) publish(c Change) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, fn := range m.listeners {
		fn(c)
	}
}

// CreateTemplate stores a new empty template and, when aliasPath is set, binds it.
func (m *Manager) CreateTemplate(ctx context.Context, templateID, name string, scope model.TemplateScope, aliasPath string) (*model.TemplateInstance, error) {
	log := m.log(ctx)
	if templateID == "" {
		templateID = uuid.New().String()
	}
	if _, err := m.store.LoadTemplate(templateID); err == nil {
		return nil, fmt.Errorf("template %s already exists", templateID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("checking template %s failed: %w", templateID, err)
	}

	t := model.NewTemplate(templateID, name, scope)
	if err := m.store.SaveTemplate(t); err != nil {
		log.Error("Error saving new template", "templateID", templateID, "error", err)
		return nil, fmt.Errorf("saving template failed: %w", err)
	}
	if aliasPath != "" {
		if err := m.store.BindAlias(aliasPath, templateID); err != nil {
			return nil, fmt.Errorf("binding alias %s failed: %w", aliasPath, err)
		}
	}
	log.Info("Successfully created template", "templateID", templateID, "name", name, "scope", scope.String(), "aliasPath", aliasPath)
	return t, nil
}

// DeleteTemplate removes a template with its alias bindings and checkout.
func (m *Manager) DeleteTemplate(ctx context.Context, templateID string) error {
	if err := m.store.DeleteTemplate(templateID); err != nil {
		m.log(ctx).Error("Error deleting template", "templateID", templateID, "error", err)
		return fmt.Errorf("deleting template %s failed: %w", templateID, err)
	}
	m.log(ctx).Info("Deleted template", "templateID", templateID)
	return nil
}

// ListTemplates returns every stored template ordered by ID.
func (m *Manager) ListTemplates(ctx context.Context) ([]*model.TemplateInstance, error) {
	templates, err := m.store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("listing templates failed: %w", err)
	}
	return templates, nil
}

// BindAlias points a page alias path at an existing template.
func (m *Manager) BindAlias(ctx context.Context, aliasPath, templateID string) error {
	if _, err := m.store.LoadTemplate(templateID); err != nil {
		return fmt.Errorf("binding alias %s failed: %w", aliasPath, err)
	}
	if err := m.store.BindAlias(aliasPath, templateID); err != nil {
		return fmt.Errorf("binding alias %s failed: %w", aliasPath, err)
	}
	m.log(ctx).Info("Bound alias", "aliasPath", aliasPath, "templateID", templateID)
	return nil
}

// LoadTemplate loads a template by ID.
func (m *Manager) LoadTemplate(ctx context.Context, templateID string) (*model.TemplateInstance, error) {
	t, err := m.store.LoadTemplate(templateID)
	if err != nil {
		return nil, fmt.Errorf("loading template %s failed: %w", templateID, err)
	}
	return t, nil
}

// LoadTemplateForEditing resolves a page alias path and loads the template
// bound to it.
func (m *Manager) LoadTemplateForEditing(ctx context.Context, aliasPath string) (*model.TemplateInstance, error) {
	templateID, err := m.store.ResolveAlias(aliasPath)
	if err != nil {
		return nil, fmt.Errorf("resolving page %s failed: %w", aliasPath, err)
	}
	t, err := m.store.LoadTemplate(templateID)
	if err != nil {
		return nil, fmt.Errorf("loading template for page %s failed: %w", aliasPath, err)
	}
	m.log(ctx).Debug("Loaded template for editing", "aliasPath", aliasPath, "templateID", t.ID, "revision", t.Revision)
	return t, nil
}

// SaveZone persists the template after zone changed. The zone must belong to t.
func (m *Manager) SaveZone(ctx context.Context, t *model.TemplateInstance, zone *model.ZoneInstance, triggerRefresh bool) error {
	return m.SaveZones(ctx, t, []*model.ZoneInstance{zone}, triggerRefresh)
}

// SaveZones persists the template once after one command changed several
// zones, so a cross-zone move costs one write and one revision.
func (m *Manager) SaveZones(ctx context.Context, t *model.TemplateInstance, zones []*model.ZoneInstance, triggerRefresh bool) error {
	if len(zones) == 0 {
		return nil
	}
	// 1. Every zone must be a live node of t; a detached copy would be lost.
	ids := make([]string, 0, len(zones))
	for _, zone := range zones {
		if zone == nil {
			return fmt.Errorf("saving zone of template %s failed: zone is nil", t.ID)
		}
		if t.GetZone(zone.ID, zone.VariantID) != zone {
			return fmt.Errorf("saving zone %s failed: zone does not belong to template %s", zone.ID, t.ID)
		}
		ids = append(ids, zone.ID)
	}

	// 2. One write for the whole command.
	if err := m.persist(t); err != nil {
		m.log(ctx).Error("Error saving zones", "templateID", t.ID, "zoneIDs", ids, "error", err)
		return fmt.Errorf("saving zones %v failed: %w", ids, err)
	}
	m.log(ctx).Debug("Saved zones", "templateID", t.ID, "zoneIDs", ids, "revision", t.Revision)

	// 3. Tell open design surfaces.
	m.publish(Change{TemplateID: t.ID, ZoneIDs: ids, Revision: t.Revision, Refresh: triggerRefresh})
	return nil
}

// SaveTemplate persists the whole template. zoneType and mode describe the
// edit that triggered the save.
func (m *Manager) SaveTemplate(ctx context.Context, t *model.TemplateInstance, zoneType model.ZoneType, mode security.ViewMode) error {
	if err := m.persist(t); err != nil {
		m.log(ctx).Error("Error saving template", "templateID", t.ID, "error", err)
		return fmt.Errorf("saving template %s failed: %w", t.ID, err)
	}
	m.log(ctx).Debug("Saved template", "templateID", t.ID, "zoneType", zoneType.String(), "mode", mode.String(), "revision", t.Revision)
	m.publish(Change{TemplateID: t.ID, Revision: t.Revision, Refresh: true})
	return nil
}

// persist bumps the revision and writes t, restoring the revision on failure.
func (m *Manager) persist(t *model.TemplateInstance) error {
	t.Revision++
	if err := m.store.SaveTemplate(t); err != nil {
		t.Revision--
		return err
	}
	return nil
}

// IsCheckedOutByOtherUser reports whether someone other than userID holds
// the edit lock of t.
func (m *Manager) IsCheckedOutByOtherUser(ctx context.Context, t *model.TemplateInstance, userID int) (bool, error) {
	c, held, err := m.store.CheckedOutBy(t.ID)
	if err != nil {
		return false, fmt.Errorf("reading checkout of %s failed: %w", t.ID, err)
	}
	return held && c.UserID != userID, nil
}

// CloneTemplate gives the page at aliasPath its own copy of its template, so
// later edits only affect that page. The copy gets a new ID and revision 0.
func (m *Manager) CloneTemplate(ctx context.Context, aliasPath string) (*model.TemplateInstance, error) {
	source, err := m.LoadTemplateForEditing(ctx, aliasPath)
	if err != nil {
		return nil, err
	}
	clone := source.Clone()
	clone.ID = uuid.New().String()
	clone.Name = fmt.Sprintf("%s (%s)", source.Name, aliasPath)
	clone.Revision = 0

	if err := m.store.SaveTemplate(clone); err != nil {
		return nil, fmt.Errorf("saving cloned template failed: %w", err)
	}
	if err := m.store.BindAlias(aliasPath, clone.ID); err != nil {
		// Leave no orphan behind.
		if delErr := m.store.DeleteTemplate(clone.ID); delErr != nil {
			m.log(ctx).Warn("Failed to remove orphaned template clone", "templateID", clone.ID, "error", delErr)
		}
		return nil, fmt.Errorf("binding cloned template to %s failed: %w", aliasPath, err)
	}
	m.log(ctx).Info("Cloned template for page", "aliasPath", aliasPath, "sourceID", source.ID, "cloneID", clone.ID)
	m.publish(Change{TemplateID: source.ID, Refresh: true})
	return clone, nil
}

// CheckOut takes the edit lock of a template for userID.
func (m *Manager) CheckOut(ctx context.Context, templateID string, userID int) error {
	if err := m.store.CheckOut(templateID, userID); err != nil {
		return fmt.Errorf("checking out %s failed: %w", templateID, err)
	}
	m.log(ctx).Info("Checked out template", "templateID", templateID, "userID", userID)
	return nil
}

// CheckIn releases the edit lock of a template.
func (m *Manager) CheckIn(ctx context.Context, templateID string) error {
	if err := m.store.CheckIn(templateID); err != nil {
		return fmt.Errorf("checking in %s failed: %w", templateID, err)
	}
	m.log(ctx).Info("Checked in template", "templateID", templateID)
	return nil
}

// TemplateExists reports whether a template is stored under templateID.
func (m *Manager) TemplateExists(ctx context.Context, templateID string) (bool, error) {
	_, err := m.store.LoadTemplate(templateID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CheckedOutBy returns the user holding the edit lock of a template.
func (m *Manager) CheckedOutBy(ctx context.Context, templateID string) (int, bool, error) {
	c, held, err := m.store.CheckedOutBy(templateID)
	if err != nil {
		return 0, false, err
	}
	return c.UserID, held, nil
}
