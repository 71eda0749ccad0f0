// Package clipboard holds web part snapshots copied by a user for later paste.
//
// A session has one slot per (zone type, template scope) pair and the last
// copy wins. Items hold deep copies, never live nodes of a template.
package clipboard

import (
	"context"
	"sync"
	"time"

	"go-page-designer/internal/model"
)

// Key addresses a clipboard slot.
type Key struct {
	ZoneType model.ZoneType
	Scope    model.TemplateScope
}

// Item is a snapshot of one web part or of every web part of a zone.
type Item struct {
	ZoneType     model.ZoneType
	Scope        model.TemplateScope
	TemplateID   string
	SourceZoneID string
	WholeZone    bool
	WebParts     []*model.WebPartInstance
	CopiedBy     int
	CopiedAt     time.Time
}

// NewItem snapshots webParts taken from zone of template t.
func NewItem(t *model.TemplateInstance, zone *model.ZoneInstance, webParts []*model.WebPartInstance, wholeZone bool, userID int) *Item {
	item := &Item{
		ZoneType:     zone.ZoneType,
		Scope:        t.Scope,
		TemplateID:   t.ID,
		SourceZoneID: zone.ID,
		WholeZone:    wholeZone,
		CopiedBy:     userID,
		CopiedAt:     time.Now(),
	}
	for _, wp := range webParts {
		item.WebParts = append(item.WebParts, wp.Clone())
	}
	return item
}

// Key returns the slot the item was copied for.
func (i *Item) Key() Key {
	return Key{ZoneType: i.ZoneType, Scope: i.Scope}
}

// SourceProbe reports the current state of the template an item was copied from.
type SourceProbe interface {
	TemplateExists(ctx context.Context, templateID string) (bool, error)
	CheckedOutBy(ctx context.Context, templateID string) (userID int, checkedOut bool, err error)
}

// IsValid reports whether the item can still be pasted: its source template
// must exist and must not be checked out by someone other than the copier.
// Probe failures count as stale.
func (i *Item) IsValid(ctx context.Context, probe SourceProbe) bool {
	if i == nil || len(i.WebParts) == 0 {
		return false
	}
	if probe == nil || i.TemplateID == "" {
		return true
	}
	exists, err := probe.TemplateExists(ctx, i.TemplateID)
	if err != nil || !exists {
		return false
	}
	holder, checkedOut, err := probe.CheckedOutBy(ctx, i.TemplateID)
	if err != nil {
		return false
	}
	return !checkedOut || holder == i.CopiedBy
}

// EnsureValidItem returns item when its tags match the paste context and nil otherwise.
func EnsureValidItem(item *Item, zoneType model.ZoneType, scope model.TemplateScope) *Item {
	if item == nil || item.ZoneType != zoneType || item.Scope != scope {
		return nil
	}
	return item
}

// Store is the clipboard of one session.
type Store struct {
	mu            sync.Mutex
	singleStorage bool
	items         map[Key]*Item
}

// NewStore creates an empty clipboard. With singleStorage every zone type and
// scope share one slot; reads still validate the per-type tags, so a copy from
// one zone type clears the slot for every other type without being pasteable there.
func NewStore(singleStorage bool) *Store {
	return &Store{singleStorage: singleStorage, items: make(map[Key]*Item)}
}

func (s *Store) key(zoneType model.ZoneType, scope model.TemplateScope) Key {
	if s.singleStorage {
		return Key{}
	}
	return Key{ZoneType: zoneType, Scope: scope}
}

// Put stores item in its slot, replacing whatever was there.
func (s *Store) Put(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.key(item.ZoneType, item.Scope)] = item
}

// Get returns the item pasteable into a zone of zoneType in a template of scope, or nil.
func (s *Store) Get(zoneType model.ZoneType, scope model.TemplateScope) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EnsureValidItem(s.items[s.key(zoneType, scope)], zoneType, scope)
}

// Clear empties the slot for zoneType and scope.
func (s *Store) Clear(zoneType model.ZoneType, scope model.TemplateScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, s.key(zoneType, scope))
}
