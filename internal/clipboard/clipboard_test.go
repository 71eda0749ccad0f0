package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-page-designer/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	exists     bool
	holder     int
	checkedOut bool
	err        error
}

func (p fakeProbe) TemplateExists(context.Context, string) (bool, error) {
	return p.exists, p.err
}

func (p fakeProbe) CheckedOutBy(context.Context, string) (int, bool, error) {
	return p.holder, p.checkedOut, nil
}

func copyFrom(t *testing.T, zoneType model.ZoneType, scope model.TemplateScope) (*model.TemplateInstance, *Item) {
	t.Helper()
	tpl := model.NewTemplate("tpl", "Template", scope)
	zone := tpl.EnsureZone("zoneA")
	zone.ZoneType = zoneType
	wp := &model.WebPartInstance{
		ControlID:    "text",
		InstanceGUID: uuid.New(),
		WebPartType:  "text",
		Properties:   model.Properties{"text": "hello"},
	}
	zone.Insert(wp, -1)
	return tpl, NewItem(tpl, zone, zone.WebParts, false, 7)
}

func TestNewItem_Snapshot(t *testing.T) {
	tpl, item := copyFrom(t, model.ZoneTypeUser, model.ScopePortal)
	live := tpl.GetZone("zoneA", 0).WebParts[0]

	require.Len(t, item.WebParts, 1)
	assert.NotSame(t, live, item.WebParts[0])
	assert.Nil(t, item.WebParts[0].ParentZone())
	assert.Equal(t, Key{ZoneType: model.ZoneTypeUser, Scope: model.ScopePortal}, item.Key())
	assert.Equal(t, "tpl", item.TemplateID)
	assert.Equal(t, "zoneA", item.SourceZoneID)

	live.Properties["text"] = "changed"
	assert.Equal(t, "hello", item.WebParts[0].Properties["text"])
}

func TestStore_Slots(t *testing.T) {
	s := NewStore(false)
	_, userItem := copyFrom(t, model.ZoneTypeUser, model.ScopeUnknown)
	_, groupItem := copyFrom(t, model.ZoneTypeGroup, model.ScopeUnknown)

	s.Put(userItem)
	s.Put(groupItem)
	assert.Same(t, userItem, s.Get(model.ZoneTypeUser, model.ScopeUnknown))
	assert.Same(t, groupItem, s.Get(model.ZoneTypeGroup, model.ScopeUnknown))
	assert.Nil(t, s.Get(model.ZoneTypeUser, model.ScopePortal))

	// Last copy wins.
	_, again := copyFrom(t, model.ZoneTypeUser, model.ScopeUnknown)
	s.Put(again)
	assert.Same(t, again, s.Get(model.ZoneTypeUser, model.ScopeUnknown))

	s.Clear(model.ZoneTypeUser, model.ScopeUnknown)
	assert.Nil(t, s.Get(model.ZoneTypeUser, model.ScopeUnknown))
	assert.Same(t, groupItem, s.Get(model.ZoneTypeGroup, model.ScopeUnknown))
}

func TestStore_SingleStorage(t *testing.T) {
	s := NewStore(true)
	_, userItem := copyFrom(t, model.ZoneTypeUser, model.ScopeUnknown)
	_, groupItem := copyFrom(t, model.ZoneTypeGroup, model.ScopeUnknown)

	s.Put(userItem)
	assert.Same(t, userItem, s.Get(model.ZoneTypeUser, model.ScopeUnknown))
	assert.Nil(t, s.Get(model.ZoneTypeGroup, model.ScopeUnknown), "tags still have to match")

	s.Put(groupItem)
	assert.Nil(t, s.Get(model.ZoneTypeUser, model.ScopeUnknown), "one slot for everything")
	assert.Same(t, groupItem, s.Get(model.ZoneTypeGroup, model.ScopeUnknown))
}

func TestEnsureValidItem(t *testing.T) {
	_, item := copyFrom(t, model.ZoneTypeEditor, model.ScopeUI)
	assert.Same(t, item, EnsureValidItem(item, model.ZoneTypeEditor, model.ScopeUI))
	assert.Nil(t, EnsureValidItem(item, model.ZoneTypeUser, model.ScopeUI))
	assert.Nil(t, EnsureValidItem(item, model.ZoneTypeEditor, model.ScopeDashboard))
	assert.Nil(t, EnsureValidItem(nil, model.ZoneTypeEditor, model.ScopeUI))
}

func TestItem_IsValid(t *testing.T) {
	ctx := context.Background()
	_, item := copyFrom(t, model.ZoneTypeUser, model.ScopeUnknown)

	tests := []struct {
		name  string
		probe SourceProbe
		want  bool
	}{
		{"no probe", nil, true},
		{"template present", fakeProbe{exists: true}, true},
		{"template deleted", fakeProbe{exists: false}, false},
		{"checked out by copier", fakeProbe{exists: true, checkedOut: true, holder: 7}, true},
		{"checked out by someone else", fakeProbe{exists: true, checkedOut: true, holder: 8}, false},
		{"probe failure", fakeProbe{err: errors.New("disk gone")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, item.IsValid(ctx, tt.probe))
		})
	}

	assert.False(t, (*Item)(nil).IsValid(ctx, nil))
	assert.False(t, (&Item{TemplateID: "tpl"}).IsValid(ctx, nil), "empty items are never valid")
}

func TestManager_Sessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour, false)
	m.now = func() time.Time { return now }

	a := m.Store("a")
	assert.Same(t, a, m.Store("a"))
	assert.NotSame(t, a, m.Store("b"))

	_, item := copyFrom(t, model.ZoneTypeUser, model.ScopeUnknown)
	a.Put(item)

	now = now.Add(30 * time.Minute)
	assert.Same(t, item, m.Store("a").Get(model.ZoneTypeUser, model.ScopeUnknown))

	// Idle past the ttl: the clipboard starts over.
	now = now.Add(2 * time.Hour)
	assert.Nil(t, m.Store("a").Get(model.ZoneTypeUser, model.ScopeUnknown))

	m.Delete("a")
	assert.NotSame(t, a, m.Store("a"))
}

func TestManager_CleanupExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour, true)
	m.now = func() time.Time { return now }

	m.Store("old")
	now = now.Add(45 * time.Minute)
	m.Store("fresh")
	now = now.Add(30 * time.Minute)

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, 0, m.CleanupExpired())
	m.mu.Lock()
	_, ok := m.sessions["fresh"]
	m.mu.Unlock()
	assert.True(t, ok)
}
