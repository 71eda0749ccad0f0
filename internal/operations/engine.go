// Package operations implements the structural edits of a page template:
// add, remove, reorder, move, clone, copy/paste and property changes.
//
// Every operation checks its preconditions and the security gate before it
// touches the tree. Expected conditions (missing zone, missing web part,
// denied access) produce a no-op Result; only unexpected failures such as a
// broken catalog return an error. Nothing here persists anything: the caller
// saves Result.Zones once the operation returns.
package operations

import (
	"context"
	"io"
	"log/slog"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/locator"
	"go-page-designer/internal/model"
	"go-page-designer/internal/security"
)

// Actor is the user running an operation and the mode the page is in.
type Actor struct {
	User security.User
	Mode security.ViewMode
}

// WebPartRef addresses a web part the way the command protocol does.
type WebPartRef struct {
	ZoneID    string
	VariantID int // zone variant
	ControlID string
	GUID      string
}

// Result describes what an operation did.
type Result struct {
	Changed bool
	// Zones lists the zones to persist, source first, without duplicates.
	Zones []*model.ZoneInstance
	// WebPart is the created or affected instance, if any.
	WebPart *model.WebPartInstance
	// Conflict is a user-facing message for an aborted structural edit.
	Conflict string
	// UpdateIDs carries the old and new client ids of a web part moved out of
	// an editor zone, so open rich text surfaces can re-anchor.
	UpdateIDs []string
}

func (r *Result) touch(zones ...*model.ZoneInstance) {
	for _, z := range zones {
		if z == nil {
			continue
		}
		seen := false
		for _, existing := range r.Zones {
			if existing == z {
				seen = true
				break
			}
		}
		if !seen {
			r.Zones = append(r.Zones, z)
		}
	}
	r.Changed = true
}

// Engine runs operations against template trees.
type Engine struct {
	catalog catalog.Catalog
	gate    *security.Gate
	logger  *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(c catalog.Catalog, gate *security.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{catalog: c, gate: gate, logger: logger}
}

// resolve finds the web part addressed by ref and checks that actor may change its zone.
func (e *Engine) resolve(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef) (*model.WebPartInstance, *model.ZoneInstance, bool) {
	zone := locator.Zone(t, ref.ZoneID, ref.VariantID)
	wp := locator.WebPart(t, zone, ref.GUID, ref.ControlID, ref.VariantID)
	if wp == nil || wp.ParentZone() == nil {
		e.logger.Debug("Web part not found", "zoneID", ref.ZoneID, "controlID", ref.ControlID, "guid", ref.GUID)
		return nil, nil, false
	}
	zone = wp.ParentZone()
	if !e.gate.CanManageZone(ctx, actor.User, zone, actor.Mode) {
		return nil, nil, false
	}
	return wp, zone, true
}

// pendingZone is a zone that may not exist yet. The zone is only attached to
// the template by attach, after every precondition has passed.
type pendingZone struct {
	zone    *model.ZoneInstance
	created bool
}

// prepareZone resolves zoneID without mutating the template. A missing base
// zone is returned detached, with its layout flag inferred from the id.
func prepareZone(t *model.TemplateInstance, zoneID string, variantID int) (pendingZone, bool) {
	if zoneID == "" {
		return pendingZone{}, false
	}
	if z := locator.Zone(t, zoneID, variantID); z != nil {
		return pendingZone{zone: z}, true
	}
	if variantID != 0 {
		return pendingZone{}, false
	}
	probe := &model.ZoneInstance{ID: zoneID, LayoutZone: locator.LayoutOwner(t, zoneID) != nil}
	return pendingZone{zone: probe, created: true}, true
}

// attach makes a pending zone part of the template and returns the live zone.
func (p pendingZone) attach(t *model.TemplateInstance) *model.ZoneInstance {
	if !p.created {
		return p.zone
	}
	z, _ := locator.GetOrCreateZone(t, p.zone.ID, 0)
	z.LayoutZone = p.zone.LayoutZone
	z.ZoneType = p.zone.ZoneType
	return z
}

// variantBearing reports whether zone already carries a variant dimension. A
// zone variant is one by itself, even while its own list is empty.
func variantBearing(zone *model.ZoneInstance) bool {
	return zone.VariantID != 0 || zone.HasVariants()
}

// hostedBy reports whether zone lies inside the layout of wp, directly or
// through nested layouts. A web part placed there would hold the zone that
// holds it and drop out of the template.
func hostedBy(t *model.TemplateInstance, zone *model.ZoneInstance, wp *model.WebPartInstance) bool {
	seen := make(map[*model.ZoneInstance]bool)
	for z := zone; z != nil && z.LayoutZone && !seen[z]; {
		seen[z] = true
		owner := locator.LayoutOwner(t, z.ID)
		if owner == nil {
			return false
		}
		if owner == wp {
			return true
		}
		z = owner.ParentZone()
	}
	return false
}
