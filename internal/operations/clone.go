package operations

import (
	"context"

	"go-page-designer/internal/clipboard"
	"go-page-designer/internal/locator"
	"go-page-designer/internal/model"
)

// Clone duplicates a web part right after itself in the same zone (or zone
// variant). The clone gets new identifiers, no variants and no freeform position.
func (e *Engine) Clone(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef) Result {
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok {
		return Result{}
	}
	clone := wp.CloneBranchless()
	t.EnsureWebPartInstanceIdentificators(clone)
	zone.Insert(clone, zone.IndexOf(wp)+1)
	e.logger.Info("Web part cloned", "templateID", t.ID, "zoneID", zone.ID, "source", wp.ControlID, "clone", clone.ControlID)

	var res Result
	res.touch(zone)
	res.WebPart = clone
	return res
}

// Copy puts a snapshot on the clipboard: the web part addressed by ref, or
// every web part of the zone when ref names no web part. The tree is not changed.
func (e *Engine) Copy(ctx context.Context, actor Actor, t *model.TemplateInstance, store *clipboard.Store, ref WebPartRef) bool {
	zone := locator.Zone(t, ref.ZoneID, ref.VariantID)

	var webParts []*model.WebPartInstance
	wholeZone := ref.ControlID == "" && ref.GUID == ""
	if wholeZone {
		if zone == nil || zone.Count() == 0 {
			return false
		}
		webParts = zone.WebParts
	} else {
		wp := locator.WebPart(t, zone, ref.GUID, ref.ControlID, ref.VariantID)
		if wp == nil || wp.ParentZone() == nil {
			return false
		}
		zone = wp.ParentZone()
		webParts = []*model.WebPartInstance{wp}
	}
	if !e.gate.CanManageZone(ctx, actor.User, zone, actor.Mode) {
		return false
	}

	store.Put(clipboard.NewItem(t, zone, webParts, wholeZone, actor.User.ID))
	e.logger.Info("Copied to clipboard", "templateID", t.ID, "zoneID", zone.ID, "count", len(webParts), "wholeZone", wholeZone)
	return true
}

// PasteRequest describes where clipboard content goes.
type PasteRequest struct {
	ZoneID    string
	VariantID int
	// After names the web part the content is inserted after; empty appends.
	After WebPartRef
}

// Paste inserts the clipboard content matching the target zone type and the
// template scope. Every pasted web part gets fresh identifiers and loses its
// variants and freeform position. Stale or mismatched clipboard items are
// treated as empty.
func (e *Engine) Paste(ctx context.Context, actor Actor, t *model.TemplateInstance, store *clipboard.Store, probe clipboard.SourceProbe, req PasteRequest) Result {
	// 1. Resolve the target zone and check access.
	pending, ok := prepareZone(t, req.ZoneID, req.VariantID)
	if !ok {
		return Result{}
	}
	if !e.gate.CanManageZone(ctx, actor.User, pending.zone, actor.Mode) {
		return Result{}
	}
	// 2. Pick the slot for this zone type and scope; a stale item counts as empty.
	item := store.Get(pending.zone.ZoneType, t.Scope)
	if item == nil || !item.IsValid(ctx, probe) {
		e.logger.Debug("Nothing to paste", "zoneID", req.ZoneID, "zoneType", pending.zone.ZoneType.String(), "scope", t.Scope.String())
		return Result{}
	}

	// 3. Insert after the anchor when it is in this zone, otherwise append.
	zone := pending.attach(t)
	index := -1
	if req.After.ControlID != "" || req.After.GUID != "" {
		if anchor := locator.WebPart(t, zone, req.After.GUID, req.After.ControlID, req.VariantID); anchor != nil && anchor.ParentZone() == zone {
			index = zone.IndexOf(anchor) + 1
		}
	}

	// 4. The item stays on the clipboard, so every paste works on fresh copies.
	var res Result
	for _, snapshot := range item.WebParts {
		clone := snapshot.CloneBranchless()
		t.EnsureWebPartInstanceIdentificators(clone)
		zone.Insert(clone, index)
		if index >= 0 {
			index++
		}
		res.WebPart = clone
	}
	res.touch(zone)
	e.logger.Info("Pasted from clipboard", "templateID", t.ID, "zoneID", zone.ID, "variantID", zone.VariantID, "count", len(item.WebParts))
	return res
}
