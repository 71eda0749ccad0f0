package operations

import (
	"context"

	"go-page-designer/internal/locator"
	"go-page-designer/internal/model"
)

// VariantConflictMessage is shown when a move would combine two variant dimensions.
const VariantConflictMessage = "The web part cannot be moved: both the web part and the target zone contain variants. Remove the variants from one of them first."

// MoveRequest describes a single web part move.
type MoveRequest struct {
	Source          WebPartRef
	TargetZoneID    string
	TargetVariantID int
	Index           int // final index in the target zone, -1 appends
	Position        *model.Position
}

// Move relocates a web part to another zone or to another index of its own zone.
//
// A missing target zone is created; when its id names a layout owner it
// becomes a layout zone inheriting the source zone type. A web part with
// variants never enters a zone that already has variants: the whole move is
// aborted and Result.Conflict is set.
func (e *Engine) Move(ctx context.Context, actor Actor, t *model.TemplateInstance, req MoveRequest) Result {
	// 1. Resolve the web part and check the source zone.
	wp, source, ok := e.resolve(ctx, actor, t, req.Source)
	if !ok {
		return Result{}
	}

	// 2. Resolve the target without attaching a new zone yet.
	pending, ok := prepareZone(t, req.TargetZoneID, req.TargetVariantID)
	if !ok {
		e.logger.Debug("Move skipped, target zone not resolvable", "targetZoneID", req.TargetZoneID, "targetVariantID", req.TargetVariantID)
		return Result{}
	}
	if hostedBy(t, pending.zone, wp) {
		e.logger.Debug("Move skipped, target zone is inside the web part's own layout", "controlID", wp.ControlID, "targetZoneID", req.TargetZoneID)
		return Result{}
	}
	if pending.created && pending.zone.LayoutZone {
		pending.zone.ZoneType = source.ZoneType
	}
	if pending.zone != source && !e.gate.CanManageZone(ctx, actor.User, pending.zone, actor.Mode) {
		return Result{}
	}

	// 3. Never combine two variant dimensions.
	if pending.zone != source && wp.HasVariants() && variantBearing(pending.zone) {
		e.logger.Warn("Move aborted, variant conflict", "templateID", t.ID, "controlID", wp.ControlID, "sourceZoneID", source.ID, "targetZoneID", pending.zone.ID, "targetVariantID", pending.zone.VariantID)
		return Result{Conflict: VariantConflictMessage}
	}

	// 4. Everything checked: mutate.
	target := pending.attach(t)
	oldClientID := clientID(source, wp)
	source.Detach(wp)
	target.Insert(wp, req.Index)
	if req.Position != nil {
		pos := *req.Position
		wp.Position = &pos
	}
	e.logger.Info("Web part moved", "templateID", t.ID, "controlID", wp.ControlID, "sourceZoneID", source.ID, "targetZoneID", target.ID, "index", req.Index)

	var res Result
	res.touch(source, target)
	res.WebPart = wp
	// Rich text surfaces anchor editor zone content by client id.
	if source.ZoneType == model.ZoneTypeEditor {
		res.UpdateIDs = []string{oldClientID, clientID(target, wp)}
	}
	return res
}

// MoveAll moves every web part of a zone to the end of another zone. The
// variant check runs once for the zone as a whole: either everything moves or nothing does.
func (e *Engine) MoveAll(ctx context.Context, actor Actor, t *model.TemplateInstance, sourceZoneID string, sourceVariantID int, targetZoneID string, targetVariantID int) Result {
	source := locator.Zone(t, sourceZoneID, sourceVariantID)
	if source == nil || source.Count() == 0 {
		return Result{}
	}
	if !e.gate.CanManageZone(ctx, actor.User, source, actor.Mode) {
		return Result{}
	}
	pending, ok := prepareZone(t, targetZoneID, targetVariantID)
	if !ok || pending.zone == source {
		return Result{}
	}
	for _, wp := range source.WebParts {
		if hostedBy(t, pending.zone, wp) {
			e.logger.Debug("Move all skipped, target zone is inside a moved web part's layout", "controlID", wp.ControlID, "targetZoneID", targetZoneID)
			return Result{}
		}
	}
	if pending.created && pending.zone.LayoutZone {
		pending.zone.ZoneType = source.ZoneType
	}
	if !e.gate.CanManageZone(ctx, actor.User, pending.zone, actor.Mode) {
		return Result{}
	}

	sourceHasVariants := false
	for _, wp := range source.WebParts {
		if wp.HasVariants() {
			sourceHasVariants = true
			break
		}
	}
	if sourceHasVariants && variantBearing(pending.zone) {
		e.logger.Warn("Move all aborted, variant conflict", "templateID", t.ID, "sourceZoneID", source.ID, "targetZoneID", pending.zone.ID)
		return Result{Conflict: VariantConflictMessage}
	}

	target := pending.attach(t)
	moved := source.Clear()
	for _, wp := range moved {
		target.Insert(wp, -1)
	}
	e.logger.Info("Web parts moved", "templateID", t.ID, "sourceZoneID", source.ID, "targetZoneID", target.ID, "count", len(moved))

	var res Result
	res.touch(source, target)
	return res
}

// clientID is the identifier the design surface uses for a placed web part.
func clientID(zone *model.ZoneInstance, wp *model.WebPartInstance) string {
	return zone.ID + "_" + wp.ControlID
}
