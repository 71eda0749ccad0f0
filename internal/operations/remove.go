package operations

import (
	"context"

	"go-page-designer/internal/locator"
	"go-page-designer/internal/model"
)

// Direction is a reorder direction within a zone.
type Direction int

const (
	Up Direction = iota
	Down
	Top
	Bottom
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Top:
		return "top"
	default:
		return "bottom"
	}
}

// Remove detaches a web part and its variants from its zone. Removing a web
// part that is already gone is a no-op.
func (e *Engine) Remove(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef) Result {
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok {
		return Result{}
	}
	zone.Detach(wp)
	e.logger.Info("Web part removed", "templateID", t.ID, "zoneID", zone.ID, "controlID", wp.ControlID)

	var res Result
	res.touch(zone)
	return res
}

// RemoveAll clears every web part of a zone in one step.
func (e *Engine) RemoveAll(ctx context.Context, actor Actor, t *model.TemplateInstance, zoneID string, variantID int) Result {
	zone := locator.Zone(t, zoneID, variantID)
	if zone == nil || zone.Count() == 0 {
		return Result{}
	}
	if !e.gate.CanManageZone(ctx, actor.User, zone, actor.Mode) {
		return Result{}
	}
	removed := zone.Clear()
	e.logger.Info("Zone cleared", "templateID", t.ID, "zoneID", zone.ID, "removed", len(removed))

	var res Result
	res.touch(zone)
	return res
}

// Reorder moves a web part within its own zone. Moving the first web part up
// or the last one down is a no-op.
func (e *Engine) Reorder(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef, dir Direction) Result {
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok {
		return Result{}
	}
	current := zone.IndexOf(wp)
	last := zone.Count() - 1

	target := current
	switch dir {
	case Up:
		target = current - 1
	case Down:
		target = current + 1
	case Top:
		target = 0
	case Bottom:
		target = last
	}
	if target < 0 || target > last || target == current {
		return Result{}
	}

	zone.Detach(wp)
	if target == last {
		zone.Insert(wp, -1)
	} else {
		zone.Insert(wp, target)
	}
	e.logger.Debug("Web part reordered", "zoneID", zone.ID, "controlID", wp.ControlID, "direction", dir.String(), "from", current, "to", target)

	var res Result
	res.touch(zone)
	res.WebPart = wp
	return res
}
