package operations

import (
	"context"
	"fmt"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/model"
)

// AddRequest describes a web part or widget to place.
type AddRequest struct {
	CatalogID  int
	ZoneID     string
	VariantID  int
	Index      int // -1 appends
	LayoutZone bool
	Position   *model.Position
	Values     map[string]string
}

// AddWebPart places a new catalog web part. Only design mode allows it.
func (e *Engine) AddWebPart(ctx context.Context, actor Actor, t *model.TemplateInstance, req AddRequest) (Result, error) {
	info, err := e.catalog.WebPart(req.CatalogID)
	if err != nil {
		return Result{}, fmt.Errorf("add web part: %w", err)
	}
	pending, ok := e.prepareAddZone(t, req)
	if !ok {
		return Result{}, nil
	}
	if !e.gate.CanAddWebPart(ctx, actor.User, pending.zone, actor.Mode) {
		return Result{}, nil
	}

	wp := &model.WebPartInstance{
		ControlID:   info.Name,
		WebPartType: info.Name,
		CatalogID:   info.ID,
		Properties:  model.Properties(info.Defaults()),
	}
	return e.place(t, pending, wp, req), nil
}

// AddWidget places a new catalog widget. The widget's property schema is the
// union of its parent web part's schema and its own.
func (e *Engine) AddWidget(ctx context.Context, actor Actor, t *model.TemplateInstance, req AddRequest) (Result, error) {
	info, err := e.catalog.Widget(req.CatalogID)
	if err != nil {
		return Result{}, fmt.Errorf("add widget: %w", err)
	}
	defaults, err := catalog.WidgetDefaults(e.catalog, info)
	if err != nil {
		return Result{}, fmt.Errorf("add widget: %w", err)
	}
	pending, ok := e.prepareAddZone(t, req)
	if !ok {
		return Result{}, nil
	}
	if !e.gate.CanAddWidget(ctx, actor.User, pending.zone, info, actor.Mode) {
		return Result{}, nil
	}

	wp := &model.WebPartInstance{
		ControlID:   info.Name,
		WebPartType: info.Name,
		CatalogID:   info.ID,
		IsWidget:    true,
		Properties:  model.Properties(defaults),
	}
	return e.place(t, pending, wp, req), nil
}

func (e *Engine) prepareAddZone(t *model.TemplateInstance, req AddRequest) (pendingZone, bool) {
	pending, ok := prepareZone(t, req.ZoneID, req.VariantID)
	if !ok {
		e.logger.Debug("Add skipped, zone not resolvable", "zoneID", req.ZoneID, "variantID", req.VariantID)
		return pendingZone{}, false
	}
	if pending.created && req.LayoutZone {
		pending.zone.LayoutZone = true
	}
	return pending, true
}

func (e *Engine) place(t *model.TemplateInstance, pending pendingZone, wp *model.WebPartInstance, req AddRequest) Result {
	wp.Properties.Merge(req.Values)
	if req.Position != nil {
		pos := *req.Position
		wp.Position = &pos
	}
	t.EnsureWebPartInstanceIdentificators(wp)

	zone := pending.attach(t)
	zone.Insert(wp, req.Index)
	e.logger.Info("Web part added", "templateID", t.ID, "zoneID", zone.ID, "controlID", wp.ControlID, "widget", wp.IsWidget)

	var res Result
	res.touch(zone)
	res.WebPart = wp
	return res
}
