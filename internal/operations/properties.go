package operations

import (
	"context"

	"go-page-designer/internal/model"
)

// SetProperty writes a property of a web part or of one of its variants.
// With a positive lineHint only that 1-based line of the value is replaced.
func (e *Engine) SetProperty(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef, webPartVariantID int, key, value string, lineHint int) Result {
	if key == "" {
		return Result{}
	}
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok {
		return Result{}
	}
	bag := wp.PropertiesFor(webPartVariantID)
	if bag == nil {
		e.logger.Debug("Web part variant not found", "controlID", wp.ControlID, "variantID", webPartVariantID)
		return Result{}
	}
	bag.SetLine(key, value, lineHint)

	var res Result
	res.touch(zone)
	res.WebPart = wp
	return res
}

// AddToProperty adds delta to an integer property. Unparsable values count as 0.
func (e *Engine) AddToProperty(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef, key string, delta int) Result {
	if key == "" {
		return Result{}
	}
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok {
		return Result{}
	}
	wp.PropertiesFor(0).AddInt(key, delta)

	var res Result
	res.touch(zone)
	res.WebPart = wp
	return res
}

// ChangeWidgetState minimizes or maximizes a widget.
func (e *Engine) ChangeWidgetState(ctx context.Context, actor Actor, t *model.TemplateInstance, ref WebPartRef, minimized bool) Result {
	wp, zone, ok := e.resolve(ctx, actor, t, ref)
	if !ok || wp.Minimized == minimized {
		return Result{}
	}
	wp.Minimized = minimized

	var res Result
	res.touch(zone)
	res.WebPart = wp
	return res
}
