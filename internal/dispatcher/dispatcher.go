// Package dispatcher is the protocol adapter of the page designer. It decodes
// commands from the full postback and the partial (asynchronous) channel,
// runs them through the operations engine, persists the touched zones and
// answers with a status token.
//
// Both channels share one code path; only the response differs. A successful
// full postback always answers refresh so the page is rebuilt from the
// persisted template.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"go-page-designer/internal/clipboard"
	"go-page-designer/internal/ctxlog"
	"go-page-designer/internal/model"
	"go-page-designer/internal/operations"
	"go-page-designer/internal/security"
)

// TemplateService is the storage side of the designer.
type TemplateService interface {
	clipboard.SourceProbe

	LoadTemplateForEditing(ctx context.Context, aliasPath string) (*model.TemplateInstance, error)
	SaveZones(ctx context.Context, t *model.TemplateInstance, zones []*model.ZoneInstance, triggerRefresh bool) error
	SaveTemplate(ctx context.Context, t *model.TemplateInstance, zoneType model.ZoneType, mode security.ViewMode) error
	IsCheckedOutByOtherUser(ctx context.Context, t *model.TemplateInstance, userID int) (bool, error)
	CloneTemplate(ctx context.Context, aliasPath string) (*model.TemplateInstance, error)
	Lock(key string) func()
}

// Request identifies the caller of a command.
type Request struct {
	User      security.User
	Mode      security.ViewMode
	SessionID string
}

// Dispatcher runs designer commands.
type Dispatcher struct {
	engine     *operations.Engine
	templates  TemplateService
	clipboards *clipboard.Manager
	enabled    bool
	logger     *slog.Logger
}

// New creates a dispatcher. enabled is the designer feature flag: when it is
// off every command answers unauthorized.
func New(engine *operations.Engine, templates TemplateService, clipboards *clipboard.Manager, enabled bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		engine:     engine,
		templates:  templates,
		clipboards: clipboards,
		enabled:    enabled,
		logger:     logger,
	}
}

// HandleCallback runs a partial channel payload and returns the encoded token.
func (d *Dispatcher) HandleCallback(ctx context.Context, req Request, payload string) string {
	if !d.enabled {
		return unauthorized().Encode()
	}
	cmd, err := ParseCallback(payload)
	if err != nil {
		ctxlog.FromContext(ctx, d.logger).Warn("Rejected designer payload", "error", err)
		return failure(err.Error()).Encode()
	}
	return d.Dispatch(ctx, ChannelPartial, req, cmd).Encode()
}

// HandlePostback runs a full postback command. Outside design mode nothing happens.
func (d *Dispatcher) HandlePostback(ctx context.Context, req Request, cmd Command) Response {
	if req.Mode != security.ViewModeDesign && d.enabled {
		ctxlog.FromContext(ctx, d.logger).Debug("Postback ignored outside design mode", "command", cmd.Name, "mode", req.Mode.String())
		return ok()
	}
	return d.Dispatch(ctx, ChannelFullReload, req, cmd)
}

// Dispatch runs one command. Expected conditions never fail: they answer ok
// without changing anything. Unexpected failures, panics included, are
// logged and answered with an error token.
func (d *Dispatcher) Dispatch(ctx context.Context, channel Channel, req Request, cmd Command) (resp Response) {
	log := ctxlog.FromContext(ctx, d.logger).With("command", cmd.Name, "channel", channel.String(), "aliasPath", cmd.AliasPath, "userID", req.User.ID)

	if !d.enabled {
		return unauthorized()
	}
	if err := cmd.Validate(); err != nil {
		log.Warn("Invalid designer command", "error", err)
		return failure(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Designer command panicked", "panic", r, "stack", string(debug.Stack()))
			resp = failure(fmt.Sprint(r))
		}
	}()

	unlock := d.templates.Lock(cmd.AliasPath)
	defer unlock()

	t, err := d.templates.LoadTemplateForEditing(ctx, cmd.AliasPath)
	if err != nil {
		log.Error("Designer command failed to load template", "error", err)
		return failure(err.Error())
	}
	busy, err := d.templates.IsCheckedOutByOtherUser(ctx, t, req.User.ID)
	if err != nil {
		log.Error("Designer command failed to read checkout", "templateID", t.ID, "error", err)
		return failure(err.Error())
	}
	if busy {
		log.Info("Template checked out by another user, refreshing", "templateID", t.ID)
		return refresh()
	}

	resp, err = d.execute(ctx, channel, req, cmd, t)
	if err != nil {
		log.Error("Designer command failed", "templateID", t.ID, "error", err)
		return failure(err.Error())
	}
	if channel == ChannelFullReload && resp.Status == StatusOK {
		return refresh()
	}
	return resp
}

func (d *Dispatcher) execute(ctx context.Context, channel Channel, req Request, cmd Command, t *model.TemplateInstance) (Response, error) {
	actor := operations.Actor{User: req.User, Mode: req.Mode}
	ref := operations.WebPartRef{ZoneID: cmd.ZoneID, VariantID: cmd.VariantID, ControlID: cmd.ControlID, GUID: cmd.GUID}

	var (
		res operations.Result
		err error
	)
	switch cmd.Name {
	case CmdCloneTemplate:
		if _, err := d.templates.CloneTemplate(ctx, cmd.AliasPath); err != nil {
			return Response{}, err
		}
		return refresh(), nil

	case CmdCopyWebPart:
		d.engine.Copy(ctx, actor, t, d.clipboard(req), ref)
		return ok(), nil

	case CmdPasteWebPart:
		res = d.engine.Paste(ctx, actor, t, d.clipboard(req), d.templates, operations.PasteRequest{
			ZoneID:    cmd.ZoneID,
			VariantID: cmd.VariantID,
			After:     operations.WebPartRef{ZoneID: cmd.ZoneID, VariantID: cmd.VariantID, ControlID: cmd.ControlID, GUID: cmd.GUID},
		})

	case CmdAddWebPart, CmdAddWidget:
		add := operations.AddRequest{
			CatalogID:  cmd.CatalogID,
			ZoneID:     cmd.ZoneID,
			VariantID:  cmd.VariantID,
			Index:      cmd.Index,
			LayoutZone: cmd.LayoutZone,
			Position:   cmd.Position,
			Values:     cmd.Values,
		}
		if cmd.Name == CmdAddWidget {
			res, err = d.engine.AddWidget(ctx, actor, t, add)
		} else {
			res, err = d.engine.AddWebPart(ctx, actor, t, add)
		}
		if err != nil {
			return Response{}, err
		}

	case CmdRemoveWebPart:
		res = d.engine.Remove(ctx, actor, t, ref)
	case CmdRemoveAllWebParts:
		res = d.engine.RemoveAll(ctx, actor, t, cmd.ZoneID, cmd.VariantID)
	case CmdMoveWebPartUp:
		res = d.engine.Reorder(ctx, actor, t, ref, operations.Up)
	case CmdMoveWebPartDown:
		res = d.engine.Reorder(ctx, actor, t, ref, operations.Down)
	case CmdMoveWebPartTop:
		res = d.engine.Reorder(ctx, actor, t, ref, operations.Top)
	case CmdMoveWebPartBottom:
		res = d.engine.Reorder(ctx, actor, t, ref, operations.Bottom)
	case CmdCloneWebPart:
		res = d.engine.Clone(ctx, actor, t, ref)

	case CmdMoveWebPart:
		source := ref
		source.VariantID = cmd.SourceVariantID
		res = d.engine.Move(ctx, actor, t, operations.MoveRequest{
			Source:          source,
			TargetZoneID:    cmd.TargetZoneID,
			TargetVariantID: cmd.TargetVariantID,
			Index:           cmd.Index,
			Position:        cmd.Position,
		})
	case CmdMoveAllWebParts:
		res = d.engine.MoveAll(ctx, actor, t, cmd.ZoneID, cmd.SourceVariantID, cmd.TargetZoneID, cmd.TargetVariantID)

	case CmdSetProperty:
		res = d.engine.SetProperty(ctx, actor, t, ref, cmd.WebPartVariantID, cmd.Key, cmd.Value, cmd.LineHint)
	case CmdAddToProperty:
		res = d.engine.AddToProperty(ctx, actor, t, ref, cmd.Key, cmd.Delta)

	case CmdMinimizeWidget, CmdMaximizeWidget:
		res = d.engine.ChangeWidgetState(ctx, actor, t, ref, cmd.Name == CmdMinimizeWidget)
		if res.Changed {
			// Widget state belongs to the whole personalized page.
			if err := d.templates.SaveTemplate(ctx, t, res.Zones[0].ZoneType, req.Mode); err != nil {
				return Response{}, err
			}
			return ok(), nil
		}

	default:
		return Response{}, fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
	}

	if res.Conflict != "" {
		return conflict(res.Conflict), nil
	}
	if !res.Changed {
		return ok(), nil
	}
	if err := d.persist(ctx, channel, t, res); err != nil {
		return Response{}, err
	}
	if len(res.UpdateIDs) == 2 {
		return updateIDs(res.UpdateIDs), nil
	}
	return ok(), nil
}

// persist saves the zones touched by the operation with a single write.
func (d *Dispatcher) persist(ctx context.Context, channel Channel, t *model.TemplateInstance, res operations.Result) error {
	return d.templates.SaveZones(ctx, t, res.Zones, channel == ChannelFullReload)
}

func (d *Dispatcher) clipboard(req Request) *clipboard.Store {
	return d.clipboards.Store(req.SessionID)
}
