// Package security decides whether the current user may change a zone.
//
// Decisions are plain booleans. The gate never explains a denial; callers
// treat a denial the same way as any other no-op.
package security

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/model"
)

// Resource and permission keys understood by Authorizer implementations.
const (
	ResourceDesign   = "cms.design"
	PermissionDesign = "design"
	ResourceGroups   = "cms.groups"
	PermissionManage = "manage"
)

// PrivilegeLevel is the coarse privilege of a user.
type PrivilegeLevel int

const (
	PrivilegeNone PrivilegeLevel = iota
	PrivilegeEditor
	PrivilegeAdmin
	PrivilegeGlobalAdmin
)

// ParsePrivilegeLevel maps a configuration name to a level. Unknown names map to PrivilegeNone.
func ParsePrivilegeLevel(s string) PrivilegeLevel {
	switch s {
	case "editor":
		return PrivilegeEditor
	case "admin":
		return PrivilegeAdmin
	case "globaladmin", "global_admin":
		return PrivilegeGlobalAdmin
	default:
		return PrivilegeNone
	}
}

// ViewMode is the mode the page is being edited in.
type ViewMode int

const (
	ViewModeLive ViewMode = iota
	ViewModeDesign
	ViewModeEdit
	ViewModeUserWidgets
	ViewModeGroupWidgets
	ViewModeDashboard
)

var viewModeNames = []string{"live", "design", "edit", "userwidgets", "groupwidgets", "dashboard"}

func (m ViewMode) String() string {
	if m < 0 || int(m) >= len(viewModeNames) {
		return "unknown"
	}
	return viewModeNames[m]
}

// ParseViewMode maps a mode name to a ViewMode. Unknown names map to ViewModeLive.
func ParseViewMode(s string) ViewMode {
	for i, name := range viewModeNames {
		if strings.EqualFold(s, name) {
			return ViewMode(i)
		}
	}
	return ViewModeLive
}

// User is the caller of a command.
type User struct {
	ID            int
	UserName      string
	Authenticated bool
	Privilege     PrivilegeLevel
}

// IsEditor reports whether the user holds at least the editor privilege.
func (u User) IsEditor() bool {
	return u.Privilege >= PrivilegeEditor
}

// Authorizer answers resource permission questions for a user.
type Authorizer interface {
	IsAuthorized(ctx context.Context, userID int, resource, permission string) bool
}

// Gate applies the zone-type authorization rules.
type Gate struct {
	authz  Authorizer
	logger *slog.Logger
}

// NewGate creates a gate backed by authz.
func NewGate(authz Authorizer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{authz: authz, logger: logger}
}

func (g *Gate) hasDesignRights(ctx context.Context, user User) bool {
	if !user.Authenticated {
		return false
	}
	if user.Privilege >= PrivilegeGlobalAdmin {
		return true
	}
	return g.authz != nil && g.authz.IsAuthorized(ctx, user.ID, ResourceDesign, PermissionDesign)
}

func (g *Gate) isGroupAdmin(ctx context.Context, user User) bool {
	if !user.Authenticated {
		return false
	}
	if user.Privilege >= PrivilegeGlobalAdmin {
		return true
	}
	return g.authz != nil && g.authz.IsAuthorized(ctx, user.ID, ResourceGroups, PermissionManage)
}

// CanManageZone reports whether user may change the content of zone in mode.
// Rules are evaluated by zone type; the first match wins:
//
//	group      group administrators, or design rights while in design mode
//	editor     editor privilege or higher
//	user       any authenticated user
//	dashboard  any authenticated user
//	otherwise  design rights (layout zones, untyped zones, design mode)
func (g *Gate) CanManageZone(ctx context.Context, user User, zone *model.ZoneInstance, mode ViewMode) bool {
	if zone == nil {
		return false
	}
	allowed, _ := g.evaluate(ctx, user, zone, mode)
	if !allowed {
		g.logger.Debug("Zone change denied", "userID", user.ID, "zoneID", zone.ID, "zoneType", zone.ZoneType.String())
	}
	return allowed
}

// evaluate returns the decision and whether it came from a zone-type row, in
// which case widgets must also carry that zone type's eligibility flag.
func (g *Gate) evaluate(ctx context.Context, user User, zone *model.ZoneInstance, mode ViewMode) (allowed, typed bool) {
	if !zone.LayoutZone {
		switch zone.ZoneType {
		case model.ZoneTypeGroup:
			if g.isGroupAdmin(ctx, user) || (mode == ViewModeDesign && g.hasDesignRights(ctx, user)) {
				return true, true
			}
		case model.ZoneTypeEditor:
			if user.Authenticated && user.IsEditor() {
				return true, true
			}
		case model.ZoneTypeUser, model.ZoneTypeDashboard:
			if user.Authenticated {
				return true, true
			}
		}
	}
	// Layout zones, untyped zones and design mode fall to design rights.
	if zone.LayoutZone || zone.ZoneType == model.ZoneTypeNone || mode == ViewModeDesign {
		return g.hasDesignRights(ctx, user), false
	}
	return false, false
}

// CanAddWidget applies the zone rules plus the widget eligibility flag of the
// matching zone type. The design-rights row has no eligibility check.
func (g *Gate) CanAddWidget(ctx context.Context, user User, zone *model.ZoneInstance, widget *catalog.WidgetInfo, mode ViewMode) bool {
	if zone == nil || widget == nil {
		return false
	}
	allowed, typed := g.evaluate(ctx, user, zone, mode)
	if !allowed {
		g.logger.Debug("Widget add denied", "userID", user.ID, "zoneID", zone.ID, "zoneType", zone.ZoneType.String())
		return false
	}
	if !typed {
		return true
	}
	eligible := false
	switch zone.ZoneType {
	case model.ZoneTypeGroup:
		eligible = widget.ForGroup
	case model.ZoneTypeEditor:
		eligible = widget.ForEditor
	case model.ZoneTypeUser:
		eligible = widget.ForUser
	case model.ZoneTypeDashboard:
		eligible = widget.ForDashboard
	}
	if !eligible {
		g.logger.Debug("Widget not eligible for zone", "widget", widget.Name, "zoneID", zone.ID, "zoneType", zone.ZoneType.String())
	}
	return eligible
}

// CanAddWebPart reports whether user may place a plain web part. Web parts
// are a design-mode concept, so only design rights in design mode qualify.
func (g *Gate) CanAddWebPart(ctx context.Context, user User, zone *model.ZoneInstance, mode ViewMode) bool {
	if zone == nil || mode != ViewModeDesign {
		return false
	}
	return g.hasDesignRights(ctx, user)
}
