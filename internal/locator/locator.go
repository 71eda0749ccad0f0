// Package locator resolves protocol identifiers (zone id, variant id,
// instance GUID, control id) into live nodes of a template tree.
package locator

import (
	"strings"

	"go-page-designer/internal/model"

	"github.com/google/uuid"
)

// Zone looks a zone up without creating it.
func Zone(t *model.TemplateInstance, zoneID string, variantID int) *model.ZoneInstance {
	if zoneID == "" {
		return nil
	}
	return t.GetZone(zoneID, variantID)
}

// GetOrCreateZone returns the addressed zone, creating the base zone when it
// does not exist. Zone variants are never created implicitly, so a missing
// variant yields nil. A zone created here is marked as a layout zone when its
// id names an existing owner web part (see LayoutOwner).
func GetOrCreateZone(t *model.TemplateInstance, zoneID string, variantID int) (zone *model.ZoneInstance, created bool) {
	if zoneID == "" {
		return nil, false
	}
	if z := t.GetZone(zoneID, variantID); z != nil {
		return z, false
	}
	if variantID != 0 {
		return nil, false
	}
	z := t.EnsureZone(zoneID)
	if LayoutOwner(t, zoneID) != nil {
		z.LayoutZone = true
	}
	return z, true
}

// LayoutOwner returns the web part whose layout hosts zoneID. Layout zone ids
// are the owner's control id followed by an underscore and a suffix. Control
// ids may contain underscores themselves, so the longest matching prefix wins.
// Nil means the zone belongs to the template root.
func LayoutOwner(t *model.TemplateInstance, zoneID string) *model.WebPartInstance {
	for i := strings.LastIndex(zoneID, "_"); i > 0; i = strings.LastIndex(zoneID[:i], "_") {
		if i == len(zoneID)-1 {
			continue
		}
		if owner := t.GetWebPartByControlID(zoneID[:i]); owner != nil {
			return owner
		}
	}
	return nil
}

// ParseGUID parses an instance GUID, returning uuid.Nil for empty or malformed input.
func ParseGUID(s string) uuid.UUID {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil
	}
	guid, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return guid
}

// WebPart resolves a web part. The GUID is globally unique and wins; the
// control id is only unique per zone so it is tried inside the given zone
// first and template-wide last.
func WebPart(t *model.TemplateInstance, zone *model.ZoneInstance, guid, controlID string, variantID int) *model.WebPartInstance {
	if id := ParseGUID(guid); id != uuid.Nil {
		if wp := t.GetWebPart(id, variantID, 0); wp != nil {
			return wp
		}
	}
	if controlID == "" {
		return nil
	}
	if zone != nil {
		if wp := zone.WebPartByControlID(controlID); wp != nil {
			return wp
		}
	}
	return t.GetWebPartByControlID(controlID)
}
