// Package model holds the in-memory tree of a page template being edited:
// template → zones (and zone variants) → web parts (and web part variants).
//
// The tree has no I/O and no security. A TemplateInstance exclusively owns
// everything below it; web parts only keep a non-owning reference to the
// zone that holds them.
package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TemplateInstance is the root aggregate of one page template layout.
type TemplateInstance struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Scope    TemplateScope   `json:"scope"`
	Revision int64           `json:"revision"`
	Zones    []*ZoneInstance `json:"zones"`
}

// NewTemplate creates an empty template.
func NewTemplate(id, name string, scope TemplateScope) *TemplateInstance {
	return &TemplateInstance{ID: id, Name: name, Scope: scope}
}

// EnsureZone returns the base zone with the given id, creating and attaching
// an empty one when it does not exist yet.
func (t *TemplateInstance) EnsureZone(zoneID string) *ZoneInstance {
	if z := t.GetZone(zoneID, 0); z != nil {
		return z
	}
	z := &ZoneInstance{ID: zoneID}
	t.Zones = append(t.Zones, z)
	return z
}

// GetZone returns the zone with the given id and variant, or nil.
func (t *TemplateInstance) GetZone(zoneID string, variantID int) *ZoneInstance {
	for _, z := range t.Zones {
		if z.ID == zoneID {
			return z.Variant(variantID)
		}
	}
	return nil
}

// zonesOfVariant lists the zones addressed by a zone variant id. Variant 0
// lists every base zone.
func (t *TemplateInstance) zonesOfVariant(variantID int) []*ZoneInstance {
	if variantID == 0 {
		return t.Zones
	}
	var out []*ZoneInstance
	for _, z := range t.Zones {
		if v := z.Variant(variantID); v != nil && v != z {
			out = append(out, v)
		}
	}
	return out
}

// AllZones returns every base zone followed by its zone variants.
func (t *TemplateInstance) AllZones() []*ZoneInstance {
	out := make([]*ZoneInstance, 0, len(t.Zones))
	for _, z := range t.Zones {
		out = append(out, z)
		out = append(out, z.Variants...)
	}
	return out
}

// GetWebPart finds a web part by GUID in the zones of variantID and then in
// the zones of fallbackVariantID.
func (t *TemplateInstance) GetWebPart(guid uuid.UUID, variantID, fallbackVariantID int) *WebPartInstance {
	if guid == uuid.Nil {
		return nil
	}
	for _, z := range t.zonesOfVariant(variantID) {
		if wp := z.WebPartByGUID(guid); wp != nil {
			return wp
		}
	}
	if fallbackVariantID == variantID {
		return nil
	}
	for _, z := range t.zonesOfVariant(fallbackVariantID) {
		if wp := z.WebPartByGUID(guid); wp != nil {
			return wp
		}
	}
	return nil
}

// GetWebPartByControlID finds a web part by control id, base zones first.
func (t *TemplateInstance) GetWebPartByControlID(controlID string) *WebPartInstance {
	if controlID == "" {
		return nil
	}
	for _, z := range t.AllZones() {
		if wp := z.WebPartByControlID(controlID); wp != nil {
			return wp
		}
	}
	return nil
}

// AllWebParts returns every web part of the template in zone order.
func (t *TemplateInstance) AllWebParts() []*WebPartInstance {
	var out []*WebPartInstance
	for _, z := range t.AllZones() {
		out = append(out, z.WebParts...)
	}
	return out
}

// UniqueControlID returns base, or base followed by the lowest free number,
// so the result does not collide with any control id in the template.
func (t *TemplateInstance) UniqueControlID(base string) string {
	taken := make(map[string]struct{})
	for _, wp := range t.AllWebParts() {
		taken[strings.ToLower(wp.ControlID)] = struct{}{}
	}
	if _, ok := taken[strings.ToLower(base)]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + strconv.Itoa(n)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}

// EnsureWebPartInstanceIdentificators re-mints the identifiers of a web part
// that is about to enter the template: a fresh GUID and a control id that
// does not collide with anything already in the template.
func (t *TemplateInstance) EnsureWebPartInstanceIdentificators(wp *WebPartInstance) {
	wp.InstanceGUID = uuid.New()
	base := strings.TrimRight(wp.ControlID, "0123456789")
	if base == "" {
		base = wp.WebPartType
	}
	if base == "" {
		base = "webpart"
	}
	wp.ControlID = t.UniqueControlID(base)
}

// Relink restores the back references after the tree was decoded or built by hand.
func (t *TemplateInstance) Relink() {
	for _, z := range t.Zones {
		z.relink()
	}
}

// Clone returns a deep copy of the whole tree.
func (t *TemplateInstance) Clone() *TemplateInstance {
	out := &TemplateInstance{
		ID:       t.ID,
		Name:     t.Name,
		Scope:    t.Scope,
		Revision: t.Revision,
	}
	for _, z := range t.Zones {
		out.Zones = append(out.Zones, z.Clone())
	}
	out.Relink()
	return out
}

// UnmarshalJSON decodes the template and relinks the tree.
func (t *TemplateInstance) UnmarshalJSON(data []byte) error {
	type plain TemplateInstance
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*t = TemplateInstance(decoded)
	t.Relink()
	return nil
}
