package model

import "github.com/google/uuid"

// ZoneInstance is a named container holding an ordered list of web parts.
// A base zone (VariantID 0) may carry zone variants, each with its own list.
type ZoneInstance struct {
	ID         string             `json:"id"`
	VariantID  int                `json:"variantId,omitempty"`
	LayoutZone bool               `json:"layoutZone,omitempty"`
	ZoneType   ZoneType           `json:"zoneType"`
	WebParts   []*WebPartInstance `json:"webParts"`
	Variants   []*ZoneInstance    `json:"variants,omitempty"`
}

// Count returns the number of web parts in the zone.
func (z *ZoneInstance) Count() int {
	return len(z.WebParts)
}

// HasVariants reports whether the zone already carries a variant dimension:
// zone variants of its own or any web part with variants.
func (z *ZoneInstance) HasVariants() bool {
	if len(z.Variants) > 0 {
		return true
	}
	for _, wp := range z.WebParts {
		if wp.HasVariants() {
			return true
		}
	}
	return false
}

// Variant returns the zone variant with the given id, or the zone itself for 0.
func (z *ZoneInstance) Variant(variantID int) *ZoneInstance {
	if variantID == 0 || variantID == z.VariantID {
		return z
	}
	for _, v := range z.Variants {
		if v.VariantID == variantID {
			return v
		}
	}
	return nil
}

// IndexOf returns the position of wp in the zone or -1.
func (z *ZoneInstance) IndexOf(wp *WebPartInstance) int {
	for i, candidate := range z.WebParts {
		if candidate == wp {
			return i
		}
	}
	return -1
}

// WebPartByControlID finds a web part of this zone by control id.
func (z *ZoneInstance) WebPartByControlID(controlID string) *WebPartInstance {
	for _, wp := range z.WebParts {
		if wp.ControlID == controlID {
			return wp
		}
	}
	return nil
}

// WebPartByGUID finds a web part of this zone by instance GUID.
func (z *ZoneInstance) WebPartByGUID(guid uuid.UUID) *WebPartInstance {
	for _, wp := range z.WebParts {
		if wp.InstanceGUID == guid {
			return wp
		}
	}
	return nil
}

// Insert attaches wp at index. A negative or out of range index appends.
func (z *ZoneInstance) Insert(wp *WebPartInstance, index int) {
	if index < 0 || index >= len(z.WebParts) {
		z.WebParts = append(z.WebParts, wp)
	} else {
		z.WebParts = append(z.WebParts, nil)
		copy(z.WebParts[index+1:], z.WebParts[index:])
		z.WebParts[index] = wp
	}
	wp.zone = z
}

// Detach removes wp from the zone. It returns false when wp was not there.
func (z *ZoneInstance) Detach(wp *WebPartInstance) bool {
	i := z.IndexOf(wp)
	if i < 0 {
		return false
	}
	z.WebParts = append(z.WebParts[:i], z.WebParts[i+1:]...)
	if wp.zone == z {
		wp.zone = nil
	}
	return true
}

// Clear detaches every web part and returns them in their former order.
func (z *ZoneInstance) Clear() []*WebPartInstance {
	removed := z.WebParts
	for _, wp := range removed {
		wp.zone = nil
	}
	z.WebParts = nil
	return removed
}

// Clone returns a deep copy of the zone and its variants.
func (z *ZoneInstance) Clone() *ZoneInstance {
	out := &ZoneInstance{
		ID:         z.ID,
		VariantID:  z.VariantID,
		LayoutZone: z.LayoutZone,
		ZoneType:   z.ZoneType,
	}
	for _, wp := range z.WebParts {
		out.Insert(wp.Clone(), -1)
	}
	for _, v := range z.Variants {
		out.Variants = append(out.Variants, v.Clone())
	}
	return out
}

func (z *ZoneInstance) relink() {
	for _, wp := range z.WebParts {
		wp.zone = z
		if wp.Properties == nil {
			wp.Properties = Properties{}
		}
	}
	for _, v := range z.Variants {
		// Variants share the identity and classification of their base zone.
		v.ID = z.ID
		v.ZoneType = z.ZoneType
		v.LayoutZone = z.LayoutZone
		v.relink()
	}
}
