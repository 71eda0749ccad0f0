package model

import "github.com/google/uuid"

// VariantInstance is a personalization or A/B test override of a web part's properties.
type VariantInstance struct {
	ID         int        `json:"id"`
	Properties Properties `json:"properties"`
}

// WebPartInstance is one placed web part (or widget) inside a zone.
type WebPartInstance struct {
	ControlID    string             `json:"controlId"`    // Unique within the template
	InstanceGUID uuid.UUID          `json:"instanceGuid"` // Stable across moves and renames
	WebPartType  string             `json:"webPartType"`  // Catalog code name
	CatalogID    int                `json:"catalogId"`
	IsWidget     bool               `json:"isWidget"`
	Properties   Properties         `json:"properties"`
	Minimized    bool               `json:"minimized,omitempty"`
	Position     *Position          `json:"position,omitempty"`
	Variants     []*VariantInstance `json:"variants,omitempty"`

	zone *ZoneInstance // back reference, owned by the zone
}

// ParentZone returns the zone currently holding the web part, or nil when detached.
func (w *WebPartInstance) ParentZone() *ZoneInstance {
	return w.zone
}

// HasVariants reports whether the web part carries personalization branches.
func (w *WebPartInstance) HasVariants() bool {
	return len(w.Variants) > 0
}

// Variant returns the variant with the given id or nil.
func (w *WebPartInstance) Variant(id int) *VariantInstance {
	for _, v := range w.Variants {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// PropertiesFor returns the bag addressed by variantID: the web part's own
// bag for 0, the variant's bag otherwise, or nil when the variant is missing.
func (w *WebPartInstance) PropertiesFor(variantID int) Properties {
	if variantID == 0 {
		if w.Properties == nil {
			w.Properties = Properties{}
		}
		return w.Properties
	}
	v := w.Variant(variantID)
	if v == nil {
		return nil
	}
	if v.Properties == nil {
		v.Properties = Properties{}
	}
	return v.Properties
}

// Clone returns a detached deep copy keeping the same identifiers.
func (w *WebPartInstance) Clone() *WebPartInstance {
	out := &WebPartInstance{
		ControlID:    w.ControlID,
		InstanceGUID: w.InstanceGUID,
		WebPartType:  w.WebPartType,
		CatalogID:    w.CatalogID,
		IsWidget:     w.IsWidget,
		Properties:   w.Properties.Clone(),
		Minimized:    w.Minimized,
	}
	if w.Position != nil {
		pos := *w.Position
		out.Position = &pos
	}
	if len(w.Variants) > 0 {
		out.Variants = make([]*VariantInstance, 0, len(w.Variants))
		for _, v := range w.Variants {
			out.Variants = append(out.Variants, &VariantInstance{ID: v.ID, Properties: v.Properties.Clone()})
		}
	}
	return out
}

// CloneBranchless returns a detached copy with a fresh GUID, no variants and
// no freeform position. The control id is kept as the base for re-minting.
func (w *WebPartInstance) CloneBranchless() *WebPartInstance {
	out := w.Clone()
	out.InstanceGUID = uuid.New()
	out.Variants = nil
	out.Position = nil
	return out
}
