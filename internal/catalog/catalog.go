// Package catalog describes the web parts and widgets that can be placed on
// a page: their eligibility flags and default property schema.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownWebPart = errors.New("unknown web part")
	ErrUnknownWidget  = errors.New("unknown widget")
)

// PropertyDef is one entry of a property schema.
type PropertyDef struct {
	Name    string `yaml:"name" validate:"required"`
	Default string `yaml:"default"`
}

// WebPartInfo is a catalog web part.
type WebPartInfo struct {
	ID          int           `yaml:"id" validate:"required,gt=0"`
	Name        string        `yaml:"name" validate:"required"`
	DisplayName string        `yaml:"displayName"`
	Properties  []PropertyDef `yaml:"properties" validate:"dive"`
}

// Defaults returns the default property values of the web part.
func (w *WebPartInfo) Defaults() map[string]string {
	out := make(map[string]string, len(w.Properties))
	for _, p := range w.Properties {
		out[p.Name] = p.Default
	}
	return out
}

// WidgetInfo is a catalog widget: a restricted, end-user placeable web part.
type WidgetInfo struct {
	ID           int           `yaml:"id" validate:"required,gt=0"`
	Name         string        `yaml:"name" validate:"required"`
	DisplayName  string        `yaml:"displayName"`
	WebPartID    int           `yaml:"webPartId" validate:"required,gt=0"`
	ForGroup     bool          `yaml:"forGroup"`
	ForEditor    bool          `yaml:"forEditor"`
	ForUser      bool          `yaml:"forUser"`
	ForDashboard bool          `yaml:"forDashboard"`
	Properties   []PropertyDef `yaml:"properties" validate:"dive"`
}

// Catalog looks web parts and widgets up by numeric id.
type Catalog interface {
	WebPart(id int) (*WebPartInfo, error)
	Widget(id int) (*WidgetInfo, error)
}

// WidgetDefaults returns the property schema of a widget: the union of its
// parent web part's defaults and its own, the widget winning on collisions.
func WidgetDefaults(c Catalog, widget *WidgetInfo) (map[string]string, error) {
	parent, err := c.WebPart(widget.WebPartID)
	if err != nil {
		return nil, fmt.Errorf("widget %s: parent web part: %w", widget.Name, err)
	}
	out := parent.Defaults()
	for _, p := range widget.Properties {
		out[p.Name] = p.Default
	}
	return out, nil
}

// document is the on-disk shape of a catalog file.
type document struct {
	WebParts []*WebPartInfo `yaml:"webParts" validate:"dive"`
	Widgets  []*WidgetInfo  `yaml:"widgets" validate:"dive"`
}

// YAMLCatalog is a read-only catalog loaded from YAML.
type YAMLCatalog struct {
	webParts map[int]*WebPartInfo
	widgets  map[int]*WidgetInfo
}

// LoadYAML reads and validates a catalog file.
func LoadYAML(path string) (*YAMLCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return c, nil
}

// ParseYAML builds a catalog from YAML bytes.
func ParseYAML(data []byte) (*YAMLCatalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return New(doc.WebParts, doc.Widgets)
}

// New builds a catalog from in-memory entries. Widgets must reference a known web part.
func New(webParts []*WebPartInfo, widgets []*WidgetInfo) (*YAMLCatalog, error) {
	c := &YAMLCatalog{
		webParts: make(map[int]*WebPartInfo, len(webParts)),
		widgets:  make(map[int]*WidgetInfo, len(widgets)),
	}
	for _, wp := range webParts {
		if _, dup := c.webParts[wp.ID]; dup {
			return nil, fmt.Errorf("duplicate web part id %d", wp.ID)
		}
		c.webParts[wp.ID] = wp
	}
	for _, w := range widgets {
		if _, dup := c.widgets[w.ID]; dup {
			return nil, fmt.Errorf("duplicate widget id %d", w.ID)
		}
		if _, ok := c.webParts[w.WebPartID]; !ok {
			return nil, fmt.Errorf("widget %s references web part %d: %w", w.Name, w.WebPartID, ErrUnknownWebPart)
		}
		c.widgets[w.ID] = w
	}
	return c, nil
}

// WebPart implements Catalog.
func (c *YAMLCatalog) WebPart(id int) (*WebPartInfo, error) {
	wp, ok := c.webParts[id]
	if !ok {
		return nil, fmt.Errorf("web part %d: %w", id, ErrUnknownWebPart)
	}
	return wp, nil
}

// Widget implements Catalog.
func (c *YAMLCatalog) Widget(id int) (*WidgetInfo, error) {
	w, ok := c.widgets[id]
	if !ok {
		return nil, fmt.Errorf("widget %d: %w", id, ErrUnknownWidget)
	}
	return w, nil
}
