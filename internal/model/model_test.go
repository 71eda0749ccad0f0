package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebPart(controlID string) *WebPartInstance {
	return &WebPartInstance{
		ControlID:    controlID,
		InstanceGUID: uuid.New(),
		WebPartType:  "text",
		Properties:   Properties{"text": controlID},
	}
}

func TestProperties_SetLine(t *testing.T) {
	tests := []struct {
		name    string
		current string
		value   string
		line    int
		want    string
	}{
		{"replace middle line", "a\nb\nc", "X", 2, "a\nX\nc"},
		{"replace first line", "a\nb\nc", "X", 1, "X\nb\nc"},
		{"no hint overwrites", "a\nb\nc", "X", 0, "X"},
		{"negative hint overwrites", "a\nb", "X", -1, "X"},
		{"pads missing lines", "a", "X", 3, "a\n\nX"},
		{"empty value", "", "X", 2, "\nX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Properties{"k": tt.current}
			p.SetLine("k", tt.value, tt.line)
			assert.Equal(t, tt.want, p["k"])
		})
	}
}

func TestProperties_AddInt(t *testing.T) {
	p := Properties{"count": "4", "junk": "abc", "spaced": " 2 "}
	assert.Equal(t, 7, p.AddInt("count", 3))
	assert.Equal(t, "7", p["count"])
	assert.Equal(t, 1, p.AddInt("junk", 1))
	assert.Equal(t, -2, p.AddInt("missing", -2))
	assert.Equal(t, 4, p.AddInt("spaced", 2))
}

func TestParseZoneType(t *testing.T) {
	for _, zt := range []ZoneType{ZoneTypeNone, ZoneTypeEditor, ZoneTypeGroup, ZoneTypeUser, ZoneTypeDashboard} {
		parsed, err := ParseZoneType(zt.String())
		require.NoError(t, err)
		assert.Equal(t, zt, parsed)
	}
	parsed, err := ParseZoneType("")
	require.NoError(t, err)
	assert.Equal(t, ZoneTypeNone, parsed)

	_, err = ParseZoneType("sidebar")
	assert.Error(t, err)

	assert.Equal(t, ScopeDashboard, ParseTemplateScope("dashboard"))
	assert.Equal(t, ScopeUnknown, ParseTemplateScope("weird"))
}

func TestZone_InsertDetach(t *testing.T) {
	z := &ZoneInstance{ID: "zoneA"}
	a, b, c := newWebPart("a"), newWebPart("b"), newWebPart("c")

	z.Insert(a, -1)
	z.Insert(c, 5)
	z.Insert(b, 1)
	assert.Equal(t, []*WebPartInstance{a, b, c}, z.WebParts)
	assert.Same(t, z, b.ParentZone())

	assert.True(t, z.Detach(b))
	assert.False(t, z.Detach(b))
	assert.Nil(t, b.ParentZone())
	assert.Equal(t, 2, z.Count())

	removed := z.Clear()
	assert.Equal(t, []*WebPartInstance{a, c}, removed)
	assert.Zero(t, z.Count())
	assert.Nil(t, a.ParentZone())
}

func TestZone_HasVariants(t *testing.T) {
	z := &ZoneInstance{ID: "zoneA"}
	z.Insert(newWebPart("a"), -1)
	assert.False(t, z.HasVariants())

	z.WebParts[0].Variants = []*VariantInstance{{ID: 1}}
	assert.True(t, z.HasVariants())

	z2 := &ZoneInstance{ID: "zoneB", Variants: []*ZoneInstance{{VariantID: 3}}}
	assert.True(t, z2.HasVariants())
}

func TestTemplate_UniqueControlID(t *testing.T) {
	tmpl := NewTemplate("home", "Home", ScopePortal)
	zone := tmpl.EnsureZone("zoneA")
	assert.Same(t, zone, tmpl.EnsureZone("zoneA"))

	assert.Equal(t, "text", tmpl.UniqueControlID("text"))
	zone.Insert(newWebPart("text"), -1)
	zone.Insert(newWebPart("Text1"), -1)
	assert.Equal(t, "text2", tmpl.UniqueControlID("text"), "comparison ignores case")

	wp := newWebPart("text1")
	guid := wp.InstanceGUID
	tmpl.EnsureWebPartInstanceIdentificators(wp)
	assert.NotEqual(t, guid, wp.InstanceGUID)
	assert.Equal(t, "text2", wp.ControlID)

	empty := &WebPartInstance{WebPartType: "image"}
	tmpl.EnsureWebPartInstanceIdentificators(empty)
	assert.Equal(t, "image", empty.ControlID)
}

func TestTemplate_GetWebPart(t *testing.T) {
	tmpl := NewTemplate("home", "Home", ScopePortal)
	base := tmpl.EnsureZone("zoneA")
	inBase := newWebPart("base")
	base.Insert(inBase, -1)

	variant := &ZoneInstance{VariantID: 2}
	inVariant := newWebPart("variant")
	variant.Insert(inVariant, -1)
	base.Variants = append(base.Variants, variant)
	tmpl.Relink()

	assert.Same(t, inVariant, tmpl.GetWebPart(inVariant.InstanceGUID, 2, 0))
	assert.Same(t, inBase, tmpl.GetWebPart(inBase.InstanceGUID, 2, 0), "falls back to the base zones")
	assert.Nil(t, tmpl.GetWebPart(inVariant.InstanceGUID, 0, 0))
	assert.Nil(t, tmpl.GetWebPart(uuid.Nil, 0, 0))

	assert.Same(t, inVariant, tmpl.GetWebPartByControlID("variant"))
	assert.Same(t, variant, tmpl.GetZone("zoneA", 2))
	assert.Equal(t, "zoneA", variant.ID)
	assert.Nil(t, tmpl.GetZone("zoneA", 9))
}

func TestWebPart_CloneBranchless(t *testing.T) {
	wp := newWebPart("text")
	wp.Position = &Position{X: 3, Y: 4}
	wp.Variants = []*VariantInstance{{ID: 1, Properties: Properties{"text": "v"}}}

	clone := wp.Clone()
	assert.Equal(t, wp.InstanceGUID, clone.InstanceGUID)
	clone.Properties["text"] = "changed"
	clone.Variants[0].Properties["text"] = "changed"
	clone.Position.X = 99
	assert.Equal(t, "text", wp.Properties["text"])
	assert.Equal(t, "v", wp.Variants[0].Properties["text"])
	assert.Equal(t, 3, wp.Position.X)

	branchless := wp.CloneBranchless()
	assert.NotEqual(t, wp.InstanceGUID, branchless.InstanceGUID)
	assert.Empty(t, branchless.Variants)
	assert.Nil(t, branchless.Position)
	assert.Equal(t, wp.Properties, branchless.Properties)
	assert.Nil(t, branchless.ParentZone())
}

func TestWebPart_PropertiesFor(t *testing.T) {
	wp := &WebPartInstance{Variants: []*VariantInstance{{ID: 5}}}
	wp.PropertiesFor(0)["a"] = "base"
	wp.PropertiesFor(5)["a"] = "variant"
	assert.Equal(t, "base", wp.Properties["a"])
	assert.Equal(t, "variant", wp.Variants[0].Properties["a"])
	assert.Nil(t, wp.PropertiesFor(6))
}

func TestTemplate_JSONRoundTrip(t *testing.T) {
	tmpl := NewTemplate("home", "Home", ScopeDashboard)
	zone := tmpl.EnsureZone("zoneA")
	zone.ZoneType = ZoneTypeDashboard
	wp := newWebPart("text")
	wp.Variants = []*VariantInstance{{ID: 1, Properties: Properties{"text": "v"}}}
	wp.Position = &Position{X: 1, Y: 2}
	zone.Insert(wp, -1)
	zone.Variants = []*ZoneInstance{{VariantID: 4}}
	tmpl.Relink()

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"zoneType":"dashboard"`)
	assert.Contains(t, string(data), `"scope":"dashboard"`)

	var decoded TemplateInstance
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(tmpl, &decoded, cmpopts.IgnoreUnexported(WebPartInstance{}), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	decodedZone := decoded.GetZone("zoneA", 0)
	assert.Same(t, decodedZone, decodedZone.WebParts[0].ParentZone())
	assert.Equal(t, ZoneTypeDashboard, decoded.GetZone("zoneA", 4).ZoneType)
}

func TestTemplate_Clone(t *testing.T) {
	tmpl := NewTemplate("home", "Home", ScopePortal)
	zone := tmpl.EnsureZone("zoneA")
	zone.Insert(newWebPart("text"), -1)

	clone := tmpl.Clone()
	if diff := cmp.Diff(tmpl, clone, cmpopts.IgnoreUnexported(WebPartInstance{})); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
	cloneZone := clone.GetZone("zoneA", 0)
	assert.NotSame(t, zone, cloneZone)
	assert.Same(t, cloneZone, cloneZone.WebParts[0].ParentZone())

	cloneZone.WebParts[0].Properties["text"] = "changed"
	assert.Equal(t, "text", zone.WebParts[0].Properties["text"])
}
