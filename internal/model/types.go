package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoneType classifies a zone and decides which widgets may be placed in it and by whom.
type ZoneType int

const (
	ZoneTypeNone ZoneType = iota
	ZoneTypeEditor
	ZoneTypeGroup
	ZoneTypeUser
	ZoneTypeDashboard
)

var zoneTypeNames = map[ZoneType]string{
	ZoneTypeNone:      "none",
	ZoneTypeEditor:    "editor",
	ZoneTypeGroup:     "group",
	ZoneTypeUser:      "user",
	ZoneTypeDashboard: "dashboard",
}

func (t ZoneType) String() string {
	if name, ok := zoneTypeNames[t]; ok {
		return name
	}
	return "none"
}

// ParseZoneType converts a zone type name (case-insensitive) into a ZoneType.
// An empty string maps to ZoneTypeNone.
func ParseZoneType(s string) (ZoneType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ZoneTypeNone, nil
	}
	for t, name := range zoneTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ZoneTypeNone, fmt.Errorf("unknown zone type %q", s)
}

func (t ZoneType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ZoneType) UnmarshalText(text []byte) error {
	parsed, err := ParseZoneType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TemplateScope tags which kind of page a template serves. Clipboard slots are keyed by it.
type TemplateScope int

const (
	ScopeUnknown TemplateScope = iota
	ScopePortal
	ScopeDashboard
	ScopeUI
)

var scopeNames = map[TemplateScope]string{
	ScopeUnknown:   "unknown",
	ScopePortal:    "portal",
	ScopeDashboard: "dashboard",
	ScopeUI:        "ui",
}

func (s TemplateScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseTemplateScope converts a scope name into a TemplateScope. Unrecognized names map to ScopeUnknown.
func ParseTemplateScope(s string) TemplateScope {
	s = strings.ToLower(strings.TrimSpace(s))
	for scope, name := range scopeNames {
		if name == s {
			return scope
		}
	}
	return ScopeUnknown
}

func (s TemplateScope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TemplateScope) UnmarshalText(text []byte) error {
	*s = ParseTemplateScope(string(text))
	return nil
}

// Position is a freeform (absolute) placement of a web part inside its zone.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Properties is the string-typed property bag of a web part or variant.
// Values are stored exactly as received; consumers coerce types.
type Properties map[string]string

// Get returns the value for key or an empty string.
func (p Properties) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Clone returns an independent copy of the bag.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into p, overwriting existing keys.
func (p Properties) Merge(other Properties) {
	for k, v := range other {
		p[k] = v
	}
}

// SetLine treats the current value of key as a newline-delimited list and
// replaces the 1-based line. Missing lines are padded with empty strings.
// A line of zero or less overwrites the whole value.
func (p Properties) SetLine(key, value string, line int) {
	if line <= 0 {
		p[key] = value
		return
	}
	lines := strings.Split(p[key], "\n")
	for len(lines) < line {
		lines = append(lines, "")
	}
	lines[line-1] = value
	p[key] = strings.Join(lines, "\n")
}

// AddInt parses the current value as an integer (0 when unparsable), adds
// delta and stores the result. It returns the new value.
func (p Properties) AddInt(key string, delta int) int {
	current, err := strconv.Atoi(strings.TrimSpace(p[key]))
	if err != nil {
		current = 0
	}
	current += delta
	p[key] = strconv.Itoa(current)
	return current
}
