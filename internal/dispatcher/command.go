package dispatcher

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go-page-designer/internal/model"

	"github.com/go-playground/validator/v10"
)

// Channel is the transport a command arrived on. Only the response encoding
// differs between channels.
type Channel int

const (
	// ChannelFullReload is the form postback channel; success reloads the page.
	ChannelFullReload Channel = iota
	// ChannelPartial is the asynchronous channel answering with status tokens.
	ChannelPartial
)

func (c Channel) String() string {
	if c == ChannelFullReload {
		return "full-reload"
	}
	return "partial"
}

// Command names understood by both channels.
const (
	CmdMoveWebPart        = "move-web-part"
	CmdRemoveWebPart      = "remove-web-part"
	CmdRemoveAllWebParts  = "remove-all-web-parts"
	CmdMoveAllWebParts    = "move-all-web-parts"
	CmdMoveWebPartUp      = "move-web-part-up"
	CmdMoveWebPartDown    = "move-web-part-down"
	CmdMoveWebPartTop     = "move-web-part-top"
	CmdMoveWebPartBottom  = "move-web-part-bottom"
	CmdCloneWebPart       = "clone-web-part"
	CmdCloneTemplate      = "clone-template"
	CmdAddWebPart         = "add-web-part-without-dialog"
	CmdAddWidget          = "add-widget-without-dialog"
	CmdCopyWebPart        = "copy-web-part"
	CmdPasteWebPart       = "paste-web-part"
	CmdSetProperty        = "set-web-part-property"
	CmdAddToProperty      = "add-to-web-part-property"
	CmdMinimizeWidget     = "minimize-widget"
	CmdMaximizeWidget     = "maximize-widget"
	payloadFieldSeparator = "\n"
)

var knownCommands = map[string]struct{}{
	CmdMoveWebPart: {}, CmdRemoveWebPart: {}, CmdRemoveAllWebParts: {}, CmdMoveAllWebParts: {},
	CmdMoveWebPartUp: {}, CmdMoveWebPartDown: {}, CmdMoveWebPartTop: {}, CmdMoveWebPartBottom: {},
	CmdCloneWebPart: {}, CmdCloneTemplate: {}, CmdAddWebPart: {}, CmdAddWidget: {},
	CmdCopyWebPart: {}, CmdPasteWebPart: {}, CmdSetProperty: {}, CmdAddToProperty: {},
	CmdMinimizeWidget: {}, CmdMaximizeWidget: {},
}

// IsKnownCommand reports whether name is a command of the designer protocol.
func IsKnownCommand(name string) bool {
	_, ok := knownCommands[name]
	return ok
}

// KnownCommands lists every command name in sorted order.
func KnownCommands() []string {
	names := make([]string, 0, len(knownCommands))
	for name := range knownCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	// ErrUnknownCommand is returned for a command name outside the protocol.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedPayload is returned when a payload field cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Command is one decoded designer command. Fields not used by a command keep
// their zero values, except indexes which default to -1.
type Command struct {
	Name      string `validate:"required,designer_command"`
	ZoneID    string
	ControlID string
	AliasPath string `validate:"required"`
	GUID      string

	// Zone variant of the addressed zone.
	VariantID int `validate:"gte=0"`

	// Move.
	TargetZoneID    string
	SourceVariantID int `validate:"gte=0"`
	TargetVariantID int `validate:"gte=0"`
	Index           int `validate:"gte=-1"`
	Position        *model.Position

	// Add.
	CatalogID  int `validate:"required_if=Name add-web-part-without-dialog,required_if=Name add-widget-without-dialog,gte=0"`
	LayoutZone bool
	Values     map[string]string

	// Properties.
	Key              string `validate:"required_if=Name set-web-part-property,required_if=Name add-to-web-part-property"`
	Value            string
	LineHint         int
	WebPartVariantID int `validate:"gte=0"`
	Delta            int
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("designer_command", func(fl validator.FieldLevel) bool {
		return IsKnownCommand(fl.Field().String())
	})
	return v
}

// FieldError describes one invalid command argument.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ArgumentError lists every invalid argument of a command.
type ArgumentError []FieldError

func (e ArgumentError) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "invalid command arguments: " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrUnknownCommand) hold when the command name was rejected.
func (e ArgumentError) Is(target error) bool {
	if target != ErrUnknownCommand {
		return false
	}
	for _, fe := range e {
		if fe.Field == "name" {
			return true
		}
	}
	return false
}

// Validate checks the command arguments.
func (c Command) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := make(ArgumentError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		var msg string
		switch fe.Tag() {
		case "required", "required_if":
			msg = "is required"
		case "designer_command":
			msg = fmt.Sprintf("%q is not a designer command", fe.Value())
		case "gte":
			msg = fmt.Sprintf("must be at least %s", fe.Param())
		default:
			msg = "is invalid"
		}
		out = append(out, FieldError{Field: strings.ToLower(fe.Field()), Message: msg})
	}
	return out
}

// payload reads positional fields of a partial channel payload.
type payload struct {
	fields []string
	err    error
}

func (p *payload) str(i int) string {
	if i < len(p.fields) {
		return p.fields[i]
	}
	return ""
}

func (p *payload) num(i int, def int) int {
	s := strings.TrimSpace(p.str(i))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %d %q is not a number: %w", i, s, ErrMalformedPayload)
	}
	return n
}

func (p *payload) flag(i int) bool {
	s := strings.TrimSpace(p.str(i))
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %d %q is not a boolean: %w", i, s, ErrMalformedPayload)
	}
	return b
}

// position returns nil unless at least one coordinate is present.
func (p *payload) position(xi, yi int) *model.Position {
	if strings.TrimSpace(p.str(xi)) == "" && strings.TrimSpace(p.str(yi)) == "" {
		return nil
	}
	return &model.Position{X: p.num(xi, 0), Y: p.num(yi, 0)}
}

// ParseCallback decodes a partial channel payload:
//
//	[0] command [1] zone id [2] control id [3] alias path [4] guid [5...] extras
//
// Missing trailing fields take their defaults (index -1, variant 0, no position).
func ParseCallback(raw string) (Command, error) {
	raw = strings.ReplaceAll(raw, "\r\n", payloadFieldSeparator)
	p := &payload{fields: strings.Split(raw, payloadFieldSeparator)}

	cmd := Command{
		Name:      strings.TrimSpace(p.str(0)),
		ZoneID:    p.str(1),
		ControlID: p.str(2),
		AliasPath: p.str(3),
		GUID:      p.str(4),
		Index:     -1,
	}
	if cmd.Name == "" {
		return Command{}, fmt.Errorf("empty command: %w", ErrMalformedPayload)
	}
	if !IsKnownCommand(cmd.Name) {
		return Command{}, fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
	}

	switch cmd.Name {
	case CmdMoveWebPart:
		cmd.TargetZoneID = p.str(5)
		cmd.Index = p.num(6, -1)
		cmd.SourceVariantID = p.num(7, 0)
		cmd.TargetVariantID = p.num(8, 0)
		cmd.Position = p.position(9, 10)
	case CmdMoveAllWebParts:
		cmd.TargetZoneID = p.str(5)
		cmd.SourceVariantID = p.num(6, 0)
		cmd.TargetVariantID = p.num(7, 0)
	case CmdAddWebPart, CmdAddWidget:
		cmd.CatalogID = p.num(5, 0)
		cmd.Index = p.num(6, -1)
		cmd.VariantID = p.num(7, 0)
		cmd.LayoutZone = p.flag(8)
		cmd.Position = p.position(9, 10)
		for _, pair := range p.fields[min(len(p.fields), 11):] {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				continue
			}
			if cmd.Values == nil {
				cmd.Values = make(map[string]string)
			}
			cmd.Values[key] = unescape(value)
		}
	case CmdSetProperty:
		cmd.Key = p.str(5)
		cmd.Value = unescape(p.str(6))
		cmd.LineHint = p.num(7, 0)
		cmd.WebPartVariantID = p.num(8, 0)
		cmd.VariantID = p.num(9, 0)
	case CmdAddToProperty:
		cmd.Key = p.str(5)
		cmd.Delta = p.num(6, 0)
		cmd.VariantID = p.num(7, 0)
	default:
		cmd.VariantID = p.num(5, 0)
	}
	if p.err != nil {
		return Command{}, p.err
	}
	return cmd, nil
}

// unescape decodes a query-escaped value, keeping the raw text when it is not valid escaping.
func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// Form field names of the full postback channel.
const (
	FormCommand          = "command"
	FormZoneID           = "zoneId"
	FormControlID        = "controlId"
	FormAliasPath        = "aliasPath"
	FormGUID             = "guid"
	FormVariantID        = "variantId"
	FormTargetZoneID     = "targetZoneId"
	FormIndex            = "index"
	FormSourceVariantID  = "sourceVariantId"
	FormTargetVariantID  = "targetVariantId"
	FormX                = "x"
	FormY                = "y"
	FormCatalogID        = "catalogId"
	FormLayoutZone       = "layoutZone"
	FormKey              = "key"
	FormValue            = "value"
	FormLineHint         = "lineHint"
	FormWebPartVariantID = "webPartVariantId"
	FormDelta            = "delta"
	// FormValuePrefix prefixes initial property values of added web parts, e.g. "prop.text".
	FormValuePrefix = "prop."
)

// CommandFromForm decodes a full postback form into a Command.
func CommandFromForm(form url.Values) (Command, error) {
	var perr error
	num := func(key string, def int) int {
		s := strings.TrimSpace(form.Get(key))
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil && perr == nil {
			perr = fmt.Errorf("form field %s %q is not a number: %w", key, s, ErrMalformedPayload)
		}
		return n
	}

	cmd := Command{
		Name:             strings.TrimSpace(form.Get(FormCommand)),
		ZoneID:           form.Get(FormZoneID),
		ControlID:        form.Get(FormControlID),
		AliasPath:        form.Get(FormAliasPath),
		GUID:             form.Get(FormGUID),
		VariantID:        num(FormVariantID, 0),
		TargetZoneID:     form.Get(FormTargetZoneID),
		Index:            num(FormIndex, -1),
		SourceVariantID:  num(FormSourceVariantID, 0),
		TargetVariantID:  num(FormTargetVariantID, 0),
		CatalogID:        num(FormCatalogID, 0),
		Key:              form.Get(FormKey),
		Value:            form.Get(FormValue),
		LineHint:         num(FormLineHint, 0),
		WebPartVariantID: num(FormWebPartVariantID, 0),
		Delta:            num(FormDelta, 0),
	}
	if form.Get(FormX) != "" || form.Get(FormY) != "" {
		cmd.Position = &model.Position{X: num(FormX, 0), Y: num(FormY, 0)}
	}
	if s := form.Get(FormLayoutZone); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil && perr == nil {
			perr = fmt.Errorf("form field %s %q is not a boolean: %w", FormLayoutZone, s, ErrMalformedPayload)
		}
		cmd.LayoutZone = b
	}
	for key, values := range form {
		if name, ok := strings.CutPrefix(key, FormValuePrefix); ok && name != "" && len(values) > 0 {
			if cmd.Values == nil {
				cmd.Values = make(map[string]string)
			}
			cmd.Values[name] = values[0]
		}
	}
	if perr != nil {
		return Command{}, perr
	}
	if cmd.Name == "" {
		return Command{}, fmt.Errorf("missing %s field: %w", FormCommand, ErrMalformedPayload)
	}
	if !IsKnownCommand(cmd.Name) {
		return Command{}, fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
	}
	return cmd, nil
}
