package dispatcher

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"go-page-designer/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadOf(fields ...string) string {
	return strings.Join(fields, "\n")
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
	}{
		{
			name:    "move with every extra",
			payload: payloadOf(CmdMoveWebPart, "zoneA", "text", "/home", "", "zoneB", "2", "0", "3", "10", "20"),
			want: Command{
				Name: CmdMoveWebPart, ZoneID: "zoneA", ControlID: "text", AliasPath: "/home",
				TargetZoneID: "zoneB", Index: 2, TargetVariantID: 3,
				Position: &model.Position{X: 10, Y: 20},
			},
		},
		{
			name:    "move with defaults",
			payload: payloadOf(CmdMoveWebPart, "zoneA", "text", "/home", "", "zoneB"),
			want: Command{
				Name: CmdMoveWebPart, ZoneID: "zoneA", ControlID: "text", AliasPath: "/home",
				TargetZoneID: "zoneB", Index: -1,
			},
		},
		{
			name:    "move all",
			payload: payloadOf(CmdMoveAllWebParts, "zoneA", "", "/home", "", "zoneB", "1", "2"),
			want: Command{
				Name: CmdMoveAllWebParts, ZoneID: "zoneA", AliasPath: "/home",
				TargetZoneID: "zoneB", SourceVariantID: 1, TargetVariantID: 2, Index: -1,
			},
		},
		{
			name:    "add widget with values",
			payload: payloadOf(CmdAddWidget, "zoneB", "", "/home", "", "10", "0", "0", "true", "", "", "text=hello%20world", "broken", "=x"),
			want: Command{
				Name: CmdAddWidget, ZoneID: "zoneB", AliasPath: "/home",
				CatalogID: 10, Index: 0, LayoutZone: true,
				Values: map[string]string{"text": "hello world"},
			},
		},
		{
			name:    "set property with escaped value",
			payload: payloadOf(CmdSetProperty, "zoneA", "text", "/home", "", "content", "a%0Ab", "2", "5"),
			want: Command{
				Name: CmdSetProperty, ZoneID: "zoneA", ControlID: "text", AliasPath: "/home",
				Key: "content", Value: "a\nb", LineHint: 2, WebPartVariantID: 5, Index: -1,
			},
		},
		{
			name:    "add to property",
			payload: payloadOf(CmdAddToProperty, "zoneA", "text", "/home", "", "views", "-3"),
			want: Command{
				Name: CmdAddToProperty, ZoneID: "zoneA", ControlID: "text", AliasPath: "/home",
				Key: "views", Delta: -3, Index: -1,
			},
		},
		{
			name:    "zone variant extra",
			payload: payloadOf(CmdRemoveWebPart, "zoneA", "text", "/home", "5e0b6a47-6c0f-4b8e-9f2e-4e8e4f9d1a11", "4"),
			want: Command{
				Name: CmdRemoveWebPart, ZoneID: "zoneA", ControlID: "text", AliasPath: "/home",
				GUID: "5e0b6a47-6c0f-4b8e-9f2e-4e8e4f9d1a11", VariantID: 4, Index: -1,
			},
		},
		{
			name:    "windows line endings",
			payload: "clone-template\r\n\r\n\r\n/home",
			want:    Command{Name: CmdCloneTemplate, AliasPath: "/home", Index: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCallback(tt.payload)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCallback() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCallback_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", "", ErrMalformedPayload},
		{"unknown command", payloadOf("explode", "zoneA"), ErrUnknownCommand},
		{"bad index", payloadOf(CmdMoveWebPart, "zoneA", "text", "/home", "", "zoneB", "two"), ErrMalformedPayload},
		{"bad layout flag", payloadOf(CmdAddWebPart, "zoneA", "", "/home", "", "1", "0", "0", "maybe"), ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCallback(tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCommand_Validate(t *testing.T) {
	valid := Command{Name: CmdRemoveWebPart, AliasPath: "/home", Index: -1}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		cmd    Command
		fields []string
	}{
		{"missing alias", Command{Name: CmdRemoveWebPart, Index: -1}, []string{"aliaspath"}},
		{"add without catalog id", Command{Name: CmdAddWebPart, AliasPath: "/home", Index: -1}, []string{"catalogid"}},
		{"add widget without catalog id", Command{Name: CmdAddWidget, AliasPath: "/home", Index: -1, CatalogID: 0}, []string{"catalogid"}},
		{"set without key", Command{Name: CmdSetProperty, AliasPath: "/home", Index: -1}, []string{"key"}},
		{"negative variant", Command{Name: CmdRemoveWebPart, AliasPath: "/home", VariantID: -2, Index: -1}, []string{"variantid"}},
		{"index below -1", Command{Name: CmdMoveWebPart, AliasPath: "/home", Index: -7}, []string{"index"}},
		{"unknown name", Command{Name: "explode", AliasPath: "/home", Index: -1}, []string{"name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			var argErr ArgumentError
			require.True(t, errors.As(err, &argErr), "want ArgumentError, got %v", err)
			var fields []string
			for _, fe := range argErr {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}

	err := Command{Name: "explode", AliasPath: "/home"}.Validate()
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCommandFromForm(t *testing.T) {
	form := url.Values{
		FormCommand:    {CmdAddWebPart},
		FormZoneID:     {"zoneA"},
		FormAliasPath:  {"/home"},
		FormCatalogID:  {"1"},
		FormIndex:      {"0"},
		FormLayoutZone: {"true"},
		FormX:          {"5"},
		"prop.text":    {"hi"},
		"prop.":        {"ignored"},
		"prop.title":   {"Title"},
	}
	cmd, err := CommandFromForm(form)
	require.NoError(t, err)
	want := Command{
		Name: CmdAddWebPart, ZoneID: "zoneA", AliasPath: "/home",
		CatalogID: 1, Index: 0, LayoutZone: true,
		Position: &model.Position{X: 5},
		Values:   map[string]string{"text": "hi", "title": "Title"},
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("CommandFromForm() mismatch (-want +got):\n%s", diff)
	}

	_, err = CommandFromForm(url.Values{FormCommand: {CmdRemoveWebPart}, FormIndex: {"x"}})
	assert.ErrorIs(t, err, ErrMalformedPayload)
	_, err = CommandFromForm(url.Values{})
	assert.ErrorIs(t, err, ErrMalformedPayload)
	_, err = CommandFromForm(url.Values{FormCommand: {"explode"}})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestResponse_EncodeParse(t *testing.T) {
	tests := []struct {
		resp  Response
		token string
	}{
		{ok(), "ok"},
		{refresh(), "refresh"},
		{unauthorized(), "unauthorized"},
		{Response{Status: StatusChanged}, "changed"},
		{failure("boom"), "error\x1fboom"},
		{conflict("variants"), "error-refresh\x1fvariants"},
		{updateIDs([]string{"zoneA_text", "zoneB_text"}), "update-ids\x1fzoneA_text\x1fzoneB_text"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.token, tt.resp.Encode())
			parsed, err := ParseResponse(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.resp, parsed)
		})
	}

	// Messages cannot smuggle extra fields.
	assert.Equal(t, "error\x1fa b", failure("a\x1fb").Encode())

	for _, bad := range []string{"nope", "ok\x1fextra", "error", "update-ids\x1fonly-one"} {
		_, err := ParseResponse(bad)
		assert.ErrorIs(t, err, ErrMalformedPayload, bad)
	}
}
