package main

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/config"
	"go-page-designer/internal/model"
	"go-page-designer/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, enabled bool) (*adminApplication, storage.DataStore) {
	t.Helper()
	store, err := storage.NewJSONStore(t.TempDir(), nil)
	require.NoError(t, err)
	cat, err := catalog.New(
		[]*catalog.WebPartInfo{{ID: 1, Name: "text"}},
		[]*catalog.WidgetInfo{{ID: 10, Name: "poll", WebPartID: 1, ForUser: true}},
	)
	require.NoError(t, err)

	cfg := &config.Config{
		Clipboard: config.ClipboardConfig{TTL: time.Hour},
		Designer:  config.DesignerConfig{Enabled: enabled},
		Security: config.SecurityConfig{Users: []config.UserConfig{
			{ID: 1, UserName: "designer", Privilege: "globaladmin"},
			{ID: 2, UserName: "member"},
		}},
	}
	app, err := newAdminApplication(cfg, store, cat, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	tpl, err := app.templates.CreateTemplate(context.Background(), "home", "Home", model.ScopeUnknown, "/home")
	require.NoError(t, err)
	zoneA := tpl.EnsureZone("zoneA")
	zoneA.ZoneType = model.ZoneTypeUser
	zoneA.Insert(&model.WebPartInstance{
		ControlID:    "text",
		InstanceGUID: uuid.New(),
		WebPartType:  "text",
		CatalogID:    1,
		Properties:   model.Properties{"text": "hi"},
	}, -1)
	tpl.EnsureZone("zoneB").ZoneType = model.ZoneTypeUser
	require.NoError(t, store.SaveTemplate(tpl))
	return app, store
}

func callback(t *testing.T, h http.Handler, user, payload string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/designer/callback?mode=userwidgets", strings.NewReader(payload))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

func loadHome(t *testing.T, store storage.DataStore) *model.TemplateInstance {
	t.Helper()
	tpl, err := store.LoadTemplate("home")
	require.NoError(t, err)
	return tpl
}

func TestCallback_Move(t *testing.T) {
	app, store := newTestApp(t, true)
	h := app.routes()

	token := callback(t, h, "member", "move-web-part\nzoneA\ntext\n/home\n\nzoneB")
	assert.Equal(t, "ok", token)

	tpl := loadHome(t, store)
	assert.Empty(t, tpl.GetZone("zoneA", 0).WebParts)
	require.Len(t, tpl.GetZone("zoneB", 0).WebParts, 1)
	assert.Equal(t, "text", tpl.GetZone("zoneB", 0).WebParts[0].ControlID)
}

func TestCallback_AnonymousChangesNothing(t *testing.T) {
	app, store := newTestApp(t, true)

	token := callback(t, app.routes(), "", "remove-web-part\nzoneA\ntext\n/home")
	assert.Equal(t, "ok", token)
	tpl := loadHome(t, store)
	assert.Len(t, tpl.GetZone("zoneA", 0).WebParts, 1)
	assert.Zero(t, tpl.Revision)
}

func TestCallback_Disabled(t *testing.T) {
	app, _ := newTestApp(t, false)
	assert.Equal(t, "unauthorized", callback(t, app.routes(), "designer", "remove-web-part\nzoneA\ntext\n/home"))
}

func TestCallback_Malformed(t *testing.T) {
	app, _ := newTestApp(t, true)
	token := callback(t, app.routes(), "member", "explode\nzoneA")
	assert.True(t, strings.HasPrefix(token, "error\x1f"), token)
}

func TestTemplateJSON(t *testing.T) {
	app, _ := newTestApp(t, true)
	h := app.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/designer/templates/home", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		ID        string `json:"id"`
		AliasPath string `json:"aliasPath"`
		Zones     []struct {
			ID       string `json:"id"`
			WebParts []struct {
				ControlID string `json:"controlId"`
			} `json:"webParts"`
		} `json:"zones"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "home", got.ID)
	assert.Equal(t, "/home", got.AliasPath)
	require.Len(t, got.Zones, 2)
	assert.Equal(t, "text", got.Zones[0].WebParts[0].ControlID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/designer/templates/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestPostback(t *testing.T) {
	app, store := newTestApp(t, true)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	post := func(form url.Values) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/designer/postback", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(UserHeader, "designer")
		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	form := url.Values{
		"mode":      {"design"},
		"command":   {"remove-web-part"},
		"aliasPath": {"/home"},
		"zoneId":    {"zoneA"},
		"controlId": {"text"},
	}

	// Without a token the form is refused.
	resp := post(form)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Len(t, loadHome(t, store).GetZone("zoneA", 0).WebParts, 1)

	page, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(page.Body)
	page.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(body), "<code>home</code>")
	m := csrfField.FindStringSubmatch(string(body))
	require.Len(t, m, 2, "dashboard renders a CSRF token")

	form.Set("csrf_token", html.UnescapeString(m[1]))
	resp = post(form)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, loadHome(t, store).GetZone("zoneA", 0).WebParts)

	// A bad field renders the message page.
	form.Set("index", "first")
	resp = post(form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSurfaceSocket(t *testing.T) {
	app, store := newTestApp(t, true)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/designer/ws?mode=userwidgets&alias=/home"
	dial := func() *websocket.Conn {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{UserHeader: {"member"}})
		require.NoError(t, err)
		resp.Body.Close()
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	read := func(conn *websocket.Conn) string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return string(data)
	}

	watcher := dial()
	actor := dial()
	// A reply proves the watcher is registered.
	require.NoError(t, watcher.WriteMessage(websocket.TextMessage, []byte("remove-web-part\nzoneA\nmissing\n/home")))
	require.Equal(t, "ok", read(watcher))

	require.NoError(t, actor.WriteMessage(websocket.TextMessage, []byte("minimize-widget\nzoneA\ntext\n/home")))
	assert.Equal(t, "ok", read(actor))
	assert.Equal(t, "refresh", read(watcher))
	assert.True(t, loadHome(t, store).GetZone("zoneA", 0).WebParts[0].Minimized)

	// Partial edits only tell other surfaces that the template changed.
	require.NoError(t, actor.WriteMessage(websocket.TextMessage, []byte("move-web-part\nzoneA\ntext\n/home\n\nzoneB")))
	assert.Equal(t, "ok", read(actor))
	assert.Equal(t, "changed", read(watcher))
	assert.Len(t, loadHome(t, store).GetZone("zoneB", 0).WebParts, 1)
}
