package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go-page-designer/internal/ctxlog"
	"go-page-designer/internal/dispatcher"
	"go-page-designer/internal/model"
	"go-page-designer/internal/security"
	"go-page-designer/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	// UserHeader names the user of a request. Authentication happens in front
	// of the designer; this server trusts the header.
	UserHeader    = "X-Designer-User"
	sessionCookie = "designer_session"

	maxPayloadBytes = 64 << 10
)

// TemplateSummary is one row of the dashboard.
type TemplateSummary struct {
	ID       string
	Name     string
	Scope    string
	Revision int64
	Zones    int
	WebParts int
}

// DashboardPageData holds the page data of the dashboard template.
type DashboardPageData struct {
	Templates []TemplateSummary
	Commands  []string
	User      string
	Error     string
}

// designerRequest identifies the caller: the configured user named by
// UserHeader (anonymous otherwise) and the clipboard session from a cookie,
// minted on first use.
func (app *adminApplication) designerRequest(w http.ResponseWriter, r *http.Request, mode string) dispatcher.Request {
	user, ok := app.security.Lookup(r.Header.Get(UserHeader))
	if !ok {
		user = security.User{}
	}

	var sessionID string
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		sessionID = c.Value
	} else {
		sessionID = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return dispatcher.Request{User: user, Mode: security.ParseViewMode(mode), SessionID: sessionID}
}

// dashboardHandler serves the template list with the design postback form.
func (app *adminApplication) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	log := ctxlog.FromContext(r.Context(), app.logger)
	data := app.newTemplateData(r)

	page := DashboardPageData{
		Commands: dispatcher.KnownCommands(),
		User:     r.Header.Get(UserHeader),
	}
	templates, err := app.templates.ListTemplates(r.Context())
	if err != nil {
		log.Error("Failed to read templates from store", "error", err)
		page.Error = "Failed to load template list."
	}
	for _, t := range templates {
		page.Templates = append(page.Templates, TemplateSummary{
			ID:       t.ID,
			Name:     t.Name,
			Scope:    t.Scope.String(),
			Revision: t.Revision,
			Zones:    len(t.Zones),
			WebParts: len(t.AllWebParts()),
		})
	}
	data["Page"] = page

	app.render(w, r, http.StatusOK, "dashboard.html", data)
}

// postbackHandler runs a full postback command from the design form.
func (app *adminApplication) postbackHandler(w http.ResponseWriter, r *http.Request) {
	log := ctxlog.FromContext(r.Context(), app.logger)
	if err := r.ParseForm(); err != nil {
		log.Warn("Failed to parse postback form", "error", err)
		app.renderMessage(w, r, http.StatusBadRequest, "Bad Request")
		return
	}
	cmd, err := dispatcher.CommandFromForm(r.PostForm)
	if err != nil {
		log.Warn("Rejected postback", "error", err)
		app.renderMessage(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := app.designerRequest(w, r, r.PostForm.Get("mode"))
	resp := app.designer.HandlePostback(r.Context(), req, cmd)
	switch resp.Status {
	case dispatcher.StatusOK, dispatcher.StatusRefresh, dispatcher.StatusUpdateIDs:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case dispatcher.StatusUnauthorized:
		app.renderMessage(w, r, http.StatusForbidden, "The designer is disabled.")
	case dispatcher.StatusErrorRefresh:
		app.renderMessage(w, r, http.StatusConflict, resp.Message)
	default:
		app.renderMessage(w, r, http.StatusUnprocessableEntity, resp.Message)
	}
}

// callbackHandler runs one partial channel payload and answers with its status token.
func (app *adminApplication) callbackHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		ctxlog.FromContext(r.Context(), app.logger).Warn("Failed to read callback payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	req := app.designerRequest(w, r, r.URL.Query().Get("mode"))
	token := app.designer.HandleCallback(r.Context(), req, string(body))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, token)
}

// templateJSONHandler returns the template bound to a page alias path.
func (app *adminApplication) templateJSONHandler(w http.ResponseWriter, r *http.Request) {
	aliasPath := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	t, err := app.templates.LoadTemplateForEditing(r.Context(), aliasPath)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		ctxlog.FromContext(r.Context(), app.logger).Error("Failed to load template", "aliasPath", aliasPath, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, templateView{TemplateInstance: t, AliasPath: aliasPath, LoadedAt: time.Now().UTC()})
}

type templateView struct {
	*model.TemplateInstance
	AliasPath string    `json:"aliasPath"`
	LoadedAt  time.Time `json:"loadedAt"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (app *adminApplication) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	ts, ok := app.templateCache[page]
	if !ok {
		ctxlog.FromContext(r.Context(), app.logger).Error("Template not found in cache", "page", page)
		http.Error(w, "Internal Server Error - Template not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := ts.ExecuteTemplate(w, "layout.html", data); err != nil {
		ctxlog.FromContext(r.Context(), app.logger).Error("Error executing layout template", "page", page, "error", err)
	}
}

func (app *adminApplication) renderMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := app.newTemplateData(r)
	data["Message"] = message
	data["Status"] = status
	app.render(w, r, status, "message.html", data)
}
