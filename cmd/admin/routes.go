package main

import (
	"net/http"
	"time"

	"go-page-designer/internal/ctxlog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/nosurf"
)

// routes sets up the HTTP router for the designer application.
func (app *adminApplication) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.requestLogger)

	// The websocket outlives any request timeout.
	r.Get("/api/designer/ws", app.surfaceSocketHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Form pages carry a CSRF token.
		r.Group(func(r chi.Router) {
			r.Use(app.csrf)
			r.Get("/", app.dashboardHandler)
			r.Post("/designer/postback", app.postbackHandler)
		})

		r.Post("/api/designer/callback", app.callbackHandler)
		r.Get("/api/designer/templates/*", app.templateJSONHandler)
	})

	return r
}

// requestLogger attaches a logger carrying the request id to the request context.
func (app *adminApplication) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := app.logger.With("requestID", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))
	})
}

func (app *adminApplication) csrf(next http.Handler) http.Handler {
	h := nosurf.New(next)
	h.SetBaseCookie(http.Cookie{HttpOnly: true, Path: "/", SameSite: http.SameSiteLaxMode})
	h.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(r.Context(), app.logger).Warn("CSRF check failed", "reason", nosurf.Reason(r))
		app.renderMessage(w, r, http.StatusForbidden, "The form has expired. Reload the page and try again.")
	}))
	return h
}
