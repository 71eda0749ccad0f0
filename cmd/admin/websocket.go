package main

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go-page-designer/internal/ctxlog"
	"go-page-designer/internal/dispatcher"
	"go-page-designer/internal/templatemanager"

	"github.com/gorilla/websocket"
)

const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// surfaceConn is one open design surface. Writes are serialized because
// replies and refresh pushes come from different goroutines.
type surfaceConn struct {
	conn       *websocket.Conn
	templateID string
	busy       atomic.Bool

	writeMu sync.Mutex
}

func (c *surfaceConn) send(token string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(token))
}

// surfaceHub tracks open design surfaces and tells them when the template
// they show was saved by someone else.
type surfaceHub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*surfaceConn]struct{}
}

func newSurfaceHub(logger *slog.Logger) *surfaceHub {
	return &surfaceHub{logger: logger, conns: make(map[*surfaceConn]struct{})}
}

func (h *surfaceHub) add(c *surfaceConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *surfaceHub) remove(c *surfaceConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// notify pushes a token to every surface watching the changed template:
// refresh when the save asked for a reload, changed after a partial edit. A
// surface that is running a command is skipped: the reply to its own command
// follows.
func (h *surfaceHub) notify(change templatemanager.Change) {
	h.mu.Lock()
	var targets []*surfaceConn
	for c := range h.conns {
		if c.templateID == change.TemplateID && !c.busy.Load() {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	status := dispatcher.StatusChanged
	if change.Refresh {
		status = dispatcher.StatusRefresh
	}
	token := dispatcher.Response{Status: status}.Encode()
	for _, c := range targets {
		if err := c.send(token); err != nil {
			h.logger.Debug("Failed to push template change", "templateID", change.TemplateID, "token", token, "error", err)
		}
	}
}

func (h *surfaceHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.conn.Close()
	}
}

// surfaceSocketHandler serves the partial channel over a websocket: every
// text message is one payload and is answered with one status token. With an
// alias query parameter the surface also receives refresh pushes for the
// template bound to that page.
func (app *adminApplication) surfaceSocketHandler(w http.ResponseWriter, r *http.Request) {
	log := ctxlog.FromContext(r.Context(), app.logger)
	req := app.designerRequest(w, r, r.URL.Query().Get("mode"))

	var templateID string
	if aliasPath := r.URL.Query().Get("alias"); aliasPath != "" {
		t, err := app.templates.LoadTemplateForEditing(r.Context(), aliasPath)
		if err != nil {
			log.Warn("Design surface watches unknown page", "aliasPath", aliasPath, "error", err)
		} else {
			templateID = t.ID
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxPayloadBytes)

	sc := &surfaceConn{conn: conn, templateID: templateID}
	app.surfaces.add(sc)
	defer app.surfaces.remove(sc)
	log.Info("Design surface connected", "remote", conn.RemoteAddr().String(), "templateID", templateID, "userID", req.User.ID)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket error", "error", err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		sc.busy.Store(true)
		token := app.designer.HandleCallback(r.Context(), req, string(data))
		sc.busy.Store(false)

		if err := sc.send(token); err != nil {
			log.Warn("Failed to send designer reply", "error", err)
			break
		}
	}
	log.Info("Design surface disconnected", "templateID", templateID)
}
