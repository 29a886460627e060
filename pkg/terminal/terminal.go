// Package terminal connects browser calculators to their sessions over a
// websocket.
package terminal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/programs"
	"github.com/antibyte/retrocalc/pkg/session"
	"github.com/antibyte/retrocalc/pkg/shared"
)

// ProgramSource looks up stored programs by name.
type ProgramSource interface {
	Get(ctx context.Context, name string) (*programs.Program, error)
}

// Handler serves session creation and the calculator websocket.
type Handler struct {
	sessions     *session.Manager
	programs     ProgramSource
	clients      *ClientManager
	upgrader     websocket.Upgrader
	tickInterval time.Duration
}

// NewHandler returns a handler for sessions. programs may be nil, in which
// case load requests fail and no default program is started.
func NewHandler(sessions *session.Manager, programs ProgramSource) *Handler {
	h := &Handler{
		sessions:     sessions,
		programs:     programs,
		clients:      NewClientManager(),
		tickInterval: getTickInterval(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return h
}

// checkOrigin accepts any origin unless [Network] allowed_origins lists them.
func checkOrigin(r *http.Request) bool {
	allowed := configuration.GetString("Network", "allowed_origins", "")
	if strings.TrimSpace(allowed) == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, a := range strings.Split(allowed, ",") {
		if strings.TrimSpace(a) == origin {
			return true
		}
	}
	logger.WebSocketWarn("websocket request from disallowed origin rejected: %q", origin)
	return false
}

// Register mounts the session and websocket routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/session", auth.WithCORS("POST, DELETE", h.HandleSession))
	mux.HandleFunc("/ws", auth.RequireSessionToken(h.HandleWebSocket))
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Program   string `json:"program,omitempty"`
}

// HandleSession creates (POST) or ends (DELETE) a calculator session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSession(w, r)
	case http.MethodDelete:
		auth.RequireSessionToken(h.endSession)(w, r)
	default:
		auth.RespondError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	ip := auth.ClientIP(r)
	limit := configuration.GetInt("Network", "max_session_requests_per_minute", 10)
	if !h.clients.Allow("session", ip, limit, time.Minute) {
		auth.RespondError(w, "too many session requests", http.StatusTooManyRequests)
		return
	}

	s, err := h.sessions.Create(ip)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			auth.RespondError(w, "server is full, try again later", http.StatusServiceUnavailable)
			return
		}
		logger.SessionInfo("session creation failed for %s: %v", ip, err)
		auth.RespondError(w, "could not create session", http.StatusInternalServerError)
		return
	}
	token, err := auth.GenerateSessionToken(s.ID)
	if err != nil {
		h.sessions.Remove(s.ID)
		logger.AuthError("token generation failed: %v", err)
		auth.RespondError(w, "could not create session", http.StatusInternalServerError)
		return
	}

	resp := sessionResponse{Success: true, SessionID: s.ID, Token: token}
	resp.Program = h.startDefaultProgram(r.Context(), s)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	auth.RespondJSON(w, http.StatusCreated, resp)
}

// startDefaultProgram loads [Calculator] default_program into a new
// session and returns its name, or "" if nothing was loaded.
func (h *Handler) startDefaultProgram(ctx context.Context, s *session.Session) string {
	name := configuration.GetString("Calculator", "default_program", "KEYDEMO")
	if name == "" || h.programs == nil {
		return ""
	}
	p, err := h.programs.Get(ctx, name)
	if err != nil {
		logger.SessionInfo("default program %s unavailable: %v", name, err)
		return ""
	}
	if err := s.Calc.Load(p.Name, p.Source); err != nil {
		logger.SessionInfo("default program %s rejected: %v", name, err)
		return ""
	}
	return p.Name
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if c, ok := h.clients.GetClient(claims.SessionID); ok {
		c.close()
	}
	if !h.sessions.Remove(claims.SessionID) {
		auth.RespondError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocket upgrades a request carrying a valid session token and
// attaches it to the session's calculator.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		auth.RespondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s, err := h.sessions.Get(claims.SessionID)
	if err != nil {
		logger.WebSocketInfo("websocket for unknown session %s rejected", claims.SessionID)
		auth.RespondError(w, "session expired", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketWarn("upgrade failed for %s: %v", auth.ClientIP(r), err)
		return
	}

	client := newClient(h, conn, s, auth.ClientIP(r))
	if previous := h.clients.AddClient(client); previous != nil {
		logger.WebSocketInfo("session %s reconnected, closing previous connection", s.ID)
		previous.close()
	}
	detach := s.Attach()
	logger.WebSocketInfo("client %s connected to session %s", client.ipAddress, s.ID)

	client.Send(shared.Message{Type: shared.MessageTypeSession, SessionID: s.ID})
	go client.writePump()
	go client.runClock(h.tickInterval)
	go client.readPump(detach)
}

// ClientCount returns the number of connected websockets.
func (h *Handler) ClientCount() int {
	return h.clients.GetClientCount()
}

// Close disconnects every websocket.
func (h *Handler) Close() {
	h.clients.CloseAll()
}

// PruneRateLimits forgets idle rate limit windows every interval until ctx
// is done.
func (h *Handler) PruneRateLimits(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.clients.PruneRequests(time.Minute)
		}
	}
}
