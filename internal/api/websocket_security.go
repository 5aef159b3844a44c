package api

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/termdoc/internal/logging"
)

// isOriginAllowed checks if the origin is in the allowed list. Entries may
// be exact origins, "*" or "*.example.com" for any subdomain.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", origin == allowed:
			return true
		case strings.HasPrefix(allowed, "*."):
			u, err := url.Parse(origin)
			if err == nil && strings.HasSuffix(u.Hostname(), allowed[1:]) {
				return true
			}
		}
	}
	return false
}

// checkOrigin builds the upgrader's CheckOrigin. Clients that send no
// Origin (non-browser tools) are accepted. With no configured origins only
// same-host pages may connect.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		var ok bool
		if len(allowedOrigins) == 0 {
			u, err := url.Parse(origin)
			ok = err == nil && strings.EqualFold(u.Host, r.Host)
		} else {
			ok = isOriginAllowed(origin, allowedOrigins)
		}
		if !ok {
			logging.SecurityEvent("origin_rejected", "session",
				"origin", origin,
				"remote_addr", getClientIP(r))
		}
		return ok
	}
}

// apiKeyFrom reads the key from X-API-Key, falling back to the api_key
// query parameter since browsers cannot set headers on websocket requests.
func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

// Registry tracks open live editing sessions.
type Registry struct {
	mu    sync.Mutex
	max   int
	conns map[string]*websocket.Conn
}

// NewRegistry creates a registry admitting at most max sessions.
func NewRegistry(max int) *Registry {
	return &Registry{max: max, conns: make(map[string]*websocket.Conn)}
}

// Reserve claims a slot for id before the upgrade. It fails when the
// registry is full.
func (r *Registry) Reserve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) >= r.max {
		return false
	}
	r.conns[id] = nil
	return true
}

// Attach records the connection for a reserved id.
func (r *Registry) Attach(id string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		r.conns[id] = conn
	}
}

// Release frees id's slot and returns the number of sessions left.
func (r *Registry) Release(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	return len(r.conns)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll sends a going-away close to every attached connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn == nil {
			continue
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
