package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
)

type settings struct {
	mode   string
	header string
	key    string
}

// Guard enforces API key authentication on wrapped handlers.
type Guard struct {
	cur atomic.Pointer[settings]
}

// New creates a Guard with the given mode, header name, and expected key.
func New(mode, header, key string) *Guard {
	g := &Guard{}
	g.Update(mode, header, key)
	return g
}

// Update replaces the guard settings. Safe to call concurrently with requests.
func (g *Guard) Update(mode, header, key string) {
	g.cur.Store(&settings{mode: mode, header: header, key: key})
}

// Enabled reports whether requests are currently checked.
func (g *Guard) Enabled() bool {
	s := g.cur.Load()
	return s.mode == "apikey" && s.key != ""
}

// Middleware returns next wrapped with the API key check.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed (pass-through).
//   - Otherwise the value of the configured header must equal key.
//   - A missing, empty, or incorrect key returns 401.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := g.cur.Load()
		if s.mode != "apikey" || s.key == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(s.header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.key)) != 1 {
			slog.Warn("auth: rejected request",
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}

		next.ServeHTTP(w, r)
	})
}
