package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xrbridge/xrbridge/pkg/types"
	"github.com/xrbridge/xrbridge/server/internal/store"
)

// SessionCounter reports the number of open /ws sessions.
type SessionCounter interface {
	Count() int
}

// Options configures optional parts of the Handler.
type Options struct {
	// Auth wraps the mutating POST endpoints. Nil leaves them open.
	Auth func(http.Handler) http.Handler

	// Sessions feeds the session count in /health. Nil reports zero.
	Sessions SessionCounter

	// NotFound serves any path not matched by the API (e.g. a static UI).
	NotFound http.Handler
}

// Handler is the HTTP handler for the command and query endpoints.
// It reads and mutates relay state through the shared store.
type Handler struct {
	store    *store.Store
	sessions SessionCounter
	router   *mux.Router
}

// New creates a Handler wired to the given store and registers all routes.
func New(st *store.Store, opts Options) http.Handler {
	h := &Handler{store: st, sessions: opts.Sessions, router: mux.NewRouter()}

	// Queries.
	h.router.HandleFunc("/get_coordinates", h.getCoordinates).Methods(http.MethodGet)
	h.router.HandleFunc("/get_users_data", h.getUsersData).Methods(http.MethodGet)
	h.router.HandleFunc("/get_user", h.getUser).Methods(http.MethodGet)
	h.router.HandleFunc("/health", h.health).Methods(http.MethodGet)

	// Commands.
	guard := opts.Auth
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	commands := map[string]http.HandlerFunc{
		"/receive_coordinates": h.receiveCoordinates,
		"/update_button_index": h.updateButtonIndex,
		"/set_code":            h.setCode,
		"/press_button":        h.pressButton,
		"/trigger_haptic":      h.triggerHaptic,
		"/toggle_cue":          h.toggleCue,
	}
	for path, fn := range commands {
		h.router.Handle(path, guard(fn)).Methods(http.MethodPost)
	}

	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	if opts.NotFound != nil {
		h.router.NotFoundHandler = opts.NotFound
	} else {
		h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			jsonErr(w, http.StatusNotFound, "not found")
		})
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- query handlers ---------------------------------------------------------

// getCoordinates returns GET /get_coordinates.
func (h *Handler) getCoordinates(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Coordinates())
}

// getUsersData returns GET /get_users_data, the full user map.
func (h *Handler) getUsersData(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Users())
}

// getUser returns GET /get_user?id=<id>.
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.store.User(r.URL.Query().Get("id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "User not found")
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	seq := h.store.Sequences()
	resp := HealthResponse{
		Status:    "ok",
		Users:     h.store.UserCount(),
		ButtonSeq: seq.Button,
		HapticSeq: seq.Haptic,
		CueSeq:    seq.Cue,
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Count()
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- command handlers -------------------------------------------------------

// receiveCoordinates handles POST /receive_coordinates. An absent axis is 0.
func (h *Handler) receiveCoordinates(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		jsonResp(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	if len(raw) == 0 {
		jsonResp(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "Invalid JSON data"})
		return
	}

	x, err := floatField(raw, "x")
	if err != nil {
		jsonResp(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	y, err := floatField(raw, "y")
	if err != nil {
		jsonResp(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}

	h.store.SetCoordinates(x, y)
	slog.Debug("api: coordinates received", "x", x, "y", y)
	jsonResp(w, http.StatusOK, statusResponse{Status: "success"})
}

// updateButtonIndex handles POST /update_button_index. An absent index resets to -1.
func (h *Handler) updateButtonIndex(w http.ResponseWriter, r *http.Request) {
	var req buttonIndexRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonResp(w, http.StatusBadRequest, buttonIndexResponse{Success: false, Error: err.Error()})
		return
	}

	idx := types.NoButton
	if req.ButtonIndex != nil {
		idx = int(*req.ButtonIndex)
	}
	h.store.SetButtonIndex(idx)
	slog.Debug("api: button index updated", "index", idx)
	jsonResp(w, http.StatusOK, buttonIndexResponse{Success: true})
}

// setCode handles POST /set_code. Both codeX and codeY are required.
func (h *Handler) setCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CodeX == nil || req.CodeY == nil {
		jsonErr(w, http.StatusBadRequest, "codeX and codeY are required")
		return
	}

	code := types.CodePair{X: int(*req.CodeX), Y: int(*req.CodeY)}
	h.store.SetCode(code)
	slog.Info("api: code set", "codeX", code.X, "codeY", code.Y)
	jsonResp(w, http.StatusOK, CodeResponse{Status: "code_set", CodeX: code.X, CodeY: code.Y})
}

// pressButton handles POST /press_button. The body is optional; when it
// carries both codeX and codeY the code pair is replaced before arming.
func (h *Handler) pressButton(w http.ResponseWriter, r *http.Request) {
	code, err := pressCode(w, r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := h.store.ArmButton(code)
	slog.Info("api: button armed", "seq", ev.Seq, "codeX", ev.Code.X, "codeY", ev.Code.Y)
	jsonResp(w, http.StatusOK, PressResponse{
		Status: "armed",
		Seq:    ev.Seq,
		CodeX:  ev.Code.X,
		CodeY:  ev.Code.Y,
	})
}

// triggerHaptic handles POST /trigger_haptic.
func (h *Handler) triggerHaptic(w http.ResponseWriter, r *http.Request) {
	ev := h.store.ArmHaptic()
	slog.Info("api: haptic armed", "seq", ev.Seq)
	jsonResp(w, http.StatusOK, HapticResponse{Status: "haptic_armed", HapticSeq: ev.Seq})
}

// toggleCue handles POST /toggle_cue.
func (h *Handler) toggleCue(w http.ResponseWriter, r *http.Request) {
	ev := h.store.ArmCue()
	slog.Info("api: cue armed", "seq", ev.Seq)
	jsonResp(w, http.StatusOK, CueResponse{Status: "cue_armed", CueSeq: ev.Seq})
}

// pressCode reads the optional code pair of a press. A missing or unparsable
// body, or one lacking either code, yields nil. Both codes present but not
// integers is an error, and the press must not be armed.
func pressCode(w http.ResponseWriter, r *http.Request) (*types.CodePair, error) {
	var raw map[string]json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		if err != errEmptyBody {
			slog.Debug("api: ignoring unreadable press body", "err", err)
		}
		return nil, nil
	}

	cx, cy := raw["codeX"], raw["codeY"]
	if isNull(cx) || isNull(cy) {
		return nil, nil
	}
	var x, y flexInt
	if err := json.Unmarshal(cx, &x); err != nil {
		return nil, fmt.Errorf("codeX: %w", err)
	}
	if err := json.Unmarshal(cy, &y); err != nil {
		return nil, fmt.Errorf("codeY: %w", err)
	}
	return &types.CodePair{X: int(x), Y: int(y)}, nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
