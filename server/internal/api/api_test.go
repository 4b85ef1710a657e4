package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/xrbridge/xrbridge/pkg/types"
	"github.com/xrbridge/xrbridge/server/internal/api"
	"github.com/xrbridge/xrbridge/server/internal/auth"
	"github.com/xrbridge/xrbridge/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fixedSessions int

func (f fixedSessions) Count() int { return int(f) }

func newHandler(st *store.Store) http.Handler {
	return api.New(st, api.Options{})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- coordinates ------------------------------------------------------------

func TestGetCoordinates_Default(t *testing.T) {
	rr := get(t, newHandler(store.New(0)), "/get_coordinates")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var c types.Coordinates
	decode(t, rr, &c)
	if c != (types.Coordinates{}) {
		t.Errorf("coordinates: got %+v, want zero", c)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestReceiveCoordinates_RoundTrip(t *testing.T) {
	h := newHandler(store.New(0))
	for _, tc := range []types.Coordinates{{X: 0.1, Y: 0.9}, {X: -4, Y: 1e6}, {X: 0, Y: 0}} {
		body, _ := json.Marshal(tc)
		rr := post(t, h, "/receive_coordinates", string(body))
		if rr.Code != http.StatusOK {
			t.Fatalf("receive %+v: status %d", tc, rr.Code)
		}
		var resp map[string]interface{}
		decode(t, rr, &resp)
		if resp["status"] != "success" {
			t.Errorf("status field: got %v, want success", resp["status"])
		}

		var got types.Coordinates
		decode(t, get(t, h, "/get_coordinates"), &got)
		if got != tc {
			t.Errorf("get after receive: got %+v, want %+v", got, tc)
		}
	}
}

func TestReceiveCoordinates_MissingAxisDefaultsToZero(t *testing.T) {
	st := store.New(0)
	st.SetCoordinates(5, 5)
	rr := post(t, newHandler(st), "/receive_coordinates", `{"x":0.3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if got := st.Coordinates(); got != (types.Coordinates{X: 0.3, Y: 0}) {
		t.Errorf("coordinates: got %+v", got)
	}
}

func TestReceiveCoordinates_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":     `{x:1`,
		"empty body":   ``,
		"empty object": `{}`,
		"null":         `null`,
		"string axis":  `{"x":"left","y":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			st := store.New(0)
			st.SetCoordinates(1, 2)
			rr := post(t, newHandler(st), "/receive_coordinates", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			var resp map[string]interface{}
			decode(t, rr, &resp)
			if resp["status"] != "error" || resp["message"] == "" || resp["message"] == nil {
				t.Errorf("body: got %v", resp)
			}
			if got := st.Coordinates(); got != (types.Coordinates{X: 1, Y: 2}) {
				t.Errorf("coordinates changed on error: %+v", got)
			}
		})
	}
}

// --- button index -----------------------------------------------------------

func TestUpdateButtonIndex(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)

	rr := post(t, h, "/update_button_index", `{"buttonIndex":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["success"] != true {
		t.Errorf("success: got %v", resp["success"])
	}
	if st.ButtonIndex() != 4 {
		t.Errorf("button index: got %d, want 4", st.ButtonIndex())
	}

	post(t, h, "/update_button_index", `{}`)
	if st.ButtonIndex() != types.NoButton {
		t.Errorf("absent index: got %d, want -1", st.ButtonIndex())
	}
}

func TestUpdateButtonIndex_Malformed(t *testing.T) {
	rr := post(t, newHandler(store.New(0)), "/update_button_index", `nope`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

// --- code -------------------------------------------------------------------

func TestSetCode(t *testing.T) {
	st := store.New(0)
	rr := post(t, newHandler(st), "/set_code", `{"codeX":3,"codeY":"2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp api.CodeResponse
	decode(t, rr, &resp)
	if resp.Status != "code_set" || resp.CodeX != 3 || resp.CodeY != 2 {
		t.Errorf("response: got %+v", resp)
	}
	if st.Code() != (types.CodePair{X: 3, Y: 2}) {
		t.Errorf("store code: got %+v", st.Code())
	}
	if st.Sequences().Button != 0 {
		t.Error("set_code must not arm a press")
	}
}

func TestSetCode_MissingFieldLeavesCodeUnchanged(t *testing.T) {
	for _, body := range []string{`{"codeX":3}`, `{"codeY":3}`, `{"codeX":3,"codeY":null}`, `{}`} {
		st := store.New(0)
		rr := post(t, newHandler(st), "/set_code", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want 400", body, rr.Code)
		}
		var resp map[string]interface{}
		decode(t, rr, &resp)
		if resp["error"] == nil {
			t.Errorf("%s: missing error body", body)
		}
		if st.Code() != types.DefaultCode {
			t.Errorf("%s: code changed to %+v", body, st.Code())
		}
	}
}

func TestSetCode_NonNumeric(t *testing.T) {
	rr := post(t, newHandler(store.New(0)), "/set_code", `{"codeX":"a","codeY":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

// --- arm endpoints ----------------------------------------------------------

func TestPressButton_Decoupled(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)

	rr := post(t, h, "/press_button", ``)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.PressResponse
	decode(t, rr, &resp)
	if resp.Status != "armed" || resp.Seq != 1 {
		t.Errorf("response: got %+v", resp)
	}
	if resp.CodeX != 0 || resp.CodeY != 1 {
		t.Errorf("default code: got (%d,%d), want (0,1)", resp.CodeX, resp.CodeY)
	}
}

func TestPressButton_CoupledUpdatesCode(t *testing.T) {
	st := store.New(0)
	rr := post(t, newHandler(st), "/press_button", `{"codeX":5,"codeY":6}`)

	var resp api.PressResponse
	decode(t, rr, &resp)
	if resp.CodeX != 5 || resp.CodeY != 6 {
		t.Errorf("code: got (%d,%d), want (5,6)", resp.CodeX, resp.CodeY)
	}
	if st.Code() != (types.CodePair{X: 5, Y: 6}) {
		t.Errorf("store code: got %+v", st.Code())
	}
}

func TestPressButton_PartialOrGarbageBodyStillArms(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)

	post(t, h, "/press_button", `{"codeX":5}`)
	post(t, h, "/press_button", `garbage`)

	if st.Sequences().Button != 2 {
		t.Errorf("button seq: got %d, want 2", st.Sequences().Button)
	}
	if st.Code() != types.DefaultCode {
		t.Errorf("code: got %+v, want default", st.Code())
	}
}

func TestPressButton_NonNumericCodeRejected(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)

	rr := post(t, h, "/press_button", `{"codeX":"abc","codeY":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var body map[string]string
	decode(t, rr, &body)
	if body["error"] == "" {
		t.Errorf("error body: got %v", body)
	}
	if st.Sequences().Button != 0 {
		t.Errorf("button seq: got %d, want 0 (not armed)", st.Sequences().Button)
	}
	if st.Code() != types.DefaultCode {
		t.Errorf("code: got %+v, want default", st.Code())
	}
}

func TestPressButton_NullCodeIgnored(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)

	rr := post(t, h, "/press_button", `{"codeX":null,"codeY":"abc"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if st.Sequences().Button != 1 {
		t.Errorf("button seq: got %d, want 1", st.Sequences().Button)
	}
}

func TestPressButton_NTimesAdvancesByN(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)
	const n = 7
	for i := 0; i < n; i++ {
		post(t, h, "/press_button", `{}`)
	}
	if got := st.Sequences().Button; got != n {
		t.Errorf("button seq: got %d, want %d", got, n)
	}
}

func TestPressButton_ConcurrentRequests(t *testing.T) {
	st := store.New(0)
	h := newHandler(st)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/press_button", nil))
		}()
	}
	wg.Wait()
	if got := st.Sequences().Button; got != 50 {
		t.Errorf("button seq: got %d, want 50", got)
	}
}

func TestTriggerHaptic(t *testing.T) {
	h := newHandler(store.New(0))
	post(t, h, "/trigger_haptic", ``)
	rr := post(t, h, "/trigger_haptic", ``)

	var resp api.HapticResponse
	decode(t, rr, &resp)
	if resp.Status != "haptic_armed" || resp.HapticSeq != 2 {
		t.Errorf("response: got %+v", resp)
	}
}

func TestToggleCue(t *testing.T) {
	h := newHandler(store.New(0))
	rr := post(t, h, "/toggle_cue", ``)

	var resp api.CueResponse
	decode(t, rr, &resp)
	if resp.Status != "cue_armed" || resp.CueSeq != 1 {
		t.Errorf("response: got %+v", resp)
	}
}

// --- users ------------------------------------------------------------------

func TestGetUsersData_EmptyIsObject(t *testing.T) {
	rr := get(t, newHandler(store.New(0)), "/get_users_data")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "{}" {
		t.Errorf("body: got %s, want {}", body)
	}
}

func TestGetUsersData_AndGetUser(t *testing.T) {
	st := store.New(0)
	st.PutUser("00000001", types.UserRecord{
		HMD:       json.RawMessage(`{"pos":{"x":1,"y":2,"z":3}}`),
		IsContact: true,
		LeftHand:  []json.RawMessage{},
		RightHand: []json.RawMessage{json.RawMessage(`{"pos":{"x":0,"y":0,"z":0}}`)},
	})
	h := newHandler(st)

	var all map[string]map[string]interface{}
	decode(t, get(t, h, "/get_users_data"), &all)
	if len(all) != 1 || all["00000001"]["is_contact"] != true {
		t.Errorf("users: got %v", all)
	}

	rr := get(t, h, "/get_user?id=00000001")
	if rr.Code != http.StatusOK {
		t.Fatalf("get_user status: got %d, want 200", rr.Code)
	}
	var one map[string]interface{}
	decode(t, rr, &one)
	if hands, ok := one["right_hand"].([]interface{}); !ok || len(hands) != 1 {
		t.Errorf("right_hand: got %v", one["right_hand"])
	}
	if hands, ok := one["left_hand"].([]interface{}); !ok || len(hands) != 0 {
		t.Errorf("left_hand: got %v, want []", one["left_hand"])
	}
}

func TestGetUser_NotFound(t *testing.T) {
	h := newHandler(store.New(0))
	for _, path := range []string{"/get_user?id=ghost", "/get_user"} {
		rr := get(t, h, path)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: status got %d, want 404", path, rr.Code)
		}
		var resp map[string]interface{}
		decode(t, rr, &resp)
		if resp["error"] != "User not found" {
			t.Errorf("%s: error got %v", path, resp["error"])
		}
	}
}

// --- health, routing, auth --------------------------------------------------

func TestHealth(t *testing.T) {
	st := store.New(0)
	st.ArmCue()
	st.PutUser("u", types.UserRecord{})
	h := api.New(st, api.Options{Sessions: fixedSessions(3)})

	var resp api.HealthResponse
	decode(t, get(t, h, "/health"), &resp)
	if resp.Status != "ok" || resp.Sessions != 3 || resp.Users != 1 || resp.CueSeq != 1 {
		t.Errorf("health: got %+v", resp)
	}
}

func TestWrongMethod_Returns405(t *testing.T) {
	h := newHandler(store.New(0))
	if rr := get(t, h, "/press_button"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /press_button: got %d, want 405", rr.Code)
	}
	if rr := post(t, h, "/get_coordinates", `{}`); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /get_coordinates: got %d, want 405", rr.Code)
	}
}

func TestUnknownPath_UsesNotFoundHandler(t *testing.T) {
	fallback := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := api.New(store.New(0), api.Options{NotFound: fallback})
	if rr := get(t, h, "/index.html"); rr.Code != http.StatusTeapot {
		t.Errorf("status: got %d, want 418", rr.Code)
	}
	if rr := get(t, newHandler(store.New(0)), "/index.html"); rr.Code != http.StatusNotFound {
		t.Errorf("default status: got %d, want 404", rr.Code)
	}
}

func TestAuth_GuardsCommandsOnly(t *testing.T) {
	st := store.New(0)
	g := auth.New("apikey", "X-API-Key", "k")
	h := api.New(st, api.Options{Auth: g.Middleware})

	if rr := post(t, h, "/trigger_haptic", ``); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated command: got %d, want 401", rr.Code)
	}
	if st.Sequences().Haptic != 0 {
		t.Error("rejected command still armed haptic")
	}
	if rr := get(t, h, "/get_coordinates"); rr.Code != http.StatusOK {
		t.Errorf("query: got %d, want 200", rr.Code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger_haptic", nil)
	req.Header.Set("X-API-Key", "k")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated command: got %d, want 200", rr.Code)
	}
}
