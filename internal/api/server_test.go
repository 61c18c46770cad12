package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/devsel/internal/device"
	"github.com/nerrad567/devsel/internal/history"
	"github.com/nerrad567/devsel/internal/infrastructure/config"
	"github.com/nerrad567/devsel/internal/infrastructure/database"
	"github.com/nerrad567/devsel/internal/infrastructure/logging"
	"github.com/nerrad567/devsel/migrations"
)

// ─── Fixtures ──────────────────────────────────────────────────────

func system(plat, mark, desc string) map[string]any {
	return map[string]any{
		"plat": plat, "mark": mark, "desc": desc,
		"arch": "arm", "path": "/opt/" + plat, "work": "/srv/work", "logs": "/var/log/devsel",
	}
}

func testSource() device.Source {
	return device.Source{
		"device": map[string]any{
			"alpha": map[string]any{
				"system": system("Pico", "1", "Bench controller"),
				"comm":   map[string]any{"port": "a"},
			},
			"beta": map[string]any{
				"system": system("Uno", "2", "Spare board"),
				"comm":   map[string]any{"port": "b"},
			},
			"broken": map[string]any{
				"system": map[string]any{"plat": "Nano"},
				"comm":   map[string]any{"port": "c"},
			},
			"off": map[string]any{
				"enable": false,
				"system": system("Mega", "3", "Disabled board"),
				"comm":   map[string]any{"port": "a"},
			},
		},
	}
}

type stubSession struct{ live bool }

func (s stubSession) Check(context.Context) error {
	if !s.live {
		return errors.New("no reply")
	}
	return nil
}

func (stubSession) Close() error { return nil }

// liveOn returns a factory reporting devices on the given ports as live.
func liveOn(ports ...string) device.SessionFactory {
	return func(comm device.Section) (device.Session, error) {
		port, _ := comm["port"].(string)
		for _, p := range ports {
			if p == port {
				return stubSession{live: true}, nil
			}
		}
		return stubSession{}, nil
	}
}

type testEnv struct {
	srv      *Server
	router   http.Handler
	detector *device.Detector
	store    *history.Store
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

func newTestEnv(t *testing.T, factory device.SessionFactory) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	log := logging.Discard()
	store := history.NewStore(db.DB, log)
	hub := NewHub(testWSConfig(), log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	detector := device.NewDetector(device.NewCatalog(testSource()), factory,
		device.WithObservers(store, hub))

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:       testWSConfig(),
		Logger:   log,
		Detector: detector,
		History:  store,
		Hub:      hub,
		Checks:   map[string]HealthChecker{"database": db},
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{srv: srv, router: srv.Handler(), detector: detector, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	detector := device.NewDetector(device.NewCatalog(nil), nil)

	if _, err := New(Deps{Detector: detector}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without detector should fail")
	}

	srv, err := New(Deps{Logger: logging.Discard(), Detector: detector})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Hub() == nil {
		t.Error("New() should create a hub when none is given")
	}
}

// ─── Health & Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, liveOn())

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Status     string                     `json:"status"`
		Version    string                     `json:"version"`
		Components map[string]componentHealth `json:"components"`
	}
	decode(t, w, &body)
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("body = %+v", body)
	}
	if body.Components["database"].Status != "ok" {
		t.Errorf("database component = %+v", body.Components["database"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, liveOn())
	env.srv.checks["mqtt"] = failingCheck{}
	env.router = env.srv.Handler()

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentHealth `json:"components"`
	}
	decode(t, w, &body)
	if body.Status != "degraded" || body.Components["mqtt"].Error != "broker unreachable" {
		t.Errorf("body = %+v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, liveOn())

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("generated X-Request-ID = %q, want a UUID", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Errorf("X-Request-ID = %q, want client-supplied", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLength+1))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if _, err := uuid.Parse(rec.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("oversized X-Request-ID was not replaced: %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, liveOn())
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://bench.local"}
	env.router = env.srv.Handler()

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://bench.local", "http://bench.local"},
		{"http://elsewhere", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/selection", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d, want 204", tt.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("%s: Allow-Origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, liveOn())
	if w := env.do(t, http.MethodGet, "/api/v1/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := newTestEnv(t, liveOn())

	w := env.do(t, http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Devices []deviceSummary `json:"devices"`
		Count   int             `json:"count"`
	}
	decode(t, w, &body)

	want := []deviceSummary{
		{ID: "alpha", Enabled: true},
		{ID: "beta", Enabled: true},
		{ID: "broken", Enabled: true},
		{ID: "off", Enabled: false},
	}
	if body.Count != len(want) || len(body.Devices) != len(want) {
		t.Fatalf("devices = %+v", body.Devices)
	}
	for i := range want {
		if body.Devices[i] != want[i] {
			t.Errorf("devices[%d] = %+v, want %+v", i, body.Devices[i], want[i])
		}
	}
}

func TestGetDevice(t *testing.T) {
	env := newTestEnv(t, liveOn())

	w := env.do(t, http.MethodGet, "/api/v1/devices/beta", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		ID     string         `json:"id"`
		Record map[string]any `json:"record"`
	}
	decode(t, w, &body)
	if body.ID != "beta" {
		t.Errorf("id = %q", body.ID)
	}
	comm, _ := body.Record["comm"].(map[string]any)
	if comm["port"] != "b" {
		t.Errorf("record comm = %v", body.Record["comm"])
	}

	var sel device.Selection
	env.detector.Do(func(c *device.Catalog) { sel = c.Selection() })
	if sel.State() != device.StateUnset {
		t.Errorf("GET /devices/{id} changed the selection to %s", sel)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}
}

// ─── Selection ─────────────────────────────────────────────────────

func TestSelection_Lifecycle(t *testing.T) {
	env := newTestEnv(t, liveOn())

	var resp selectionResponse
	w := env.do(t, http.MethodGet, "/api/v1/selection", "")
	decode(t, w, &resp)
	if resp.Selection.State() != device.StateUnset || resp.Description != "" || resp.Enabled {
		t.Errorf("initial selection = %+v", resp)
	}

	w = env.do(t, http.MethodPut, "/api/v1/selection", `{"id":"alpha"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &resp)
	if id, _ := resp.Selection.ID(); id != "alpha" {
		t.Errorf("selected id = %q", id)
	}
	if !strings.Contains(resp.Description, "Name: Pico Mark 1") {
		t.Errorf("description = %q", resp.Description)
	}
	if resp.System == nil || resp.System.Platform != "Pico" {
		t.Errorf("system = %+v", resp.System)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/selection", "")
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Selection.State() != device.StateUnset {
		t.Errorf("DELETE = %d %+v", w.Code, resp)
	}
}

func TestSelection_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantID     string
	}{
		{"unknown keeps previous", `{"id":"ghost"}`, http.StatusNotFound, "beta"},
		{"invalid is still selected", `{"id":"broken"}`, http.StatusUnprocessableEntity, "broken"},
		{"empty id", `{"id":"  "}`, http.StatusBadRequest, "beta"},
		{"bad json", `{"id":`, http.StatusBadRequest, "beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, liveOn())
			if w := env.do(t, http.MethodPut, "/api/v1/selection", `{"id":"beta"}`); w.Code != http.StatusOK {
				t.Fatalf("initial PUT status = %d", w.Code)
			}

			w := env.do(t, http.MethodPut, "/api/v1/selection", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var id string
			env.detector.Do(func(c *device.Catalog) { id, _ = c.CurrentID() })
			if id != tt.wantID {
				t.Errorf("CurrentID() = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestSelection_InvalidReportsBlankFields(t *testing.T) {
	env := newTestEnv(t, liveOn())

	w := env.do(t, http.MethodPut, "/api/v1/selection", `{"id":"broken"}`)
	var body struct {
		Error     Error             `json:"error"`
		Outcome   device.Outcome    `json:"outcome"`
		Selection selectionResponse `json:"selection"`
	}
	decode(t, w, &body)

	if body.Error.Code != ErrCodeInvalidDevice || !strings.Contains(body.Error.Message, "desc") {
		t.Errorf("error = %+v", body.Error)
	}
	if body.Outcome != device.OutcomeInvalid {
		t.Errorf("outcome = %v", body.Outcome)
	}
	if body.Selection.System == nil || !body.Selection.System.IsZero() {
		t.Errorf("system = %+v, want blank", body.Selection.System)
	}
	if !strings.Contains(body.Selection.Description, "ID: broken") {
		t.Errorf("description = %q", body.Selection.Description)
	}
}

// ─── Detection & History ───────────────────────────────────────────

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		live      []string
		wantState device.SelectionState
		wantID    string
		matches   int
	}{
		{"single match", []string{"b"}, device.StateSelected, "beta", 1},
		{"nothing", nil, device.StateUnset, "", 0},
		{"ambiguous", []string{"a", "b"}, device.StateAmbiguous, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, liveOn(tt.live...))

			w := env.do(t, http.MethodPost, "/api/v1/detect", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var result device.Result
			decode(t, w, &result)

			if result.Selection.State() != tt.wantState {
				t.Errorf("state = %s, want %s", result.Selection.State(), tt.wantState)
			}
			if id, _ := result.Selection.ID(); id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
			if len(result.Matches) != tt.matches {
				t.Errorf("matches = %v", result.Matches)
			}
			if len(result.Probes) != 4 {
				t.Errorf("probes = %d, want 4", len(result.Probes))
			}
		})
	}
}

func TestSweeps_RecordedByDetect(t *testing.T) {
	env := newTestEnv(t, liveOn("a"))

	var first device.Result
	decode(t, env.do(t, http.MethodPost, "/api/v1/detect", ""), &first)
	env.do(t, http.MethodPost, "/api/v1/detect", "")

	var list struct {
		Sweeps []device.Result `json:"sweeps"`
		Count  int             `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/v1/sweeps", ""), &list)
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}

	decode(t, env.do(t, http.MethodGet, "/api/v1/sweeps?limit=1", ""), &list)
	if list.Count != 1 {
		t.Errorf("limited count = %d, want 1", list.Count)
	}

	w := env.do(t, http.MethodGet, "/api/v1/sweeps/"+first.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET sweep status = %d", w.Code)
	}
	var got device.Result
	decode(t, w, &got)
	if got.ID != first.ID || len(got.Probes) != 4 {
		t.Errorf("sweep = %+v", got)
	}
	if id, _ := got.Selection.ID(); id != "alpha" {
		t.Errorf("recorded selection = %s", got.Selection)
	}
}

func TestSweeps_Errors(t *testing.T) {
	env := newTestEnv(t, liveOn())

	if w := env.do(t, http.MethodGet, "/api/v1/sweeps/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown sweep status = %d, want 404", w.Code)
	}
	for _, q := range []string{"0", "-3", "many"} {
		if w := env.do(t, http.MethodGet, "/api/v1/sweeps?limit="+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, w.Code)
		}
	}

	env.srv.history = nil
	env.router = env.srv.Handler()
	if w := env.do(t, http.MethodGet, "/api/v1/sweeps", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled history status = %d, want 503", w.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func TestWebSocket_StreamsSweeps(t *testing.T) {
	env := newTestEnv(t, liveOn("b"))
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.detector.Detect(context.Background())

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type      string        `json:"type"`
		EventType string        `json:"event_type"`
		Payload   device.Result `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != EventSweepCompleted {
		t.Errorf("message = %s/%s", msg.Type, msg.EventType)
	}
	if id, _ := msg.Payload.Selection.ID(); id != "beta" {
		t.Errorf("payload selection = %s", msg.Payload.Selection)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t, liveOn())
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply WSMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if reply.Type != WSTypePong || reply.ID != "p1" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestWebSocket_Subscriptions(t *testing.T) {
	env := newTestEnv(t, liveOn())
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name     string
		msg      WSMessage
		wantType string
	}{
		{
			name:     "unsubscribe known channel",
			msg:      WSMessage{Type: WSTypeUnsubscribe, ID: "u1", Payload: WSSubscribePayload{Channels: []string{EventSelectionChanged}}},
			wantType: WSTypeResponse,
		},
		{
			name:     "subscribe known channel",
			msg:      WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{EventSelectionChanged}}},
			wantType: WSTypeResponse,
		},
		{
			name:     "subscribe unknown channel",
			msg:      WSMessage{Type: WSTypeSubscribe, ID: "s2", Payload: WSSubscribePayload{Channels: []string{"device.state"}}},
			wantType: WSTypeError,
		},
		{
			name:     "subscribe without payload",
			msg:      WSMessage{Type: WSTypeSubscribe, ID: "s3"},
			wantType: WSTypeError,
		},
		{
			name:     "unknown type",
			msg:      WSMessage{Type: "shout", ID: "x1"},
			wantType: WSTypeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			//nolint:errcheck // Test deadline
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var reply WSMessage
			if err := conn.ReadJSON(&reply); err != nil {
				t.Fatalf("ReadJSON() error = %v", err)
			}
			if reply.Type != tt.wantType || reply.ID != tt.msg.ID {
				t.Errorf("reply = %s/%s, want %s/%s", reply.Type, reply.ID, tt.wantType, tt.msg.ID)
			}
		})
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{EventSweepCompleted: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{EventSelectionChanged: {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	hub.ObserveSweep(context.Background(), device.Result{ID: "s-1", Matches: []string{}})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.EventType != EventSweepCompleted {
			t.Errorf("event_type = %q", msg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_EventSequence(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{EventSelectionChanged: {}},
	}
	hub.Register(client)

	hub.Broadcast(EventSelectionChanged, nil)
	hub.Broadcast(EventSweepCompleted, nil)
	hub.Broadcast(EventSelectionChanged, nil)

	var seqs []uint64
	for i := 0; i < 2; i++ {
		var msg WSMessage
		if err := json.Unmarshal(<-client.send, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		seqs = append(seqs, msg.Seq)
	}
	if seqs[0] != 1 || seqs[1] != 3 {
		t.Errorf("seqs = %v, want [1 3]", seqs)
	}
}

func TestHub_UnregisteredClientGetsNothing(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{EventSweepCompleted: {}},
	}
	hub.Register(client)
	hub.Unregister(client)

	if client.enqueue([]byte("late")) {
		t.Error("enqueue after unregister should fail")
	}
	if _, ok := <-client.send; ok {
		t.Error("send queue should be closed")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServer_StartClose(t *testing.T) {
	env := newTestEnv(t, liveOn())

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
