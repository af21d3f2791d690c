package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
	"github.com/norris81b/webCamCtrl/internal/control"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/database"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/logging"
	"github.com/norris81b/webCamCtrl/internal/preset"
	"github.com/norris81b/webCamCtrl/migrations"
)

type sentCommand struct {
	Name string
	Args []byte
}

// fakeCamera records commands and serves canned stats.
type fakeCamera struct {
	mu        sync.Mutex
	sent      []sentCommand
	submitErr error
	healthErr error
	stats     rs232.ProcessorStats
}

func (f *fakeCamera) Submit(name string, args []byte) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.record(name, args)
	return "inst-1", nil
}

func (f *fakeCamera) SendDataCommand(name string) { f.record(name, nil) }

func (f *fakeCamera) SendDataCommandWithArgs(name string, args []byte) { f.record(name, args) }

func (f *fakeCamera) record(name string, args []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCommand{Name: name, Args: append([]byte(nil), args...)})
}

func (f *fakeCamera) commands() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCommand(nil), f.sent...)
}

func (f *fakeCamera) Stats() rs232.ProcessorStats { return f.stats }

func (f *fakeCamera) HealthCheck(context.Context) error { return f.healthErr }

type fakeScanner struct {
	mu      sync.Mutex
	running bool
}

func (f *fakeScanner) Start() {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
}

func (f *fakeScanner) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running
	f.running = false
	return was
}

func (f *fakeScanner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeScanner) Status() preset.ScanStatus {
	return preset.ScanStatus{Running: f.Running(), MaxPreset: preset.DefaultMaxPreset, Interval: preset.DefaultScanInterval}
}

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	server  *Server
	http    *httptest.Server
	camera  *fakeCamera
	scanner *fakeScanner
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func newTestEnv(t *testing.T, checks map[string]HealthChecker) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := preset.NewSQLiteRepository(db.DB, preset.DefaultCount)
	if err := repo.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	env := &testEnv{camera: &fakeCamera{}, scanner: &fakeScanner{}}
	ctrl, err := control.NewController(control.Options{
		Sender:  env.camera,
		Presets: repo,
		Scanner: env.scanner,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	env.server, err = New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1"},
		WS:      config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:  testLogger(),
		Camera:  env.camera,
		Control: ctrl,
		Scanner: env.scanner,
		Checks:  checks,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	env.http = httptest.NewServer(env.server.Handler())
	t.Cleanup(env.http.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return v
}

func TestNew_Validation(t *testing.T) {
	logger := testLogger()
	cam := &fakeCamera{}
	ctrl, err := control.NewController(control.Options{Sender: cam})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Camera: cam, Control: ctrl}},
		{"no camera", Deps{Logger: logger, Control: ctrl}},
		{"no controller", Deps{Logger: logger, Camera: cam}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/healthz", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	got := decode[map[string]string](t, body)
	if got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("body = %v", got)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, nil)
	req, _ := http.NewRequest(http.MethodGet, env.http.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}

func TestHealth(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		env := newTestEnv(t, map[string]HealthChecker{
			"database": checkFunc(func(context.Context) error { return nil }),
			"mqtt":     nil,
		})
		resp, body := env.do(t, http.MethodGet, "/api/v1/health", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		got := decode[HealthResponse](t, body)
		if got.Status != "ok" || got.Components["camera"] != "ok" || got.Components["database"] != "ok" {
			t.Errorf("health = %+v", got)
		}
		if _, ok := got.Components["mqtt"]; ok {
			t.Error("nil checker should be skipped")
		}
	})

	t.Run("camera down", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.camera.healthErr = rs232.ErrNotConnected
		resp, body := env.do(t, http.MethodGet, "/api/v1/health", "")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
		got := decode[HealthResponse](t, body)
		if got.Status != "degraded" || got.Components["camera"] != rs232.ErrNotConnected.Error() {
			t.Errorf("health = %+v", got)
		}
	})
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.camera.stats = rs232.ProcessorStats{
		Connected:       true,
		CommandsTx:      7,
		Nacks:           1,
		ReconnectsTotal: 2,
		LastActivity:    time.Now(),
	}

	resp, body := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[StatsResponse](t, body)
	if !got.Camera.Connected || got.Camera.CommandsTx != 7 || got.Camera.Nacks != 1 || got.Camera.Reconnects != 2 {
		t.Errorf("camera stats = %+v", got.Camera)
	}
	if got.Camera.LastActivity == nil {
		t.Error("last_activity missing")
	}
	if got.Version != "test" || got.Runtime.Goroutines == 0 {
		t.Errorf("stats = %+v", got)
	}
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantCode   string
		wantSent   *sentCommand
	}{
		{
			name:       "queued with args",
			body:       `{"command":"ZOOM_IN","args":"0A0B"}`,
			wantStatus: http.StatusAccepted,
			wantSent:   &sentCommand{Name: "ZOOM_IN", Args: []byte{0x0A, 0x0B}},
		},
		{
			name:       "unknown command",
			body:       `{"command":"FLY"}`,
			submitErr:  fmt.Errorf("%w: FLY", rs232.ErrUnknownCommand),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeUnknownCommand,
		},
		{
			name:       "bad hex",
			body:       `{"command":"ZOOM_IN","args":"zz"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "missing command",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "bad json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "processor closed",
			body:       `{"command":"ZOOM_IN"}`,
			submitErr:  rs232.ErrProcessorClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.camera.submitErr = tt.submitErr

			resp, body := env.do(t, http.MethodPost, "/api/v1/commands", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantCode != "" {
				got := decode[ErrorResponse](t, body)
				if got.Error.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", got.Error.Code, tt.wantCode)
				}
			}
			if tt.wantSent != nil {
				sent := env.camera.commands()
				if len(sent) != 1 || sent[0].Name != tt.wantSent.Name || !bytes.Equal(sent[0].Args, tt.wantSent.Args) {
					t.Errorf("sent = %+v, want %+v", sent, *tt.wantSent)
				}
				got := decode[CommandResponse](t, body)
				if got.ID != "inst-1" || got.Status != "queued" {
					t.Errorf("response = %+v", got)
				}
			}
		})
	}
}

func TestLegacyEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	query := url.QueryEscape(`{"command":"3"}`)
	resp, body := env.do(t, http.MethodGet, "/camctrl?json="+query, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[map[string]string](t, body)
	if got["message"] != "JSON command is 3" {
		t.Errorf("message = %q", got["message"])
	}
	sent := env.camera.commands()
	if len(sent) != 1 || sent[0].Name != rs232.CmdPresetMove || !bytes.Equal(sent[0].Args, []byte{3}) {
		t.Errorf("sent = %+v", sent)
	}

	query = url.QueryEscape(`{"command":"PRESETS"}`)
	_, body = env.do(t, http.MethodGet, "/camctrl?json="+query, "")
	got = decode[map[string]string](t, body)
	if !strings.Contains(got["PRESET_DATA"], `"text":"Preset 0"`) {
		t.Errorf("PRESET_DATA = %q", got["PRESET_DATA"])
	}

	req, _ := http.NewRequest(http.MethodPost, env.http.URL+"/camctrl",
		strings.NewReader("json="+url.QueryEscape(`{"command":"ZOOM_IN"}`)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	postResp.Body.Close()
	if postResp.StatusCode != http.StatusOK {
		t.Errorf("POST status = %d, want 200", postResp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/camctrl", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing json status = %d, want 400", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/camctrl?json=%7B", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid json status = %d, want 400", resp.StatusCode)
	}
}

func TestPresets(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/presets", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list := decode[struct {
		Presets []preset.Preset `json:"presets"`
		Count   int             `json:"count"`
	}](t, body)
	if list.Count != preset.DefaultCount || list.Presets[2].Text != "Preset 2" {
		t.Errorf("list = %+v", list)
	}

	resp, body = env.do(t, http.MethodPut, "/api/v1/presets/2", `{"label":"Door"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("label status = %d (%s)", resp.StatusCode, body)
	}
	if p := decode[preset.Preset](t, body); p.Text != "Door" {
		t.Errorf("labelled preset = %+v", p)
	}
	if len(env.camera.commands()) != 0 {
		t.Errorf("label-only update sent %v", env.camera.commands())
	}

	resp, body = env.do(t, http.MethodPut, "/api/v1/presets/5", `{"label":"Stage","store":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store status = %d (%s)", resp.StatusCode, body)
	}
	if p := decode[preset.Preset](t, body); p.Text != "Stage" || p.StoredAt == nil {
		t.Errorf("stored preset = %+v", p)
	}
	sent := env.camera.commands()
	if len(sent) != 1 || sent[0].Name != rs232.CmdPresetStore || !bytes.Equal(sent[0].Args, []byte{5}) {
		t.Errorf("sent = %+v", sent)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/presets/7/move", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("move status = %d, want 202", resp.StatusCode)
	}
	sent = env.camera.commands()
	if last := sent[len(sent)-1]; last.Name != rs232.CmdPresetMove || !bytes.Equal(last.Args, []byte{7}) {
		t.Errorf("last sent = %+v", last)
	}
}

func TestPresetErrors(t *testing.T) {
	tests := []struct {
		name, method, path, body string
		wantStatus               int
	}{
		{"bad number", http.MethodPut, "/api/v1/presets/abc", `{"label":"x"}`, http.StatusBadRequest},
		{"out of range", http.MethodPut, "/api/v1/presets/42", `{"label":"x"}`, http.StatusBadRequest},
		{"label too long", http.MethodPut, "/api/v1/presets/1", `{"label":"` + strings.Repeat("x", preset.MaxLabelLength+1) + `"}`, http.StatusBadRequest},
		{"empty update", http.MethodPut, "/api/v1/presets/1", `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/api/v1/presets/1", `[`, http.StatusBadRequest},
		{"move too large", http.MethodPost, "/api/v1/presets/300/move", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestScan(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/v1/scan", `{"enabled":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d (%s)", resp.StatusCode, body)
	}
	got := decode[ScanResponse](t, body)
	if !got.Running || got.Detail == nil || got.Detail.MaxPreset != preset.DefaultMaxPreset {
		t.Errorf("scan = %+v", got)
	}

	_, body = env.do(t, http.MethodPost, "/api/v1/scan", `{"enabled":false}`)
	if got := decode[ScanResponse](t, body); got.Running {
		t.Error("scan still running after disable")
	}

	_, body = env.do(t, http.MethodGet, "/api/v1/scan", "")
	if got := decode[ScanResponse](t, body); got.Running {
		t.Error("GET scan reports running")
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/scan", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing enabled status = %d, want 400", resp.StatusCode)
	}
}

func TestScanWithoutScanner(t *testing.T) {
	cam := &fakeCamera{}
	ctrl, err := control.NewController(control.Options{Sender: cam})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	srv, err := New(Deps{Logger: testLogger(), Camera: cam, Control: ctrl})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{"enabled":true}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/presets/1", strings.NewReader(`{"label":"x"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("label without store status = %d, want 503", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req, _ := http.NewRequest(http.MethodOptions, env.http.URL+"/camctrl", nil)
	req.Header.Set("Origin", "http://panel.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req.Header.Set("Origin", "http://evil.local")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q", got)
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocketResponseStream(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelResponse, ChannelEvent}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if ack := readWS(t, conn); ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("subscribe ack = %+v", ack)
	}

	env.server.BroadcastResponse(rs232.Response{
		Status:     0xB1,
		Raw:        []byte{0xB1},
		Outcome:    rs232.OutcomeSuccess,
		Command:    "ZOOM_IN",
		CommandID:  "inst-9",
		ReceivedAt: time.Now(),
	})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelResponse {
		t.Fatalf("event = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["command"] != "ZOOM_IN" || payload["outcome"] != "success" {
		t.Errorf("payload = %v", payload)
	}

	env.server.BroadcastEvent(control.EventScanStarted, nil)
	if msg := readWS(t, conn); msg.EventType != ChannelEvent {
		t.Errorf("event channel = %q, want %q", msg.EventType, ChannelEvent)
	}

	if env.server.Hub().ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", env.server.Hub().ClientCount())
	}
}

func TestWebSocketMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "dance"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}
}

func TestStartAndClose(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := env.server
	srv.cfg.Port = 0

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr() + "/healthz"); err == nil {
		t.Error("server still answering after Close")
	}
}

func TestStartPortInUse(t *testing.T) {
	env := newTestEnv(t, nil)
	addr := strings.TrimPrefix(env.http.URL, "http://")
	var port int
	if _, err := fmt.Sscanf(addr[strings.LastIndex(addr, ":")+1:], "%d", &port); err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	env.server.cfg.Port = port

	if err := env.server.Start(context.Background()); err == nil {
		env.server.Close()
		t.Fatal("Start() on a bound port should fail")
	}
}

func TestControlPage(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Camera Control") {
		t.Error("control page not served at /")
	}

	resp, _ = env.do(t, http.MethodGet, "/app.js", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("app.js status = %d, want 200", resp.StatusCode)
	}
}
