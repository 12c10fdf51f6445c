package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/bot"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T) *bot.Engine {
	t.Helper()
	e, err := bot.New(bot.DefaultConfig(), bot.Deps{Store: database.NewMemoryStore(), Logger: logging.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	return e
}

func newTestServer(t *testing.T, authService *auth.Service) (*Server, *bot.Engine) {
	t.Helper()
	e := newTestEngine(t)
	s := NewServer(ServerConfig{}, e, NewWSHub(logging.Nop()), authService, metrics.NewRecorder().Handler(), logging.Nop())
	return s, e
}

func do(t *testing.T, s *Server, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w, _ := do(t, s, http.MethodGet, "/health", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("missing trace id header")
	}
}

func TestStartStop(t *testing.T) {
	s, e := newTestServer(t, nil)

	if w, _ := do(t, s, http.MethodPost, "/api/bot/start", "", ""); w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	if !e.Status().Running {
		t.Error("engine not running after start")
	}

	_, env := do(t, s, http.MethodGet, "/api/status", "", "")
	var st bot.Status
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Running || st.Wallet.Balance != 27 {
		t.Errorf("status = %+v", st)
	}

	if w, _ := do(t, s, http.MethodPost, "/api/bot/stop", "", ""); w.Code != http.StatusOK {
		t.Fatalf("stop status = %d", w.Code)
	}
	if e.Status().Running {
		t.Error("engine still running after stop")
	}
}

func TestCandles(t *testing.T) {
	s, e := newTestServer(t, nil)

	tests := []struct {
		name    string
		body    string
		status  int
		candles int
	}{
		{"single", `{"time":60,"open":10,"high":11,"low":9,"close":10.5}`, http.StatusOK, 1},
		{"batch", `[{"time":0,"open":9,"high":10,"low":8,"close":9.5},{"time":120,"open":10.5,"high":12,"low":10,"close":11}]`, http.StatusOK, 3},
		{"invalid candle", `{"time":180,"open":10,"high":9,"low":8,"close":10}`, http.StatusBadRequest, 3},
		{"not json", `nope`, http.StatusBadRequest, 3},
		{"empty batch", `[]`, http.StatusBadRequest, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, s, http.MethodPost, "/api/candles", tt.body, "")
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := e.Status().Candles; got != tt.candles {
				t.Errorf("candles = %d, want %d", got, tt.candles)
			}
		})
	}
}

func TestOneElementArrayIsHistory(t *testing.T) {
	s, e := newTestServer(t, nil)

	w, env := do(t, s, http.MethodPost, "/api/candles", `[{"time":60,"open":10,"high":11,"low":9,"close":10.5}]`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var got struct {
		Received int `json:"received"`
		Candles  int `json:"candles"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Received != 1 || got.Candles != 1 {
		t.Errorf("history response = %+v, want received 1 candles 1", got)
	}
	if e.Status().Candles != 1 {
		t.Errorf("candles = %d, want 1", e.Status().Candles)
	}
}

func TestCircuitBreakerRoutes(t *testing.T) {
	s, e := newTestServer(t, nil)

	if w, _ := do(t, s, http.MethodPut, "/api/circuit-breaker", `{"max_consecutive_losses":-1}`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d", w.Code)
	}

	w, env := do(t, s, http.MethodPut, "/api/circuit-breaker", `{"enabled":true,"max_consecutive_losses":2,"cooldown_minutes":15}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("configure status = %d (%s)", w.Code, w.Body.String())
	}
	var cfg circuit.CircuitBreakerConfig
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.Enabled || cfg.MaxConsecutiveLosses != 2 || cfg.CooldownMinutes != 15 {
		t.Errorf("config = %+v", cfg)
	}
	if got := e.Status().BreakerConfig; got != cfg {
		t.Errorf("status config = %+v, want %+v", got, cfg)
	}

	w, env = do(t, s, http.MethodPost, "/api/circuit-breaker/reset", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	var stats circuit.Stats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.State != circuit.StateClosed {
		t.Errorf("state after reset = %s", stats.State)
	}
}

func TestJournalAndLearningViews(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/journal", "/api/journal?limit=5", "/api/journal/summary", "/api/brain", "/api/patterns"} {
		w, env := do(t, s, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK || !env.Success {
			t.Errorf("%s: status %d body %s", path, w.Code, w.Body.String())
		}
	}

	if w, _ := do(t, s, http.MethodGet, "/api/journal?limit=-1", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d", w.Code)
	}
}

func TestVolatilityGuardAndDevFlags(t *testing.T) {
	s, e := newTestServer(t, nil)

	if w, _ := do(t, s, http.MethodPut, "/api/volatility-guard", `{}`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing field: status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPut, "/api/volatility-guard", `{"enabled":true}`, ""); w.Code != http.StatusOK {
		t.Errorf("guard status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPut, "/api/dev-flags", `{"skip_htf_filter":true}`, ""); w.Code != http.StatusOK {
		t.Errorf("dev flags status = %d", w.Code)
	}

	st := e.Status()
	if !st.VolatilityGuard || !st.DevFlags.SkipHTFFilter || st.DevFlags.SkipFeeGuard {
		t.Errorf("status = guard %v flags %+v", st.VolatilityGuard, st.DevFlags)
	}
}

func TestAuthProtectsControlRoutes(t *testing.T) {
	svc, err := auth.NewService(auth.Config{
		JWTSecret:     "test-secret",
		AdminUsername: "admin",
		AdminPassword: "Sup3r-Secret",
		BcryptCost:    bcrypt.MinCost,
	}, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s, e := newTestServer(t, svc)

	if w, _ := do(t, s, http.MethodPost, "/api/bot/start", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated start: status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodGet, "/api/status", "", ""); w.Code != http.StatusOK {
		t.Errorf("status should stay public: %d", w.Code)
	}

	w, _ := do(t, s, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"Sup3r-Secret"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatal(err)
	}

	if w, _ := do(t, s, http.MethodPost, "/api/bot/start", "", pair.AccessToken); w.Code != http.StatusOK {
		t.Errorf("authenticated start: status = %d", w.Code)
	}
	if !e.Status().Running {
		t.Error("engine not started")
	}
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w, _ := do(t, s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWSHub(logging.Nop())
	go hub.Run(ctx)

	s := NewServer(ServerConfig{}, newTestEngine(t), hub, nil, nil, logging.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil || msg["type"] != "CONNECTED" {
		t.Fatalf("welcome = %v err = %v", msg, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(events.NewLogEvent("INFO", "hello"))

	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != events.EventLog || ev.Data["message"] != "hello" {
		t.Errorf("event = %+v", ev)
	}
}
