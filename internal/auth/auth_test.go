package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adaptive-trading-bot/internal/logging"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		JWTSecret:     "test-secret",
		AdminUsername: "admin",
		AdminPassword: "Sup3r-Secret",
		BcryptCost:    bcrypt.MinCost,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, time.Hour)

	token, err := m.GenerateAccessToken(OperatorClaims{Username: "ops", Role: RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Username != "ops" || !claims.IsAdmin() {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAccessTokenRejections(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, time.Hour)
	token, err := m.GenerateAccessToken(OperatorClaims{Username: "ops", Role: RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}

	other := NewJWTManager("other-secret", time.Minute, time.Hour)
	if _, err := other.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: err = %v", err)
	}

	expired := NewJWTManager("secret", time.Minute, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := expired.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired: err = %v", err)
	}

	if _, err := m.ValidateAccessToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: err = %v", err)
	}
}

func TestPasswordStrength(t *testing.T) {
	p := NewPasswordManager(bcrypt.MinCost)

	tests := []struct {
		password string
		ok       bool
	}{
		{"short1A", false},
		{"alllowercase", false},
		{"lowerUPPER1", true},
		{"lower-case-9", true},
		{strings.Repeat("aA1", 30), false},
	}

	for _, tt := range tests {
		err := p.ValidatePasswordStrength(tt.password)
		if (err == nil) != tt.ok {
			t.Errorf("ValidatePasswordStrength(%q) = %v, want ok=%v", tt.password, err, tt.ok)
		}
	}
}

func TestHashAndVerify(t *testing.T) {
	p := NewPasswordManager(bcrypt.MinCost)
	hash, err := p.HashPassword("Sup3r-Secret")
	if err != nil {
		t.Fatal(err)
	}
	if !p.VerifyPassword("Sup3r-Secret", hash) {
		t.Error("correct password rejected")
	}
	if p.VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Login("admin", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password: err = %v", err)
	}
	if _, err := svc.Login("root", "Sup3r-Secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad user: err = %v", err)
	}

	pair, err := svc.Login("admin", "Sup3r-Secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.AccessToken == "" || pair.ExpiresIn != 900 {
		t.Errorf("pair = %+v", pair)
	}
}

func TestLoginWithoutPassword(t *testing.T) {
	svc, err := NewService(Config{JWTSecret: "s", AdminUsername: "admin"}, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login("admin", ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	pair, err := svc.Login("admin", "Sup3r-Secret")
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.GET("/private", Middleware(svc.GetJWTManager()), RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUsername(c))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + pair.AccessToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != "admin" {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	router := gin.New()
	router.POST("/login", NewHandlers(newTestService(t)).Login)

	tests := []struct {
		body   string
		status int
	}{
		{`{"username":"admin"}`, http.StatusBadRequest},
		{`{"username":"admin","password":"wrong"}`, http.StatusUnauthorized},
		{`{"username":"admin","password":"Sup3r-Secret"}`, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.body, w.Code, tt.status)
			continue
		}
		if tt.status == http.StatusOK {
			var pair TokenPair
			if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil || pair.AccessToken == "" {
				t.Errorf("bad token response %s (%v)", w.Body.String(), err)
			}
		}
	}
}
