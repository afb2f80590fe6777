package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func newTestProvider() *Provider {
	return NewProvider("token-secret", "session-secret-with-32-bytes-ok!", time.Hour, false)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatalf("password stored in clear")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Errorf("expected password to match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Errorf("expected wrong password to fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	p := newTestProvider()
	token, err := p.IssueToken(42)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	id, err := p.ParseToken(token)
	if err != nil || id != 42 {
		t.Fatalf("ParseToken = %d, %v", id, err)
	}
}

func TestParseTokenRejects(t *testing.T) {
	p := newTestProvider()

	other := NewProvider("another-secret", "session-secret-with-32-bytes-ok!", time.Hour, false)
	foreign, err := other.IssueToken(1)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         1,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	}).SignedString([]byte("token-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Minute).Unix()},
	}).SignedString([]byte("token-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"foreign": foreign,
		"expired": expired,
		"no user": noUser,
	} {
		if _, err := p.ParseToken(token); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestAuthenticateBearer(t *testing.T) {
	p := newTestProvider()
	token, err := p.IssueToken(7)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if id, err := p.Authenticate(r); err != nil || id != 7 {
		t.Errorf("Authenticate = %d, %v", id, err)
	}

	r.Header.Set("Authorization", "Basic abc")
	if _, err := p.Authenticate(r); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for basic auth, got %v", err)
	}
}

func TestSessionCookie(t *testing.T) {
	p := newTestProvider()

	login := httptest.NewRecorder()
	if err := p.StartSession(login, httptest.NewRequest(http.MethodPost, "/login", nil), 9); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	cookies := login.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != SessionName {
		t.Fatalf("expected %s cookie, got %v", SessionName, cookies)
	}

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.AddCookie(cookies[0])
	if id, err := p.Authenticate(r); err != nil || id != 9 {
		t.Fatalf("Authenticate via cookie = %d, %v", id, err)
	}

	logout := httptest.NewRecorder()
	if err := p.EndSession(logout, r); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	cleared := logout.Result().Cookies()
	if len(cleared) == 0 || cleared[0].MaxAge >= 0 {
		t.Errorf("expected the cookie to be expired, got %v", cleared)
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/me", nil)
	if _, err := p.Authenticate(anonymous); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated without credentials, got %v", err)
	}
}

func TestUserIDContext(t *testing.T) {
	if _, ok := UserID(context.Background()); ok {
		t.Errorf("expected no user in empty context")
	}
	ctx := WithUserID(context.Background(), 3)
	if id, ok := UserID(ctx); !ok || id != 3 {
		t.Errorf("UserID = %d, %v", id, ok)
	}
}
