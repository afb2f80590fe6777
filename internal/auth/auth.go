// Package auth is the session and identity provider: it hashes credentials, issues
// bearer tokens and cookie sessions, and resolves the user id behind a request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionName = "playerhub-session"
	sessionKey  = "user_id"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type contextKey string

const userContextKey contextKey = "user_id"

// Claims is the payload of a bearer token.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.StandardClaims
}

type Provider struct {
	secret []byte
	ttl    time.Duration
	store  *sessions.CookieStore
}

// NewProvider signs tokens with tokenSecret and authenticates cookies with
// sessionSecret. Both sessions and tokens live for ttl.
func NewProvider(tokenSecret, sessionSecret string, ttl time.Duration, secureCookies bool) *Provider {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
	return &Provider{secret: []byte(tokenSecret), ttl: ttl, store: store}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (p *Provider) IssueToken(userID int64) (string, error) {
	issued := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  issued.Unix(),
			ExpiresAt: issued.Add(p.ttl).Unix(),
		},
	})
	return token.SignedString(p.secret)
}

func (p *Provider) ParseToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("token without user: %w", ErrUnauthenticated)
	}
	return claims.UserID, nil
}

// StartSession writes the session cookie binding the browser to userID.
func (p *Provider) StartSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, _ := p.store.Get(r, SessionName)
	session.Values[sessionKey] = userID
	session.Options.MaxAge = int(p.ttl.Seconds())
	return session.Save(r, w)
}

func (p *Provider) EndSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := p.store.Get(r, SessionName)
	delete(session.Values, sessionKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Authenticate resolves the user id of a request from its bearer token, falling
// back to the session cookie.
func (p *Provider) Authenticate(r *http.Request) (int64, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return 0, fmt.Errorf("malformed authorization header: %w", ErrUnauthenticated)
		}
		return p.ParseToken(strings.TrimPrefix(header, "Bearer "))
	}

	session, err := p.store.Get(r, SessionName)
	if err != nil {
		return 0, fmt.Errorf("bad session cookie: %w", ErrUnauthenticated)
	}
	userID, ok := session.Values[sessionKey].(int64)
	if !ok || userID <= 0 {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userContextKey).(int64)
	return id, ok
}
