// Package session implements the signed __session cookie: a compact JWT
// carrying a session ID and user ID, backed by a server-side session record.
// The cookie is an identity pointer only; role and tier are never read from it.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookwyrm/pkg/store"
)

// CookieName is the session cookie issued on login.
const CookieName = "__session"

const defaultLeeway = 30 * time.Second

// Claims is the validated payload of a session token.
type Claims struct {
	SID    string
	UserID string
}

// Codec signs and verifies session tokens (HS256).
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec builds a codec for the given server-held secret.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Codec{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign issues a token binding sid to userID.
func (c *Codec) Sign(sid, userID string) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sid,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	})
	return token.SignedString(c.secret)
}

// Verify validates signature and expiry and returns the claims.
// Any failure yields ok=false; extra claims a client may have smuggled in
// are ignored because only ID and Subject are read back.
func (c *Codec) Verify(tokenString string) (Claims, bool) {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, false
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		return Claims{}, false
	}
	return Claims{SID: claims.ID, UserID: claims.Subject}, true
}

// TokenFromCookieHeader extracts the session token from a raw Cookie header.
// It is a pure function of its input and reports absent on any malformation.
func TokenFromCookieHeader(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return "", false
	}
	for _, c := range cookies {
		if c.Name == CookieName && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Manager ties the codec to the server-side session store.
type Manager struct {
	codec *Codec
	store store.SessionStore
}

// NewManager builds a session manager.
func NewManager(codec *Codec, sessions store.SessionStore) *Manager {
	return &Manager{codec: codec, store: sessions}
}

// Create opens a session for the user and returns the signed cookie token.
func (m *Manager) Create(userID string) (string, error) {
	sid, err := m.store.NewSession(userID)
	if err != nil {
		return "", err
	}
	return m.codec.Sign(sid, userID)
}

// Read resolves a raw Cookie header to the session's user ID. Missing cookie,
// bad signature, expiry, and revoked or mismatched records all read as absent.
func (m *Manager) Read(cookieHeader string) (string, bool) {
	token, ok := TokenFromCookieHeader(cookieHeader)
	if !ok {
		return "", false
	}
	claims, ok := m.codec.Verify(token)
	if !ok {
		return "", false
	}
	userID, ok, err := m.store.GetUserIDBySession(claims.SID)
	if err != nil || !ok || userID != claims.UserID {
		return "", false
	}
	return userID, true
}

// Destroy revokes the session referenced by the raw Cookie header.
func (m *Manager) Destroy(cookieHeader string) error {
	token, ok := TokenFromCookieHeader(cookieHeader)
	if !ok {
		return nil
	}
	claims, ok := m.codec.Verify(token)
	if !ok {
		return nil
	}
	return m.store.DeleteSession(claims.SID)
}

// Cookie builds the Set-Cookie for a freshly issued token.
func (m *Manager) Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.codec.TTL() / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds the Set-Cookie that clears the session client-side.
func (m *Manager) ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
