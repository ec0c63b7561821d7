package app

import (
	"errors"
	"testing"
	"time"

	"bookwyrm/internal/session"
	"bookwyrm/pkg/storage"
	"bookwyrm/pkg/store"
)

const testPassword = "Str0ngPass!"

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := New(Config{
		SessionSecret: "unit-test-session-secret",
		SessionTTL:    time.Hour,
		Store:         mem,
		Sessions:      store.NewMemorySessionStore(),
		Covers:        storage.NewMemoryObjectStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem
}

func cookieHeader(token string) string {
	return session.CookieName + "=" + token
}

func TestLoginDoesNotDistinguishUnknownEmailFromWrongPassword(t *testing.T) {
	a, _ := newTestApp(t)
	if _, _, err := a.Register("Reader", "reader@example.com", testPassword); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, wrongPass := a.Login("reader@example.com", "not-the-password")
	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", wrongPass)
	}
	_, _, unknown := a.Login("nobody@example.com", testPassword)
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected invalid credentials, got %v", unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("failure messages must match: %q vs %q", wrongPass, unknown)
	}

	user, token, err := a.Login("Reader@Example.COM", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "reader@example.com" || token == "" {
		t.Fatalf("unexpected login result: %+v token=%q", user, token)
	}
}

func TestRegisterEnforcesPolicyAndUniqueEmail(t *testing.T) {
	a, _ := newTestApp(t)

	if _, _, err := a.Register("Reader", "reader@example.com", "weak"); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak password: expected validation error, got %v", err)
	}

	user, _, err := a.Register("Reader", "reader@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Tier != "BASIC" || user.IsAdmin {
		t.Fatalf("new users must be BASIC non-admin, got %+v", user)
	}

	if _, _, err := a.Register("Other", "Reader@example.com", testPassword); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate email: expected conflict, got %v", err)
	}
}

func TestUserFromCookieReflectsPersistedRow(t *testing.T) {
	a, mem := newTestApp(t)
	registered, token, err := a.Register("Reader", "reader@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	header := cookieHeader(token)

	user, ok := a.UserFromCookie(header)
	if !ok || user.ID != registered.ID {
		t.Fatalf("expected session to resolve, got ok=%v user=%+v", ok, user)
	}

	// Privilege changes land on the next request; the cookie never caches
	// the admin flag.
	user.IsAdmin = true
	if err := mem.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	user, ok = a.UserFromCookie(header)
	if !ok || !user.IsAdmin {
		t.Fatalf("expected admin flag from the row, got ok=%v user=%+v", ok, user)
	}

	if err := a.Logout(header); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromCookie(header); ok {
		t.Fatalf("revoked session must not resolve")
	}
}

func TestAdminUserManagement(t *testing.T) {
	a, _ := newTestApp(t)

	created, err := a.AdminCreateUser("", "Grid User", "grid@example.com", "", false)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if created.Tier != "BASIC" {
		t.Fatalf("empty tier should default to BASIC, got %s", created.Tier)
	}

	if _, err := a.AdminCreateUser("", "Dup", "grid@example.com", "BASIC", false); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
	if _, err := a.AdminCreateUser("", "Bad Tier", "tier@example.com", "GOLD", false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected tier validation error, got %v", err)
	}

	other, err := a.AdminCreateUser("", "Other", "other@example.com", "PREMIER", true)
	if err != nil {
		t.Fatalf("admin create other: %v", err)
	}
	if _, err := a.AdminUpdateUser(other.ID, "Other", "grid@example.com", "PREMIER", true); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("update onto taken email: expected conflict, got %v", err)
	}

	updated, err := a.AdminUpdateUser(created.ID, "Renamed", "grid@example.com", "PREMIER", true)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Tier != "PREMIER" || !updated.IsAdmin {
		t.Fatalf("unexpected updated user: %+v", updated)
	}

	if err := a.AdminDeleteUser("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing user: expected not found, got %v", err)
	}
	if err := a.AdminDeleteUser(created.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
