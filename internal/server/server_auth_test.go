package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookwyrm/internal/app"
	"bookwyrm/internal/session"
	"bookwyrm/pkg/domain"
	"bookwyrm/pkg/storage"
	"bookwyrm/pkg/store"
)

const testPassword = "Str0ngPass!"

type testEnv struct {
	srv    *httptest.Server
	app    *app.App
	mem    *store.MemoryStore
	client *http.Client
}

func newTestEnv(t *testing.T, cfgMod func(*Config)) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		SessionSecret: "unit-test-session-secret",
		SessionTTL:    time.Hour,
		Store:         mem,
		Sessions:      store.NewMemorySessionStore(),
		Covers:        storage.NewMemoryObjectStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	redis := miniredis.RunT(t)
	cfg := Config{App: a, RedisAddr: redis.Addr()}
	if cfgMod != nil {
		cfgMod(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, app: a, mem: mem, client: client}
}

// register creates an account through the application core and returns the
// user plus a ready-to-send Cookie header value.
func (e *testEnv) register(t *testing.T, name, email string) (domain.User, string) {
	t.Helper()
	user, token, err := e.app.Register(name, email, testPassword)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user, session.CookieName + "=" + token
}

func (e *testEnv) makeAdmin(t *testing.T, user domain.User) {
	t.Helper()
	user.IsAdmin = true
	if err := e.mem.SaveUser(user); err != nil {
		t.Fatalf("save admin flag: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (e *testEnv) postForm(t *testing.T, path, cookie string, form url.Values) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path, cookie string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return e.do(t, req)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginFormSetsCookieAndRedirectsHome(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Reader", "reader@example.com")

	resp := env.postForm(t, "/login", "", url.Values{
		"actionType": {"login"},
		"email":      {"reader@example.com"},
		"password":   {testPassword},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}

	me := env.get(t, "/api/me", session.CookieName+"="+cookie.Value)
	defer me.Body.Close()
	if me.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /api/me with fresh cookie, got %d", me.StatusCode)
	}
}

func TestLoginJSONRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "Reader", "reader@example.com")

	body := strings.NewReader(`{"email":"reader@example.com","password":"wrong-password"}`)
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error message in body, got %v", payload)
	}
}

func TestRegisterJSONOpensSession(t *testing.T) {
	env := newTestEnv(t, nil)

	body := strings.NewReader(`{"actionType":"register","name":"New Reader","email":"new@example.com","password":"` + testPassword + `"}`)
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if sessionCookie(resp) == nil {
		t.Fatalf("expected session cookie on register")
	}
	var payload struct {
		User domain.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.User.Email != "new@example.com" || payload.User.Tier != domain.TierBasic {
		t.Fatalf("unexpected user payload: %+v", payload.User)
	}
}

func TestLogoutRevokesSessionEverywhere(t *testing.T) {
	env := newTestEnv(t, nil)
	_, cookie := env.register(t, "Reader", "reader@example.com")

	resp := env.postForm(t, "/logout", cookie, url.Values{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if c := sessionCookie(resp); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", c)
	}

	// The old cookie is dead on both route styles.
	me := env.get(t, "/api/me", cookie)
	me.Body.Close()
	if me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 from /api/me after logout, got %d", me.StatusCode)
	}
	page := env.get(t, "/reviews", cookie)
	page.Body.Close()
	if page.StatusCode != http.StatusSeeOther || page.Header.Get("Location") != "/login" {
		t.Fatalf("expected /reviews to bounce to /login, got %d %q", page.StatusCode, page.Header.Get("Location"))
	}
}

func TestAdminGateReadsPersistedRow(t *testing.T) {
	env := newTestEnv(t, nil)
	user, cookie := env.register(t, "Reader", "reader@example.com")

	// Anonymous and non-admin callers both land on the login page.
	anon := env.get(t, "/admin/books", "")
	anon.Body.Close()
	if anon.StatusCode != http.StatusSeeOther || anon.Header.Get("Location") != "/login" {
		t.Fatalf("anonymous: expected 303 to /login, got %d", anon.StatusCode)
	}
	denied := env.get(t, "/admin/books", cookie)
	denied.Body.Close()
	if denied.StatusCode != http.StatusSeeOther || denied.Header.Get("Location") != "/login" {
		t.Fatalf("non-admin: expected 303 to /login, got %d", denied.StatusCode)
	}

	// Granting the flag on the row opens the grid for the same session.
	env.makeAdmin(t, user)
	granted := env.get(t, "/admin/books", cookie)
	defer granted.Body.Close()
	if granted.StatusCode != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", granted.StatusCode)
	}
}
