package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"bookwyrm/pkg/domain"
)

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestAdminBookGridActions(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, adminCookie := env.register(t, "Admin", "admin@example.com")
	env.makeAdmin(t, admin)
	reader, _ := env.register(t, "Reader", "reader@example.com")

	created := env.postForm(t, "/admin/books", adminCookie, url.Values{
		"actionType": {"create"},
		"title":      {"The Left Hand of Darkness"},
		"author":     {"Ursula K. Le Guin"},
		"isbn":       {"978-0441478125"},
	})
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", created.StatusCode)
	}
	payload := decodeJSON[map[string]any](t, created)
	if payload["success"] != true {
		t.Fatalf("expected success payload, got %v", payload)
	}

	grid := env.get(t, "/admin/books", adminCookie)
	if grid.StatusCode != http.StatusOK {
		t.Fatalf("grid expected 200, got %d", grid.StatusCode)
	}
	listing := decodeJSON[struct {
		Books []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"books"`
	}](t, grid)
	if len(listing.Books) != 1 {
		t.Fatalf("expected one book, got %d", len(listing.Books))
	}
	bookID := listing.Books[0].ID

	// A review on the book blocks deletion with an actionable message.
	if _, _, err := env.app.CreateReview(reader, bookID, 5, "kept me up all night"); err != nil {
		t.Fatalf("create review: %v", err)
	}
	blocked := env.postForm(t, "/admin/books", adminCookie, url.Values{
		"actionType": {"delete"},
		"id":         {bookID},
	})
	if blocked.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete with reviews expected 400, got %d", blocked.StatusCode)
	}
	errPayload := decodeJSON[map[string]string](t, blocked)
	if !strings.Contains(errPayload["error"], "associated reviews") {
		t.Fatalf("expected review-block message, got %q", errPayload["error"])
	}

	updated := env.postForm(t, "/admin/books", adminCookie, url.Values{
		"actionType": {"update"},
		"id":         {bookID},
		"title":      {"The Dispossessed"},
		"author":     {"Ursula K. Le Guin"},
	})
	if updated.StatusCode != http.StatusOK {
		t.Fatalf("update expected 200, got %d", updated.StatusCode)
	}
	updated.Body.Close()
}

func TestAdminUserGridActions(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, adminCookie := env.register(t, "Admin", "admin@example.com")
	env.makeAdmin(t, admin)

	created := env.postForm(t, "/admin/users", adminCookie, url.Values{
		"actionType": {"create"},
		"name":       {"Grid User"},
		"email":      {"grid@example.com"},
		"tier":       {"BASIC"},
		"isAdmin":    {"false"},
	})
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", created.StatusCode)
	}
	created.Body.Close()

	dup := env.postForm(t, "/admin/users", adminCookie, url.Values{
		"actionType": {"create"},
		"name":       {"Dup"},
		"email":      {"grid@example.com"},
	})
	if dup.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email expected 400, got %d", dup.StatusCode)
	}
	dup.Body.Close()

	grid := env.get(t, "/admin/users", adminCookie)
	listing := decodeJSON[struct {
		Users []domain.User `json:"users"`
	}](t, grid)
	if len(listing.Users) != 2 {
		t.Fatalf("expected admin and grid user, got %d", len(listing.Users))
	}
	for _, u := range listing.Users {
		if u.PasswordHash != "" {
			t.Fatalf("password hash must never serialize, got %+v", u)
		}
	}
}

func TestReviewAPIFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	_, cookie := env.register(t, "Reader", "reader@example.com")
	book, err := env.app.CreateBook("", "Annihilation", "Jeff VanderMeer", "")
	if err != nil {
		t.Fatalf("create book: %v", err)
	}

	// Anonymous writes are rejected, anonymous reads are not.
	anonPost, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/reviews", strings.NewReader(`{"bookId":"`+book.ID+`","rating":5,"review":"eerie"}`))
	anonPost.Header.Set("Content-Type", "application/json")
	resp := env.do(t, anonPost)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create expected 401, got %d", resp.StatusCode)
	}

	post, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/reviews", strings.NewReader(`{"bookId":"`+book.ID+`","rating":5,"review":"eerie"}`))
	post.Header.Set("Content-Type", "application/json")
	post.Header.Set("Cookie", cookie)
	resp = env.do(t, post)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", resp.StatusCode)
	}
	createPayload := decodeJSON[struct {
		Review domain.Review `json:"review"`
		User   domain.User   `json:"user"`
	}](t, resp)
	if createPayload.Review.Rating != 5 || createPayload.User.Tier != domain.TierBasic {
		t.Fatalf("unexpected create payload: %+v", createPayload)
	}

	again, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/reviews", strings.NewReader(`{"bookId":"`+book.ID+`","rating":1,"review":"changed my mind"}`))
	again.Header.Set("Content-Type", "application/json")
	again.Header.Set("Cookie", cookie)
	resp = env.do(t, again)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate review expected 400, got %d", resp.StatusCode)
	}

	bad := env.get(t, "/api/reviews?sort=password", "")
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown sort expected 400, got %d", bad.StatusCode)
	}

	list := env.get(t, "/api/reviews?page=1&limit="+strconv.Itoa(10), "")
	listPayload := decodeJSON[struct {
		Data []domain.ReviewWithRefs `json:"data"`
		Meta struct {
			Total int `json:"total"`
			Pages int `json:"pages"`
		} `json:"meta"`
	}](t, list)
	if listPayload.Meta.Total != 1 || len(listPayload.Data) != 1 {
		t.Fatalf("unexpected listing: %+v", listPayload)
	}
	if listPayload.Data[0].BookTitle != "Annihilation" || listPayload.Data[0].UserName != "Reader" {
		t.Fatalf("expected joined display fields, got %+v", listPayload.Data[0])
	}
}
