package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"yamdb/internal/clock"
	"yamdb/internal/domain"
	"yamdb/internal/notify"
	"yamdb/internal/service"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

const testSecret = "api-test-secret-api-test-secret-api-test"

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) Send(_ context.Context, to string, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = strings.TrimPrefix(msg.Body, "Your confirmation code: ")
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// quotaLimiter allows the first n calls per key.
type quotaLimiter struct {
	mu    sync.Mutex
	n     int
	calls map[string]int
}

func (l *quotaLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[key]++
	return l.calls[key] <= l.n
}

type testServer struct {
	srv    *httptest.Server
	mail   *mailbox
	stores store.Stores
}

func newTestServer(t *testing.T, limiter RateLimiter) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Func(func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) })
	ts := &testServer{mail: &mailbox{codes: map[string]string{}}, stores: store.NewMemoryStores()}

	codes, err := auth.NewCodeGenerator(testSecret)
	if err != nil {
		t.Fatalf("code generator: %v", err)
	}
	tm, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	tokens, err := service.NewTokenService(codes, tm, ts.stores.Users, logger)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	v := domain.NewValidator()
	h := NewHTTPHandler(
		service.NewIdentityService(ts.stores.Users, tokens, ts.mail, v, clk, logger),
		tokens,
		service.NewCatalogService(ts.stores.Catalog, v, clk, logger),
		service.NewReviewEngine(ts.stores.Catalog, ts.stores.Reviews, v, clk, logger),
		limiter,
		logger,
	)
	ts.srv = httptest.NewServer(NewHTTPRouter(h))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+"/api/v1"+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// login registers username and exchanges the mailed code for a token.
func (ts *testServer) login(t *testing.T, username string, role domain.Role) string {
	t.Helper()
	email := username + "@example.com"
	if code := ts.do(t, http.MethodPost, "/auth/signup/", "", map[string]string{"username": username, "email": email}, nil); code != http.StatusOK {
		t.Fatalf("signup %s: status %d", username, code)
	}
	if role != domain.RoleUser {
		u, err := ts.stores.Users.GetByUsername(context.Background(), username)
		if err != nil {
			t.Fatalf("lookup %s: %v", username, err)
		}
		u.Role = role
		if err := ts.stores.Users.Update(context.Background(), u); err != nil {
			t.Fatalf("promote %s: %v", username, err)
		}
	}
	// Повторный signup выдаёт код, соответствующий текущему состоянию.
	ts.do(t, http.MethodPost, "/auth/signup/", "", map[string]string{"username": username, "email": email}, nil)

	var tok domain.TokenResponse
	code := ts.do(t, http.MethodPost, "/auth/token/", "", map[string]string{
		"username":          username,
		"confirmation_code": ts.mail.code(email),
	}, &tok)
	if code != http.StatusOK || tok.Token == "" {
		t.Fatalf("token %s: status %d", username, code)
	}
	return tok.Token
}

func TestSignupAndProfile(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "alice", domain.RoleUser)

	var me userResponse
	if code := ts.do(t, http.MethodGet, "/users/me/", token, nil, &me); code != http.StatusOK {
		t.Fatalf("GET me: status %d", code)
	}
	if me.Username != "alice" || me.Role != domain.RoleUser || me.IsStaff {
		t.Fatalf("unexpected profile: %+v", me)
	}

	if code := ts.do(t, http.MethodGet, "/users/me/", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous GET me: want 401, got %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/users/me/", "garbage", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: want 401, got %d", code)
	}
	if code := ts.do(t, http.MethodPatch, "/users/me/", token, map[string]string{"role": "admin"}, nil); code != http.StatusBadRequest {
		t.Fatalf("self role change: want 400, got %d", code)
	}
	var updated userResponse
	if code := ts.do(t, http.MethodPatch, "/users/me/", token, map[string]string{"bio": "reader"}, &updated); code != http.StatusOK || updated.Bio != "reader" {
		t.Fatalf("PATCH me: status %d, bio %q", code, updated.Bio)
	}
}

func TestSignupErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	if code := ts.do(t, http.MethodPost, "/auth/signup/", "", map[string]string{"username": "me", "email": "me@example.com"}, nil); code != http.StatusBadRequest {
		t.Fatalf("reserved name: want 400, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/auth/signup/", "", map[string]string{"username": "bob", "email": "bob@example.com"}, nil); code != http.StatusOK {
		t.Fatalf("signup: got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/auth/signup/", "", map[string]string{"username": "bob", "email": "other@example.com"}, nil); code != http.StatusConflict {
		t.Fatalf("taken username: want 409, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/auth/token/", "", map[string]string{"username": "bob", "confirmation_code": "nope"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad code: want 400, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/auth/token/", "", map[string]string{"username": "ghost", "confirmation_code": "x"}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown user: want 404, got %d", code)
	}
}

func TestUsersAdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "root", domain.RoleAdmin)
	user := ts.login(t, "carol", domain.RoleUser)

	if code := ts.do(t, http.MethodGet, "/users/", user, nil, nil); code != http.StatusForbidden {
		t.Fatalf("user lists users: want 403, got %d", code)
	}
	var list struct {
		Count   int            `json:"count"`
		Results []userResponse `json:"results"`
	}
	if code := ts.do(t, http.MethodGet, "/users/?search=car", admin, nil, &list); code != http.StatusOK || list.Count != 1 {
		t.Fatalf("admin list: status %d, count %d", code, list.Count)
	}
	var created userResponse
	code := ts.do(t, http.MethodPost, "/users/", admin, map[string]string{"username": "dave", "email": "dave@example.com", "role": "moderator"}, &created)
	if code != http.StatusCreated || created.Role != domain.RoleModerator {
		t.Fatalf("create user: status %d, %+v", code, created)
	}
	if code := ts.do(t, http.MethodDelete, "/users/dave/", admin, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete user: want 204, got %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/users/dave/", admin, nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted user: want 404, got %d", code)
	}
}

func TestCatalogAndReviewsFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "root", domain.RoleAdmin)
	alice := ts.login(t, "alice", domain.RoleUser)
	bob := ts.login(t, "bob", domain.RoleUser)
	mod := ts.login(t, "mod", domain.RoleModerator)

	if code := ts.do(t, http.MethodPost, "/categories/", alice, map[string]string{"name": "Films"}, nil); code != http.StatusForbidden {
		t.Fatalf("user creates category: want 403, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/categories/", "", map[string]string{"name": "Films"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous creates category: want 401, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/categories/", admin, map[string]string{"name": "Films", "slug": "films"}, nil); code != http.StatusCreated {
		t.Fatalf("create category: got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/categories/", admin, map[string]string{"name": "Films 2", "slug": "films"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate slug: want 409, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/genres/", admin, map[string]string{"name": "Drama", "slug": "drama"}, nil); code != http.StatusCreated {
		t.Fatalf("create genre: got %d", code)
	}

	var title domain.Title
	code := ts.do(t, http.MethodPost, "/titles/", admin, map[string]any{
		"name": "Stalker", "year": 1979, "genre": []string{"drama"}, "category": "films",
	}, &title)
	if code != http.StatusCreated || title.ID == 0 || title.Rating != nil {
		t.Fatalf("create title: status %d, %+v", code, title)
	}
	if code := ts.do(t, http.MethodPost, "/titles/", admin, map[string]any{"name": "Future", "year": 3000, "genre": []string{}, "category": "films"}, nil); code != http.StatusBadRequest {
		t.Fatalf("future year: want 400, got %d", code)
	}

	base := "/titles/" + itoa(title.ID)
	var review domain.Review
	if code := ts.do(t, http.MethodPost, base+"/reviews/", alice, map[string]any{"text": "great", "score": 8}, &review); code != http.StatusCreated {
		t.Fatalf("create review: got %d", code)
	}
	if review.Author != "alice" {
		t.Fatalf("review author = %q", review.Author)
	}
	if code := ts.do(t, http.MethodPost, base+"/reviews/", alice, map[string]any{"text": "again", "score": 9}, nil); code != http.StatusConflict {
		t.Fatalf("second review: want 409, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, base+"/reviews/", bob, map[string]any{"text": "meh", "score": 11}, nil); code != http.StatusBadRequest {
		t.Fatalf("score 11: want 400, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, base+"/reviews/", bob, map[string]any{"text": "meh", "score": 4}, nil); code != http.StatusCreated {
		t.Fatalf("bob review: got %d", code)
	}

	var rated domain.Title
	if code := ts.do(t, http.MethodGet, base+"/", "", nil, &rated); code != http.StatusOK {
		t.Fatalf("get title: got %d", code)
	}
	if rated.Rating == nil || *rated.Rating != 6 {
		t.Fatalf("rating = %v, want 6", rated.Rating)
	}

	reviewPath := base + "/reviews/" + itoa(review.ID) + "/"
	if code := ts.do(t, http.MethodPatch, reviewPath, bob, map[string]any{"text": "hijack"}, nil); code != http.StatusForbidden {
		t.Fatalf("foreign edit: want 403, got %d", code)
	}
	if code := ts.do(t, http.MethodPatch, reviewPath, mod, map[string]any{"text": "moderated"}, nil); code != http.StatusOK {
		t.Fatalf("moderator edit: got %d", code)
	}

	var comment domain.Comment
	if code := ts.do(t, http.MethodPost, reviewPath+"comments/", bob, map[string]string{"text": "disagree"}, &comment); code != http.StatusCreated {
		t.Fatalf("create comment: got %d", code)
	}
	var comments struct {
		Count int `json:"count"`
	}
	if code := ts.do(t, http.MethodGet, reviewPath+"comments/", "", nil, &comments); code != http.StatusOK || comments.Count != 1 {
		t.Fatalf("list comments: status %d, count %d", code, comments.Count)
	}
	if code := ts.do(t, http.MethodGet, "/titles/999/reviews/"+itoa(review.ID)+"/comments/", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("comments under wrong title: want 404, got %d", code)
	}

	if code := ts.do(t, http.MethodDelete, base+"/", admin, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete title: got %d", code)
	}
	if code := ts.do(t, http.MethodGet, reviewPath, "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("review after title delete: want 404, got %d", code)
	}
}

func TestTitleFilters(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "root", domain.RoleAdmin)
	ts.do(t, http.MethodPost, "/categories/", admin, map[string]string{"name": "Books", "slug": "books"}, nil)
	ts.do(t, http.MethodPost, "/genres/", admin, map[string]string{"name": "Sci-Fi", "slug": "sci-fi"}, nil)
	ts.do(t, http.MethodPost, "/titles/", admin, map[string]any{"name": "Solaris", "year": 1961, "genre": []string{"sci-fi"}, "category": "books"}, nil)
	ts.do(t, http.MethodPost, "/titles/", admin, map[string]any{"name": "Emma", "year": 1815, "genre": []string{}, "category": "books"}, nil)

	var list struct {
		Count   int            `json:"count"`
		Results []domain.Title `json:"results"`
	}
	if code := ts.do(t, http.MethodGet, "/titles/?genre=sci-fi", "", nil, &list); code != http.StatusOK || list.Count != 1 || list.Results[0].Name != "Solaris" {
		t.Fatalf("genre filter: status %d, %+v", code, list)
	}
	if code := ts.do(t, http.MethodGet, "/titles/?year=1815", "", nil, &list); code != http.StatusOK || list.Count != 1 || list.Results[0].Name != "Emma" {
		t.Fatalf("year filter: status %d, %+v", code, list)
	}
	if code := ts.do(t, http.MethodGet, "/titles/?year=abc", "", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad year: want 400, got %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/titles/?limit=1", "", nil, &list); code != http.StatusOK || list.Count != 2 || len(list.Results) != 1 {
		t.Fatalf("pagination: status %d, count %d, page %d", code, list.Count, len(list.Results))
	}
}

func TestAuthRateLimited(t *testing.T) {
	ts := newTestServer(t, &quotaLimiter{n: 2, calls: map[string]int{}})
	body := map[string]string{"username": "eve", "email": "eve@example.com"}
	for i := 0; i < 2; i++ {
		if code := ts.do(t, http.MethodPost, "/auth/signup/", "", body, nil); code != http.StatusOK {
			t.Fatalf("attempt %d: got %d", i, code)
		}
	}
	if code := ts.do(t, http.MethodPost, "/auth/signup/", "", body, nil); code != http.StatusTooManyRequests {
		t.Fatalf("over quota: want 429, got %d", code)
	}
	// Остальные маршруты не ограничиваются.
	if code := ts.do(t, http.MethodGet, "/titles/", "", nil, nil); code != http.StatusOK {
		t.Fatalf("titles: got %d", code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("X-Request-Id = %q", got)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
