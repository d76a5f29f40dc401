package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/devtitozzzzg/todo/internal/auth"
	"github.com/devtitozzzzg/todo/internal/config"
	"github.com/devtitozzzzg/todo/internal/dto"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", cookie)
}

func sendJSON(t *testing.T, h http.Handler, method, path string, v any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = strings.NewReader(string(b))
	}
	return do(t, h, method, path, body, "application/json", cookie)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", auth.CookieName)
	return nil
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body %q)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func signupAndLogin(t *testing.T, h http.Handler, username, password string) *http.Cookie {
	t.Helper()
	creds := url.Values{"username": {username}, "password": {password}}
	expectRedirect(t, postForm(t, h, "/signup", creds, nil), "/login")
	w := postForm(t, h, "/login", creds, nil)
	expectRedirect(t, w, "/")
	return sessionCookie(t, w)
}

func TestPages_TodoLifecycle(t *testing.T) {
	h := newTestApp(t).Router()
	cookie := signupAndLogin(t, h, "bob", "secret")

	w := do(t, h, http.MethodGet, "/", nil, "", cookie)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Nothing to do yet.") {
		t.Fatalf("empty index: status %d body %q", w.Code, w.Body.String())
	}

	expectRedirect(t, postForm(t, h, "/create", url.Values{"title": {"Buy milk"}, "body": {"2 liters"}}, cookie), "/")

	w = do(t, h, http.MethodGet, "/", nil, "", cookie)
	if !strings.Contains(w.Body.String(), "Buy milk") {
		t.Fatalf("index missing created todo: %q", w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/1/detail", nil, "", cookie)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "2 liters") {
		t.Fatalf("detail: status %d body %q", w.Code, w.Body.String())
	}
	expectRedirect(t, postForm(t, h, "/1/detail", url.Values{}, cookie), "/")

	w = do(t, h, http.MethodGet, "/1/edit", nil, "", cookie)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Buy milk") {
		t.Fatalf("edit page: status %d body %q", w.Code, w.Body.String())
	}
	expectRedirect(t, postForm(t, h, "/1/edit", url.Values{"title": {"Buy oat milk"}, "body": {"1 liter"}}, cookie), "/")

	w = do(t, h, http.MethodGet, "/1/detail", nil, "", cookie)
	if !strings.Contains(w.Body.String(), "Buy oat milk") {
		t.Fatalf("detail after edit: %q", w.Body.String())
	}

	expectRedirect(t, do(t, h, http.MethodGet, "/1/delete", nil, "", cookie), "/")
	if w := do(t, h, http.MethodGet, "/1/detail", nil, "", cookie); w.Code != http.StatusNotFound {
		t.Errorf("detail after delete: status = %d, want 404", w.Code)
	}
}

func TestPages_TodosAreShared(t *testing.T) {
	h := newTestApp(t).Router()
	alice := signupAndLogin(t, h, "alice", "pw-a")
	bob := signupAndLogin(t, h, "bob", "pw-b")

	expectRedirect(t, postForm(t, h, "/create", url.Values{"title": {"Team lunch"}, "body": {"Friday"}}, alice), "/")

	w := do(t, h, http.MethodGet, "/", nil, "", bob)
	if !strings.Contains(w.Body.String(), "Team lunch") {
		t.Errorf("bob does not see alice's todo: %q", w.Body.String())
	}
}

func TestPages_RequireSession(t *testing.T) {
	h := newTestApp(t).Router()
	forged := &http.Cookie{Name: auth.CookieName, Value: "not-a-token"}

	tests := []struct {
		name   string
		method string
		path   string
		cookie *http.Cookie
	}{
		{name: "index", method: http.MethodGet, path: "/"},
		{name: "create page", method: http.MethodGet, path: "/create"},
		{name: "create submit", method: http.MethodPost, path: "/create"},
		{name: "edit", method: http.MethodGet, path: "/1/edit"},
		{name: "delete", method: http.MethodGet, path: "/1/delete"},
		{name: "detail", method: http.MethodGet, path: "/1/detail"},
		{name: "logout", method: http.MethodPost, path: "/logout"},
		{name: "forged cookie", method: http.MethodGet, path: "/", cookie: forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectRedirect(t, do(t, h, tt.method, tt.path, nil, "", tt.cookie), "/login")
		})
	}
}

func TestPages_SignupAndLoginErrors(t *testing.T) {
	h := newTestApp(t).Router()
	signupAndLogin(t, h, "bob", "secret")

	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantText   string
	}{
		{
			name:       "duplicate username",
			path:       "/signup",
			form:       url.Values{"username": {"bob"}, "password": {"other"}},
			wantStatus: http.StatusConflict,
			wantText:   "username already taken",
		},
		{
			name:       "signup missing password",
			path:       "/signup",
			form:       url.Values{"username": {"carol"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "signup username too long",
			path:       "/signup",
			form:       url.Values{"username": {strings.Repeat("x", 31)}, "password": {"pw"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "signup password over 72 bytes",
			path:       "/signup",
			form:       url.Values{"username": {"carol"}, "password": {strings.Repeat("p", 73)}},
			wantStatus: http.StatusBadRequest,
			wantText:   `action="/signup"`,
		},
		{
			name:       "wrong password",
			path:       "/login",
			form:       url.Values{"username": {"bob"}, "password": {"wrong"}},
			wantStatus: http.StatusUnauthorized,
			wantText:   "invalid username or password",
		},
		{
			name:       "unknown user",
			path:       "/login",
			form:       url.Values{"username": {"nobody"}, "password": {"secret"}},
			wantStatus: http.StatusUnauthorized,
			wantText:   "invalid username or password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(t, h, tt.path, tt.form, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantText != "" && !strings.Contains(w.Body.String(), tt.wantText) {
				t.Errorf("body missing %q", tt.wantText)
			}
			for _, c := range w.Result().Cookies() {
				if c.Name == auth.CookieName && c.Value != "" {
					t.Errorf("failed %s set a session cookie", tt.path)
				}
			}
		})
	}
}

func TestPages_TodoErrors(t *testing.T) {
	h := newTestApp(t).Router()
	cookie := signupAndLogin(t, h, "bob", "secret")
	expectRedirect(t, postForm(t, h, "/create", url.Values{"title": {"existing"}, "body": {"b"}}, cookie), "/")

	tests := []struct {
		name       string
		method     string
		path       string
		form       url.Values
		wantStatus int
	}{
		{name: "create missing body", method: http.MethodPost, path: "/create", form: url.Values{"title": {"t"}}, wantStatus: http.StatusBadRequest},
		{name: "create title too long", method: http.MethodPost, path: "/create", form: url.Values{"title": {strings.Repeat("t", 51)}, "body": {"b"}}, wantStatus: http.StatusBadRequest},
		{name: "edit missing", method: http.MethodGet, path: "/99/edit", wantStatus: http.StatusNotFound},
		{name: "edit submit missing", method: http.MethodPost, path: "/99/edit", form: url.Values{"title": {"t"}, "body": {"b"}}, wantStatus: http.StatusNotFound},
		{name: "edit submit invalid on missing todo", method: http.MethodPost, path: "/99/edit", form: url.Values{"title": {"t"}}, wantStatus: http.StatusNotFound},
		{name: "edit submit invalid", method: http.MethodPost, path: "/1/edit", form: url.Values{"title": {"t"}}, wantStatus: http.StatusBadRequest},
		{name: "delete missing", method: http.MethodGet, path: "/99/delete", wantStatus: http.StatusNotFound},
		{name: "detail missing", method: http.MethodGet, path: "/99/detail", wantStatus: http.StatusNotFound},
		{name: "invalid id", method: http.MethodGet, path: "/abc/detail", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				w = postForm(t, h, tt.path, tt.form, cookie)
			} else {
				w = do(t, h, tt.method, tt.path, nil, "", cookie)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestPages_Logout(t *testing.T) {
	h := newTestApp(t).Router()
	cookie := signupAndLogin(t, h, "bob", "secret")

	expectRedirect(t, do(t, h, http.MethodGet, "/logout", nil, "", cookie), "/login")
	expectRedirect(t, do(t, h, http.MethodGet, "/", nil, "", cookie), "/login")
}

func TestAPI_Flow(t *testing.T) {
	h := newTestApp(t).Router()

	w := sendJSON(t, h, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Username: "bob", Password: "secret"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %q", w.Code, w.Body.String())
	}
	cookie := sessionCookie(t, w)

	w = sendJSON(t, h, http.MethodGet, "/api/v1/auth/me", nil, cookie)
	var me dto.UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil || me.Username != "bob" {
		t.Fatalf("me = %+v, err %v", me, err)
	}

	w = sendJSON(t, h, http.MethodPost, "/api/v1/todos", dto.TodoForm{Title: "Buy milk", Body: "2 liters"}, cookie)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %q", w.Code, w.Body.String())
	}
	var created dto.TodoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	title := "Buy oat milk"
	w = sendJSON(t, h, http.MethodPatch, "/api/v1/todos/1", dto.UpdateTodoRequest{Title: &title}, cookie)
	var updated dto.TodoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if updated.Title != title || updated.Body != "2 liters" {
		t.Errorf("updated = %+v, want new title and old body", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	w = sendJSON(t, h, http.MethodGet, "/api/v1/todos", nil, cookie)
	var list dto.ListTodosResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Errorf("list = %+v", list.Items)
	}

	if w := sendJSON(t, h, http.MethodDelete, "/api/v1/todos/1", nil, cookie); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := sendJSON(t, h, http.MethodGet, "/api/v1/todos/1", nil, cookie); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}

	if w := sendJSON(t, h, http.MethodPost, "/api/v1/auth/logout", nil, cookie); w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d", w.Code)
	}
	if w := sendJSON(t, h, http.MethodGet, "/api/v1/auth/me", nil, cookie); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want 401", w.Code)
	}
}

func TestAPI_Errors(t *testing.T) {
	h := newTestApp(t).Router()
	w := sendJSON(t, h, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Username: "bob", Password: "secret"}, nil)
	cookie := sessionCookie(t, w)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		cookie     *http.Cookie
		wantStatus int
	}{
		{name: "list without session", method: http.MethodGet, path: "/api/v1/todos", wantStatus: http.StatusUnauthorized},
		{name: "me without session", method: http.MethodGet, path: "/api/v1/auth/me", wantStatus: http.StatusUnauthorized},
		{name: "register taken", method: http.MethodPost, path: "/api/v1/auth/register", body: dto.RegisterRequest{Username: "bob", Password: "x"}, wantStatus: http.StatusConflict},
		{name: "register password over 72 bytes", method: http.MethodPost, path: "/api/v1/auth/register", body: dto.RegisterRequest{Username: "carol", Password: strings.Repeat("p", 73)}, wantStatus: http.StatusBadRequest},
		{name: "login wrong password", method: http.MethodPost, path: "/api/v1/auth/login", body: dto.LoginRequest{Username: "bob", Password: "x"}, wantStatus: http.StatusUnauthorized},
		{name: "login missing fields", method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "create invalid", method: http.MethodPost, path: "/api/v1/todos", body: dto.TodoForm{Title: "t"}, cookie: cookie, wantStatus: http.StatusBadRequest},
		{name: "get missing", method: http.MethodGet, path: "/api/v1/todos/42", cookie: cookie, wantStatus: http.StatusNotFound},
		{name: "get bad id", method: http.MethodGet, path: "/api/v1/todos/x", cookie: cookie, wantStatus: http.StatusBadRequest},
		{name: "delete missing", method: http.MethodDelete, path: "/api/v1/todos/42", cookie: cookie, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := sendJSON(t, h, tt.method, tt.path, tt.body, tt.cookie); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	h := newTestApp(t).Router()
	_ = do(t, h, http.MethodGet, "/health", nil, "", nil)

	tests := []struct {
		path     string
		wantText string
	}{
		{path: "/health", wantText: `"ok":true`},
		{path: "/version", wantText: `"version"`},
		{path: "/metrics", wantText: "todo_http_requests_total"},
		{path: "/swagger-doc.json", wantText: `"/todos/{id}"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, nil, "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantText) {
				t.Errorf("body missing %q", tt.wantText)
			}
		})
	}
}

func TestApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	// A list cached by an earlier run against a different database.
	if err := mr.Set("todo:list", `[{"ID":99,"Title":"ghost","Body":"x","CreatedAt":"2020-01-01T00:00:00Z"}]`); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", mr.Addr())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	h := a.Router()

	if mr.Exists("todo:list") {
		t.Fatal("startup should flush the todo cache")
	}

	cookie := signupAndLogin(t, h, "bob", "secret")
	if keys := mr.Keys(); !containsPrefix(keys, "session:") {
		t.Errorf("no session stored in Redis, keys %v", keys)
	}

	w := do(t, h, http.MethodGet, "/", nil, "", cookie)
	if strings.Contains(w.Body.String(), "ghost") {
		t.Error("index served the stale cached list")
	}
	expectRedirect(t, postForm(t, h, "/create", url.Values{"title": {"Buy milk"}, "body": {"2 liters"}}, cookie), "/")
	w = do(t, h, http.MethodGet, "/", nil, "", cookie)
	if !strings.Contains(w.Body.String(), "Buy milk") {
		t.Errorf("index after create missing todo: %q", w.Body.String())
	}
}

func containsPrefix(keys []string, prefix string) bool {
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
