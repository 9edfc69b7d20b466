package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/wikicomments/backend/internal/comments"
	"github.com/emilythestrangee/wikicomments/backend/internal/config"
	"github.com/emilythestrangee/wikicomments/backend/internal/database"
	"github.com/emilythestrangee/wikicomments/backend/internal/forms"
	"github.com/emilythestrangee/wikicomments/backend/internal/handlers"
	"github.com/emilythestrangee/wikicomments/backend/internal/middleware"
	"github.com/emilythestrangee/wikicomments/backend/internal/models"
	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
	"github.com/emilythestrangee/wikicomments/backend/internal/templates"
)

var secret = []byte("jwt-secret")

type fakeDB struct{ status string }

func (f fakeDB) Health() map[string]string {
	return map[string]string{"status": f.status}
}

type userStore struct {
	mu     sync.Mutex
	users  map[int]*models.User
	nextID int
}

func (s *userStore) GetUser(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (s *userStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *userStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *userStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = user
	return nil
}

type commentStore struct {
	mu       sync.Mutex
	comments map[int]models.Comment
	nextID   int
}

func (s *commentStore) GetComment(ctx context.Context, pk int) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[pk]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (s *commentStore) SaveComment(ctx context.Context, c *models.Comment, editorID int, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	}
	s.comments[c.ID] = *c
	return nil
}

type page struct{}

func (page) ContentType() string { return "pages.page" }
func (page) PK() string { return "1" }
func (page) String() string { return "Front Page" }

type testEnv struct {
	handler  http.Handler
	users    *userStore
	comments *commentStore
	signer   *forms.Signer
	ada      *models.User
	token    string
}

func newEnv(t *testing.T, db HealthChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := targets.NewRegistry()
	reg.MustRegister("pages.page", func(ctx context.Context, pk string) (targets.Target, error) {
		if _, err := strconv.Atoi(pk); err != nil {
			return nil, targets.ErrInvalidKey
		}
		if pk != "1" {
			return nil, targets.ErrNotFound
		}
		return page{}, nil
	})

	env := &testEnv{
		users:    &userStore{users: map[int]*models.User{}},
		comments: &commentStore{comments: map[int]models.Comment{}},
		signer:   forms.NewSigner("form-secret"),
	}
	env.ada = &models.User{Username: "ada", FullName: "Ada Lovelace", Email: "ada@example.com"}
	env.users.CreateUser(context.Background(), env.ada)

	token, err := middleware.IssueToken(secret, env.ada, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	env.token = token

	tmpl, err := templates.Load()
	if err != nil {
		t.Fatalf("templates.Load: %v", err)
	}

	svc := comments.NewService(env.comments, reg, env.signer, signals.NewBus(), comments.Options{FrontPage: "/"})
	h := handlers.NewHandler(svc, env.users, handlers.Config{JWTSecret: secret, TokenTTL: time.Hour}, logger)

	srv := NewServer(config.HTTPServer{Port: "0", AllowOrigins: []string{"http://localhost:3000"}}, Deps{
		DB:           db,
		Handler:      h,
		Templates:    tmpl,
		JWTSecret:    secret,
		ContentTypes: reg.Types(),
		Logger:       logger,
	})
	env.handler = srv.Handler()
	return env
}

func (env *testEnv) seed(c models.Comment) {
	env.comments.mu.Lock()
	defer env.comments.mu.Unlock()
	env.comments.comments[c.ID] = c
	if c.ID > env.comments.nextID {
		env.comments.nextID = c.ID
	}
}

func (env *testEnv) do(method, target string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) authed(ajax bool) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+env.token)
	if ajax {
		h.Set("X-Requested-With", "XMLHttpRequest")
	}
	return h
}

func (env *testEnv) postForm(body string) url.Values {
	sd := env.signer.SecurityData(page{}, time.Now())
	return url.Values{
		"content_type":  {sd.ContentType},
		"object_pk":     {sd.ObjectPK},
		"timestamp":     {sd.Timestamp},
		"security_hash": {sd.SecurityHash},
		"comment":       {body},
		"next":          {"/pages/front#comments"},
	}
}

func (env *testEnv) adaComment(id int) models.Comment {
	return models.Comment{
		ID:          id,
		ContentType: "pages.page",
		ObjectPK:    "1",
		UserID:      env.ada.ID,
		UserName:    env.ada.DisplayName(),
		Body:        "Original text.",
		SubmitDate:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		IsPublic:    true,
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"up", http.StatusOK},
		{"down", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			env := newEnv(t, fakeDB{status: tt.status})
			rec := env.do(http.MethodGet, "/health", nil, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestFrontPageListsContentTypes(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	rec := env.do(http.MethodGet, "/", nil, nil)

	var body struct {
		ContentTypes []string `json:"content_types"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ContentTypes) != 1 || body.ContentTypes[0] != "pages.page" {
		t.Errorf("content_types = %v", body.ContentTypes)
	}
}

func TestCommentRoutesRequireAuth(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	for _, path := range []string{"/comments/post/", "/comments/edit/", "/comments/delete/"} {
		rec := env.do(http.MethodPost, path, url.Values{"comment_pk": {"1"}}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
	if len(env.comments.comments) != 0 {
		t.Error("unauthenticated request persisted a comment")
	}
}

func TestWrongMethod(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	rec := env.do(http.MethodGet, "/comments/post/", nil, env.authed(false))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestPostCommentRedirectsWithFlash(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})

	rec := env.do(http.MethodPost, "/comments/post/", env.postForm("Hello wiki."), env.authed(false))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/pages/front?c=1#comments" {
		t.Errorf("Location = %q", loc)
	}

	saved, err := env.comments.GetComment(context.Background(), 1)
	if err != nil {
		t.Fatalf("comment not saved: %v", err)
	}
	if saved.UserName != "Ada Lovelace" || saved.IPAddress != "192.0.2.1" {
		t.Errorf("saved = %+v", saved)
	}

	var flashCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "messages" {
			flashCookie = c
		}
	}
	if flashCookie == nil {
		t.Fatal("no flash cookie set")
	}

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	req.AddCookie(flashCookie)
	msgRec := httptest.NewRecorder()
	env.handler.ServeHTTP(msgRec, req)

	var body struct {
		Messages []struct {
			Level string `json:"level"`
			Text  string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(msgRec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Text != "Thank you for your comment, Ada Lovelace!" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestPostCommentSecurityFailure(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	form := env.postForm("Hello")
	form.Set("security_hash", "0000")

	rec := env.do(http.MethodPost, "/comments/post/", form, env.authed(false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "The comment form failed security verification:") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestEditComment(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	env.seed(env.adaComment(4))
	form := url.Values{"comment_pk": {"4"}, "comment": {"First paragraph.\n\nSecond <b>one</b>."}}

	rec := env.do(http.MethodPost, "/comments/edit/", form, env.authed(false))
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Request is not AJAX." {
		t.Errorf("non-AJAX: %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/comments/edit/", form, env.authed(true))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	html := rec.Body.String()
	for _, want := range []string{`id="c4"`, "<p>First paragraph.</p>", "Second &lt;b&gt;one&lt;/b&gt;.", "Ada Lovelace"} {
		if !strings.Contains(html, want) {
			t.Errorf("fragment missing %q:\n%s", want, html)
		}
	}
}

func TestEditCommentNotOwner(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	c := env.adaComment(4)
	c.UserID = 99
	env.seed(c)

	rec := env.do(http.MethodPost, "/comments/edit/", url.Values{"comment_pk": {"4"}, "comment": {"x"}}, env.authed(true))
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "User did not post this comment!" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDeleteComment(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	env.seed(env.adaComment(4))

	rec := env.do(http.MethodPost, "/comments/delete/", url.Values{"comment_pk": {"4"}}, env.authed(true))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "This comment has been removed.") {
		t.Errorf("fragment = %s", rec.Body.String())
	}

	saved, _ := env.comments.GetComment(context.Background(), 4)
	if !saved.IsRemoved || saved.Body != "Original text." {
		t.Errorf("saved = %+v", saved)
	}

	rec = env.do(http.MethodPost, "/comments/delete/", url.Values{"comment_pk": {"4"}}, env.authed(true))
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Comment is no longer public." {
		t.Errorf("second delete: %d %q", rec.Code, rec.Body.String())
	}
}

func TestFetchComment(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	env.seed(env.adaComment(4))
	removed := env.adaComment(5)
	removed.IsRemoved = true
	env.seed(removed)

	tests := []struct {
		name   string
		query  string
		status int
		want   string
	}{
		{"pretty", "comment_pk=4", http.StatusOK, `class="comment-author"`},
		{"plain", "comment_pk=4&format=plain", http.StatusOK, `<div class="comment-text">Original text.</div>`},
		{"missing", "comment_pk=404", http.StatusNotFound, ""},
		{"garbage", "comment_pk=abc", http.StatusNotFound, ""},
		{"removed", "comment_pk=5", http.StatusBadRequest, "Comment is no longer public."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/comments/fetch/?"+tt.query, nil, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestSecurityDataRoute(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})

	rec := env.do(http.MethodGet, "/comments/form?content_type=pages.page&object_pk=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var sd forms.SecurityData
	if err := json.Unmarshal(rec.Body.Bytes(), &sd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sd.ContentType != "pages.page" || sd.ObjectPK != "1" || sd.SecurityHash == "" {
		t.Errorf("security data = %+v", sd)
	}

	rec = env.do(http.MethodGet, "/comments/form?content_type=wiki.nothing&object_pk=1", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d, want 400", rec.Code)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})

	jsonReq := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := jsonReq(http.MethodPost, "/api/register", `{"username":"grace","email":"grace@example.com","password":"hopper42"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}

	rec = jsonReq(http.MethodPost, "/api/register", `{"username":"grace","email":"other@example.com","password":"hopper42"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register: status = %d, want 400", rec.Code)
	}

	rec = jsonReq(http.MethodPost, "/api/login", `{"email":"grace@example.com","password":"wrong"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rec.Code)
	}

	rec = jsonReq(http.MethodPost, "/api/login", `{"email":"grace@example.com","password":"hopper42"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login body %s: %v", rec.Body.String(), err)
	}

	rec = jsonReq(http.MethodGet, "/api/me", "", login.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"grace"`) {
		t.Errorf("me: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStaleTokenUser(t *testing.T) {
	env := newEnv(t, fakeDB{status: "up"})
	env.seed(env.adaComment(4))

	ghost, err := middleware.IssueToken(secret, &models.User{ID: 404, Username: "ghost"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+ghost)

	rec := env.do(http.MethodGet, "/comments/fetch/?comment_pk=4", nil, header)
	if rec.Code != http.StatusOK {
		t.Errorf("fetch: status = %d, want 200", rec.Code)
	}

	rec = env.do(http.MethodPost, "/comments/post/", env.postForm("Boo."), header)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("post: status = %d, want 401", rec.Code)
	}
}
