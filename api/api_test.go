package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/board"
	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/UkralStul/matchboard/internal/storage/inmemory"
	"github.com/UkralStul/matchboard/internal/storage/postgres"
	"github.com/UkralStul/matchboard/internal/trust"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	*httptest.Server
	store *inmemory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := inmemory.New()
	return &testServer{Server: serve(t, store), store: store}
}

// newGormServer - тот же роутер поверх gorm-хранилища (SQLite в памяти).
func newGormServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	store, err := postgres.NewWithDB(db)
	require.NoError(t, err)
	return &testServer{Server: serve(t, store)}
}

func serve(t *testing.T, store storage.Storage) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	core := trust.New(store, cfg, trust.WithLogger(log))
	srv := httptest.NewServer(NewRouter(&Resolver{
		Storage: store,
		Core:    core,
		Board:   board.New(store, core, cfg, log, nil),
		Logger:  log,
	}))
	t.Cleanup(srv.Close)
	return srv
}

// call выполняет запрос и декодирует тело в out, если out != nil.
func (s *testServer) call(t *testing.T, method, path, userID string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, name string, role domain.Role) string {
	t.Helper()
	var user domain.User
	status := s.call(t, http.MethodPost, "/api/users", "", map[string]any{"displayName": name, "role": role}, &user)
	require.Equal(t, http.StatusCreated, status)
	return user.ID
}

func (s *testServer) post(t *testing.T, authorID string) string {
	t.Helper()
	var out board.PostResult
	status := s.call(t, http.MethodPost, "/api/posts", authorID, board.PostInput{
		Title:       "Portrait session",
		Body:        "Looking for a model this weekend",
		ContactText: "line: studio-p",
	}, &out)
	require.Equal(t, http.StatusCreated, status)
	return out.Post.ID
}

func (s *testServer) openThread(t *testing.T, userID, postID string) string {
	t.Helper()
	var thread domain.Thread
	status := s.call(t, http.MethodPost, "/api/threads", userID, map[string]string{"postId": postID}, &thread)
	require.Equal(t, http.StatusOK, status)
	return thread.ID
}

func (s *testServer) send(t *testing.T, userID, threadID, body string) int {
	t.Helper()
	var out map[string]any
	return s.call(t, http.MethodPost, "/api/threads/"+threadID+"/messages", userID, map[string]string{"body": body}, &out)
}

func TestAPI_AnonymousIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	var body errorBody
	status := s.call(t, http.MethodGet, "/api/threads", "", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body.Error)

	// Неизвестный id тоже не проходит
	status = s.call(t, http.MethodPost, "/api/posts", "no-such-user", board.PostInput{Title: "t", Body: "b", ContactText: "c"}, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_HandshakeDisclosesContact(t *testing.T) {
	s := newTestServer(t)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	postID := s.post(t, photographer)

	threadID := s.openThread(t, model, postID)
	assert.Equal(t, threadID, s.openThread(t, model, postID), "thread is reused")

	type contact struct {
		Visible     bool   `json:"visible"`
		ContactText string `json:"contactText"`
	}
	var c contact
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/posts/"+postID+"/contact", model, nil, &c))
	assert.False(t, c.Visible)
	assert.Empty(t, c.ContactText)

	require.Equal(t, http.StatusCreated, s.send(t, model, threadID, "Hi, I am free on Saturday"))
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/posts/"+postID+"/contact", model, nil, &c))
	assert.False(t, c.Visible, "one-sided conversation")

	require.Equal(t, http.StatusCreated, s.send(t, photographer, threadID, "Great, see you"))
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/posts/"+postID+"/contact", model, nil, &c))
	assert.True(t, c.Visible)
	assert.Equal(t, "line: studio-p", c.ContactText)

	var threads []struct {
		ID          string          `json:"id"`
		LastMessage *domain.Message `json:"lastMessage"`
	}
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/threads", model, nil, &threads))
	require.Len(t, threads, 1)
	assert.Equal(t, threadID, threads[0].ID)
	require.NotNil(t, threads[0].LastMessage)
	assert.Equal(t, "Great, see you", threads[0].LastMessage.Body)

	var thread domain.Thread
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/threads/"+threadID, photographer, nil, &thread))
	assert.Len(t, thread.Messages, 2)
}

func TestAPI_RefusalsAreOpaque(t *testing.T) {
	s := newTestServer(t)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	outsider := s.register(t, "Oz", domain.RoleModel)
	postID := s.post(t, photographer)
	threadID := s.openThread(t, model, postID)

	var body errorBody
	// Свой пост
	status := s.call(t, http.MethodPost, "/api/threads", photographer, map[string]string{"postId": postID}, &body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, genericRefusal, body.Message)

	// Чужой тред
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, "/api/threads/"+threadID, outsider, nil, &body))

	var blocked map[string]bool
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/users/"+photographer+"/block", model, nil, &blocked))
	assert.True(t, blocked["blocked"])

	body = errorBody{}
	status = s.call(t, http.MethodPost, "/api/threads/"+threadID+"/messages", photographer, map[string]string{"body": "hello?"}, &body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body.Error)
	assert.Equal(t, genericRefusal, body.Message)

	require.Equal(t, http.StatusNoContent, s.call(t, http.MethodDelete, "/api/users/"+photographer+"/block", model, nil, nil))
	assert.Equal(t, http.StatusCreated, s.send(t, photographer, threadID, "hello again"))
}

func TestAPI_OpeningThreadMarksRead(t *testing.T) {
	s := newTestServer(t)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	threadID := s.openThread(t, model, s.post(t, photographer))
	require.Equal(t, http.StatusCreated, s.send(t, model, threadID, "hello"))

	var badge trust.Badge
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/badges", photographer, nil, &badge))
	assert.EqualValues(t, 1, badge.UnreadThreads)
	assert.EqualValues(t, 1, badge.UnreadNotifications)

	var thread domain.Thread
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/threads/"+threadID, photographer, nil, &thread))

	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/badges", photographer, nil, &badge))
	assert.Zero(t, badge.UnreadThreads)
	assert.Zero(t, badge.UnreadNotifications)
}

func TestAPI_MessageValidationAndRateLimit(t *testing.T) {
	s := newTestServer(t)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	threadID := s.openThread(t, model, s.post(t, photographer))

	var body errorBody
	status := s.call(t, http.MethodPost, "/api/threads/"+threadID+"/messages", model, map[string]string{"body": "   "}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body.Error)

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusCreated, s.send(t, model, threadID, "ping"))
	}
	body = errorBody{}
	status = s.call(t, http.MethodPost, "/api/threads/"+threadID+"/messages", model, map[string]string{"body": "one more"}, &body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, 10, body.Max)
	assert.Equal(t, 300, body.WindowSeconds)
}

func TestAPI_MalformedIDsAreNotFaults(t *testing.T) {
	for name, newServer := range map[string]func(*testing.T) *testServer{
		"inmemory": newTestServer,
		"gorm":     newGormServer,
	} {
		t.Run(name, func(t *testing.T) {
			s := newServer(t)
			photographer := s.register(t, "Pat", domain.RolePhotographer)
			model := s.register(t, "Mia", domain.RoleModel)
			postID := s.post(t, photographer)

			var body errorBody
			status := s.call(t, http.MethodPost, "/api/threads", model, map[string]string{"postId": "abc"}, &body)
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, genericRefusal, body.Message)

			assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, "/api/threads/abc", model, nil, &body))
			assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/threads/abc/messages", model,
				map[string]string{"body": "hi"}, &body))
			assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/threads/abc/read", model, nil, &body))
			assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/api/posts/abc", model, nil, &body))
			assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/api/users/abc", model, nil, &body))

			var c struct {
				Visible bool `json:"visible"`
			}
			require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/posts/abc/contact", model, nil, &c))
			assert.False(t, c.Visible)

			// Мусорный id в заголовке - неизвестный пользователь, а не сбой
			assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodPost, "/api/threads", "abc",
				map[string]string{"postId": postID}, &body))

			var badge trust.Badge
			require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/badges", "abc", nil, &badge))
			assert.Equal(t, trust.Badge{}, badge)
		})
	}
}

func TestAPI_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	model := s.register(t, "Mia", domain.RoleModel)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/threads", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", model)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ModerationFlow(t *testing.T) {
	s := newTestServer(t)
	admin, err := s.store.CreateUser(context.Background(), &domain.User{
		DisplayName: "Admin", Role: domain.RolePhotographer, IsAdmin: true, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	postID := s.post(t, photographer)

	var report domain.Report
	require.Equal(t, http.StatusCreated, s.call(t, http.MethodPost, "/api/posts/"+postID+"/reports", model,
		map[string]string{"reason": "SPAM", "detail": "asks for money"}, &report))
	assert.Equal(t, domain.ReportOpen, report.Status)

	var body errorBody
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, "/api/admin/reports", model, nil, &body))

	var reports []domain.Report
	require.Equal(t, http.StatusOK, s.call(t, http.MethodGet, "/api/admin/reports?open=true", admin.ID, nil, &reports))
	require.Len(t, reports, 1)

	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/admin/reports/"+report.ID+"/resolve", admin.ID, nil, &report))
	assert.Equal(t, domain.ReportResolved, report.Status)

	require.Equal(t, http.StatusNoContent, s.call(t, http.MethodPost, "/api/admin/users/"+model+"/ban", admin.ID, nil, nil))
	status := s.call(t, http.MethodPost, "/api/threads", model, map[string]string{"postId": postID}, &body)
	assert.Equal(t, http.StatusForbidden, status, "banned user cannot open threads")

	require.Equal(t, http.StatusNoContent, s.call(t, http.MethodPost, "/api/admin/users/"+model+"/unban", admin.ID, nil, nil))
	s.openThread(t, model, postID)

	var post domain.Post
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/admin/posts/"+postID+"/visibility", admin.ID, nil, &post))
	assert.False(t, post.IsPublic)
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/api/posts/"+postID, model, nil, &body))
}

func TestAPI_BadgeSocket(t *testing.T) {
	s := newTestServer(t)
	photographer := s.register(t, "Pat", domain.RolePhotographer)
	model := s.register(t, "Mia", domain.RoleModel)
	threadID := s.openThread(t, model, s.post(t, photographer))

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/badges"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {photographer}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var badge trust.Badge
	require.NoError(t, conn.ReadJSON(&badge))
	assert.Equal(t, trust.Badge{}, badge)

	require.Equal(t, http.StatusCreated, s.send(t, model, threadID, "hello"))

	require.NoError(t, conn.ReadJSON(&badge))
	assert.EqualValues(t, 1, badge.UnreadThreads)

	_, _, err = websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err, "anonymous upgrade is refused")
}

func TestWriteError_Mapping(t *testing.T) {
	res := &Resolver{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"banned", domain.ErrBanned, http.StatusForbidden, "forbidden"},
		{"blocked", domain.ErrBlocked, http.StatusForbidden, "forbidden"},
		{"not allowed", domain.NotAllowed(domain.ReasonSelfContact), http.StatusForbidden, "forbidden"},
		{"forbidden", domain.Forbidden("not a participant"), http.StatusForbidden, "forbidden"},
		{"rate limited", domain.RateLimited(domain.Limit{Max: 3, Window: time.Minute}), http.StatusTooManyRequests, "rate_limited"},
		{"invalid input", domain.InvalidInput("title is too long"), http.StatusBadRequest, "invalid_input"},
		{"invalid state", domain.InvalidState("thread has no counterpart"), http.StatusConflict, "invalid_state"},
		{"not found", domain.NotFound("post not found"), http.StatusNotFound, "not_found"},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			res.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.NotContains(t, body.Message, "self_contact")
			assert.NotContains(t, body.Message, "connection reset")
		})
	}
}
