package trust

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage/inmemory"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	ctx   context.Context
	store *inmemory.Store
	clock *fakeClock
	cfg   config.Config
	core  *Core
	opts  []Option
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := inmemory.New()
	cfg := config.Default()
	opts := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return &testEnv{
		ctx:   context.Background(),
		store: store,
		clock: clock,
		cfg:   cfg,
		core:  New(store, cfg, opts...),
		opts:  opts,
	}
}

// user создает пользователя указанного возраста.
func (e *testEnv) user(t *testing.T, name string, age time.Duration) *domain.User {
	t.Helper()
	u, err := e.store.CreateUser(e.ctx, &domain.User{DisplayName: name, Role: domain.RoleModel, CreatedAt: e.clock.Now().Add(-age)})
	require.NoError(t, err)
	return u
}

func (e *testEnv) veteran(t *testing.T, name string) *domain.User {
	return e.user(t, name, 10*24*time.Hour)
}

func (e *testEnv) post(t *testing.T, author *domain.User) *domain.Post {
	t.Helper()
	p, err := e.store.CreatePost(e.ctx, &domain.Post{
		AuthorID: author.ID, Title: "Portrait shoot", Body: "Looking for a model",
		ContactText: "line: studio-p", IsPublic: true, CreatedAt: e.clock.Now(),
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) thread(t *testing.T, post *domain.Post, requester *domain.User) *domain.Thread {
	t.Helper()
	th, err := e.core.Threads.FindOrCreateThreadForPost(e.ctx, post.ID, requester.ID)
	require.NoError(t, err)
	return th
}

func (e *testEnv) ban(t *testing.T, u *domain.User) {
	t.Helper()
	at := e.clock.Now()
	require.NoError(t, e.store.SetUserBannedAt(e.ctx, u.ID, &at))
}
