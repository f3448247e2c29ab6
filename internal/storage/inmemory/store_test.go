package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/UkralStul/matchboard/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return New() })
}

// newTestStore создает хранилище с автором и одним объявлением
func newTestStore(t *testing.T) (*Store, *domain.Post) {
	store := New()
	ctx := context.Background()
	author, err := store.CreateUser(ctx, &domain.User{DisplayName: "author", Role: domain.RolePhotographer})
	require.NoError(t, err)
	post, err := store.CreatePost(ctx, &domain.Post{
		AuthorID:    author.ID,
		Title:       "Test Post",
		Body:        "Body",
		ContactText: "mail me",
		IsPublic:    true,
	})
	require.NoError(t, err)
	return store, post
}

func TestStore_GettersReturnCopies(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", again.Title)
}

func TestStore_ConcurrentThreadCreation(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	other, err := store.CreateUser(ctx, &domain.User{DisplayName: "other", Role: domain.RoleModel})
	require.NoError(t, err)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateThread(ctx, &domain.Thread{PostID: post.ID}, [2]string{other.ID, post.AuthorID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if assert.ErrorIs(t, err, storage.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestStore_ConcurrentToggleConverges(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	other, err := store.CreateUser(ctx, &domain.User{DisplayName: "other", Role: domain.RoleModel})
	require.NoError(t, err)

	// Чётное число переключений возвращает исходное состояние
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ToggleBlock(ctx, &domain.BlockUser{BlockerID: other.ID, BlockedID: post.AuthorID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	blocked, err := store.IsBlockedEitherWay(ctx, post.AuthorID, other.ID)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestStore_ListThreadsForUserLimit(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		u, err := store.CreateUser(ctx, &domain.User{DisplayName: "u", Role: domain.RoleModel})
		require.NoError(t, err)
		_, err = store.CreateThread(ctx, &domain.Thread{PostID: post.ID, CreatedAt: start.Add(time.Duration(i) * time.Minute)},
			[2]string{u.ID, post.AuthorID})
		require.NoError(t, err)
	}

	threads, err := store.ListThreadsForUser(ctx, post.AuthorID, 3)
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.True(t, threads[0].LastActivityAt.Equal(start.Add(4*time.Minute)))
	assert.True(t, threads[2].LastActivityAt.Equal(start.Add(2*time.Minute)))
}

func TestStore_UpsertNotificationRequiresThread(t *testing.T) {
	store, post := newTestStore(t)
	err := store.UpsertThreadNotification(context.Background(), &domain.Notification{
		UserID: post.AuthorID, Kind: domain.KindThreadMessage, ActorID: "x",
	})
	assert.Error(t, err)
}
