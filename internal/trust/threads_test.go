package trust

import (
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadManager_FindOrCreateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)

	first := env.thread(t, post, model)
	second := env.thread(t, post, model)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, first.Participants, 2)
	for _, p := range first.Participants {
		assert.True(t, p.LastReadAt.Equal(domain.NeverRead))
	}

	// Другое объявление той же пары - отдельный тред
	other := env.thread(t, env.post(t, author), model)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestThreadManager_ConcurrentCreateConverges(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th, err := env.core.Threads.FindOrCreateThreadForPost(env.ctx, post.ID, model.ID)
			if assert.NoError(t, err) {
				ids[i] = th.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	threads, err := env.core.Threads.ListThreadsForUser(env.ctx, model.ID)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestThreadManager_RefusalsCarryReason(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	banned := env.veteran(t, "banned")
	env.ban(t, banned)
	blocker := env.veteran(t, "blocker")
	post := env.post(t, author)
	hidden, err := env.store.CreatePost(env.ctx, &domain.Post{AuthorID: author.ID, Title: "t", Body: "b", ContactText: "c", IsPublic: false})
	require.NoError(t, err)
	require.NoError(t, env.core.Blocks.Block(env.ctx, author.ID, blocker.ID))

	tests := []struct {
		name        string
		postID      string
		requesterID string
		reason      domain.Reason
	}{
		{"self contact", post.ID, author.ID, domain.ReasonSelfContact},
		{"banned requester", post.ID, banned.ID, domain.ReasonBanned},
		{"unknown requester", post.ID, "ghost", domain.ReasonUnknownUser},
		{"missing post", "missing", model.ID, domain.ReasonPostUnavailable},
		{"hidden post", hidden.ID, model.ID, domain.ReasonPostUnavailable},
		{"blocked by author", post.ID, blocker.ID, domain.ReasonBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := env.core.Threads.FindOrCreateThreadForPost(env.ctx, tt.postID, tt.requesterID)
			assert.Nil(t, th)
			require.ErrorIs(t, err, domain.ErrNotAllowed)
			assert.Equal(t, tt.reason, domain.ReasonOf(err))
			assert.Equal(t, "not allowed ("+string(tt.reason)+")", err.Error())
		})
	}
}

func TestThreadManager_BlockAfterCreationRefusesReopen(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)
	env.thread(t, post, model)

	// Заблокировал сам заявитель - правило симметрично
	require.NoError(t, env.core.Blocks.Block(env.ctx, model.ID, author.ID))
	_, err := env.core.Threads.FindOrCreateThreadForPost(env.ctx, post.ID, model.ID)
	require.ErrorIs(t, err, domain.ErrNotAllowed)
	assert.Equal(t, domain.ReasonBlocked, domain.ReasonOf(err))
}

func TestThreadManager_GetThread(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	outsider := env.veteran(t, "outsider")
	th := env.thread(t, env.post(t, author), model)

	_, err := env.core.Messages.Send(env.ctx, th.ID, model.ID, "first")
	require.NoError(t, err)
	_, err = env.core.Messages.Send(env.ctx, th.ID, author.ID, "second")
	require.NoError(t, err)

	got, err := env.core.Threads.GetThread(env.ctx, th.ID, author.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "first", got.Messages[0].Body)
	assert.Equal(t, "second", got.Messages[1].Body)

	_, err = env.core.Threads.GetThread(env.ctx, th.ID, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.core.Threads.GetThread(env.ctx, "missing", author.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestThreadManager_ListThreadsMostRecentFirst(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	m1 := env.veteran(t, "m1")
	m2 := env.veteran(t, "m2")
	post := env.post(t, author)

	t1 := env.thread(t, post, m1)
	env.clock.Advance(time.Minute)
	t2 := env.thread(t, post, m2)
	env.clock.Advance(time.Minute)
	_, err := env.core.Messages.Send(env.ctx, t1.ID, m1.ID, "bump")
	require.NoError(t, err)

	threads, err := env.core.Threads.ListThreadsForUser(env.ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, t1.ID, threads[0].ID)
	assert.Equal(t, t2.ID, threads[1].ID)

	_, err = env.core.Threads.ListThreadsForUser(env.ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestThreadManager_MalformedIDs(t *testing.T) {
	env := newTestEnv(t)
	author := env.veteran(t, "author")
	model := env.veteran(t, "model")
	post := env.post(t, author)

	_, err := env.core.Threads.FindOrCreateThreadForPost(env.ctx, "abc", model.ID)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
	assert.Equal(t, domain.ReasonPostUnavailable, domain.ReasonOf(err))

	_, err = env.core.Threads.FindOrCreateThreadForPost(env.ctx, post.ID, "abc")
	assert.Equal(t, domain.ReasonUnknownUser, domain.ReasonOf(err))

	_, err = env.core.Threads.GetThread(env.ctx, "abc", model.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ok, err := env.core.Disclosure.CanViewContact(env.ctx, "abc", model.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
