package trust

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationAggregator_MarkThreadRead(t *testing.T) {
	env := newTestEnv(t)
	a := env.veteran(t, "a")
	b := env.veteran(t, "b")
	outsider := env.veteran(t, "outsider")
	th := env.thread(t, env.post(t, b), a)

	_, err := env.core.Messages.Send(env.ctx, th.ID, a.ID, "ping")
	require.NoError(t, err)

	threads, err := env.core.Notifications.UnreadThreadCount(env.ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, threads)

	env.clock.Advance(time.Second)
	require.NoError(t, env.core.Notifications.MarkThreadRead(env.ctx, b.ID, th.ID))

	badge, err := env.core.Notifications.Badges(env.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, Badge{}, badge, "watermark and notification move together")

	err = env.core.Notifications.MarkThreadRead(env.ctx, outsider.ID, th.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestNotificationAggregator_NewMessageReopensBadge(t *testing.T) {
	env := newTestEnv(t)
	a := env.veteran(t, "a")
	b := env.veteran(t, "b")
	th := env.thread(t, env.post(t, b), a)

	_, err := env.core.Messages.Send(env.ctx, th.ID, a.ID, "one")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	require.NoError(t, env.core.Notifications.MarkThreadRead(env.ctx, b.ID, th.ID))

	env.clock.Advance(time.Second)
	_, err = env.core.Messages.Send(env.ctx, th.ID, a.ID, "two")
	require.NoError(t, err)

	badge, err := env.core.Notifications.Badges(env.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, Badge{UnreadThreads: 1, UnreadNotifications: 1}, badge)
}

func TestNotificationAggregator_MarkAllAndNotify(t *testing.T) {
	env := newTestEnv(t)
	a := env.veteran(t, "a")
	b := env.veteran(t, "b")
	notifs := env.core.Notifications

	require.NoError(t, notifs.Notify(env.ctx, &domain.Notification{UserID: b.ID, Kind: domain.KindFavoriteUser, ActorID: a.ID}))
	require.NoError(t, notifs.Notify(env.ctx, &domain.Notification{UserID: b.ID, Kind: domain.KindFavoriteUser, ActorID: a.ID}))
	assert.Error(t, notifs.Notify(env.ctx, &domain.Notification{UserID: b.ID, Kind: domain.KindThreadMessage, ActorID: a.ID}))

	n, err := notifs.UnreadNotificationCount(env.ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, notifs.MarkAllNotificationsRead(env.ctx, b.ID))
	n, err = notifs.UnreadNotificationCount(env.ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestNotificationAggregator_PublishesBadge(t *testing.T) {
	env := newTestEnv(t)
	a := env.veteran(t, "a")
	b := env.veteran(t, "b")
	th := env.thread(t, env.post(t, b), a)

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	badges := env.core.Observer.Subscribe(ctx, b.ID)
	require.True(t, env.core.Observer.HasSubscribers(b.ID))

	_, err := env.core.Messages.Send(env.ctx, th.ID, a.ID, "ping")
	require.NoError(t, err)

	select {
	case badge := <-badges:
		assert.Equal(t, Badge{UnreadThreads: 1, UnreadNotifications: 1}, badge)
	case <-time.After(time.Second):
		t.Fatal("badge was not published")
	}

	cancel()
	assert.Eventually(t, func() bool { return !env.core.Observer.HasSubscribers(b.ID) }, time.Second, 10*time.Millisecond)
}

// Сценарий: фотограф публикует, модель пишет, фотограф отвечает.
func TestScenario_FullHandshake(t *testing.T) {
	env := newTestEnv(t)
	p := env.veteran(t, "photographer")
	m := env.veteran(t, "model")
	post := env.post(t, p)

	th := env.thread(t, post, m)
	_, err := env.core.Messages.Send(env.ctx, th.ID, m.ID, "Hi, interested.")
	require.NoError(t, err)

	ok, err := env.core.Disclosure.CanViewContact(env.ctx, post.ID, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pUnread, err := env.core.Notifications.UnreadNotificationCount(env.ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pUnread)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.core.Notifications.MarkThreadRead(env.ctx, p.ID, th.ID))
	_, err = env.core.Messages.Send(env.ctx, th.ID, p.ID, "Great, here are the details.")
	require.NoError(t, err)

	ok, err = env.core.Disclosure.CanViewContact(env.ctx, post.ID, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	mUnread, err := env.core.Notifications.UnreadNotificationCount(env.ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mUnread)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.core.Notifications.MarkThreadRead(env.ctx, m.ID, th.ID))
	mUnread, err = env.core.Notifications.UnreadNotificationCount(env.ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, mUnread)

	pUnread, err = env.core.Notifications.UnreadNotificationCount(env.ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pUnread)
}
