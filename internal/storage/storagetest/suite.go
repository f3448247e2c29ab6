// Package storagetest содержит общий набор тестов для реализаций storage.Storage.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory создает пустое хранилище для одного теста.
type Factory func(t *testing.T) storage.Storage

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run прогоняет все проверки контракта.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, newStore(t)) })
	t.Run("Blocks", func(t *testing.T) { testBlocks(t, newStore(t)) })
	t.Run("Threads", func(t *testing.T) { testThreads(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("UnreadThreads", func(t *testing.T) { testUnreadThreads(t, newStore(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, newStore(t)) })
	t.Run("Favorites", func(t *testing.T) { testFavorites(t, newStore(t)) })
	t.Run("MalformedIDs", func(t *testing.T) { testMalformedIDs(t, newStore(t)) })
}

func mustUser(t *testing.T, s storage.Storage, name string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &domain.User{DisplayName: name, Role: domain.RoleModel, CreatedAt: base.Add(-240 * time.Hour)})
	require.NoError(t, err)
	return u
}

func mustPost(t *testing.T, s storage.Storage, authorID string) *domain.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), &domain.Post{
		AuthorID: authorID, Title: "Portrait session", Body: "Looking for a model", ContactText: "line: abc", IsPublic: true, CreatedAt: base,
	})
	require.NoError(t, err)
	return p
}

func mustThread(t *testing.T, s storage.Storage, postID, a, b string) *domain.Thread {
	t.Helper()
	th, err := s.CreateThread(context.Background(), &domain.Thread{PostID: postID, CreatedAt: base}, [2]string{a, b})
	require.NoError(t, err)
	return th
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	u := mustUser(t, s, "alice")
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.DisplayName)
	assert.False(t, got.IsBanned())

	_, err = s.GetUserByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	bannedAt := base
	require.NoError(t, s.SetUserBannedAt(ctx, u.ID, &bannedAt))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBanned())

	require.NoError(t, s.SetUserBannedAt(ctx, u.ID, nil))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBanned())
}

func testPosts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	u := mustUser(t, s, "author")
	p := mustPost(t, s, u.ID)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "line: abc", got.ContactText)
	assert.True(t, got.IsPublic)

	hidden, err := s.CreatePost(ctx, &domain.Post{AuthorID: u.ID, Title: "t", Body: "b", ContactText: "c", IsPublic: false, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	got, err = s.GetPostByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic, "false must survive the insert")

	n, err := s.CountPostsByAuthorSince(ctx, u.ID, base)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = s.CountPostsByAuthorSince(ctx, u.ID, base.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	toggled, err := s.TogglePostVisibility(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsPublic)
	toggled, err = s.TogglePostVisibility(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsPublic)

	_, err = s.TogglePostVisibility(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	updated, err := s.UpdatePostContent(ctx, &domain.Post{ID: p.ID, Title: "New title", Body: "New body", ContactText: "new contact", UpdatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "new contact", updated.ContactText)
	assert.True(t, updated.IsPublic)
}

func testBlocks(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := mustUser(t, s, "a")
	b := mustUser(t, s, "b")

	blocked, err := s.IsBlockedEitherWay(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, s.CreateBlock(ctx, &domain.BlockUser{BlockerID: a.ID, BlockedID: b.ID}))
	require.NoError(t, s.CreateBlock(ctx, &domain.BlockUser{BlockerID: a.ID, BlockedID: b.ID}), "second create is a no-op")

	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
		blocked, err = s.IsBlockedEitherWay(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	require.NoError(t, s.DeleteBlock(ctx, a.ID, b.ID))
	require.NoError(t, s.DeleteBlock(ctx, a.ID, b.ID))
	blocked, err = s.IsBlockedEitherWay(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	on, err := s.ToggleBlock(ctx, &domain.BlockUser{BlockerID: b.ID, BlockedID: a.ID})
	require.NoError(t, err)
	assert.True(t, on)
	blocked, err = s.IsBlockedEitherWay(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, blocked)

	on, err = s.ToggleBlock(ctx, &domain.BlockUser{BlockerID: b.ID, BlockedID: a.ID})
	require.NoError(t, err)
	assert.False(t, on)
	blocked, err = s.IsBlockedEitherWay(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func testThreads(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	author := mustUser(t, s, "author")
	other := mustUser(t, s, "other")
	third := mustUser(t, s, "third")
	post := mustPost(t, s, author.ID)

	_, err := s.FindThreadForPair(ctx, post.ID, other.ID, author.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	th := mustThread(t, s, post.ID, other.ID, author.ID)
	require.Len(t, th.Participants, 2)

	found, err := s.FindThreadForPair(ctx, post.ID, author.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, th.ID, found.ID)
	assert.Len(t, found.Participants, 2)

	_, err = s.CreateThread(ctx, &domain.Thread{PostID: post.ID}, [2]string{author.ID, other.ID})
	assert.ErrorIs(t, err, storage.ErrConflict, "same post and pair must conflict")

	// Та же пара по другому объявлению - отдельный тред.
	post2 := mustPost(t, s, author.ID)
	th2 := mustThread(t, s, post2.ID, other.ID, author.ID)
	assert.NotEqual(t, th.ID, th2.ID)

	p, err := s.GetParticipant(ctx, th.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, p.LastReadAt.Equal(domain.NeverRead))

	_, err = s.GetParticipant(ctx, th.ID, third.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	parts, err := s.ListParticipants(ctx, th.ID)
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	_, err = s.CreateMessage(ctx, &domain.Message{ThreadID: th.ID, SenderID: other.ID, Body: "hi", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	list, err := s.ListThreadsForUser(ctx, author.ID, 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, th.ID, list[0].ID, "most recently active first")
	assert.Len(t, list[0].Participants, 2)

	list, err = s.ListThreadsForUser(ctx, third.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	other2, ok := got.Other(author.ID)
	require.True(t, ok)
	assert.Equal(t, other.ID, other2)
}

func testMessages(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	author := mustUser(t, s, "author")
	other := mustUser(t, s, "other")
	post := mustPost(t, s, author.ID)
	th := mustThread(t, s, post.ID, other.ID, author.ID)

	at := base.Add(time.Minute)
	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		_, err := s.CreateMessage(ctx, &domain.Message{ThreadID: th.ID, SenderID: other.ID, Body: body, CreatedAt: at})
		require.NoError(t, err)
	}
	_, err := s.CreateMessage(ctx, &domain.Message{ThreadID: th.ID, SenderID: author.ID, Body: "reply", CreatedAt: at.Add(time.Second)})
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, th.ID, 200)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, body := range append(bodies, "reply") {
		assert.Equal(t, body, msgs[i].Body, "equal timestamps keep insertion order")
	}

	has, err := s.HasMessageFrom(ctx, th.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, has)

	n, err := s.CountMessagesBySenderSince(ctx, other.ID, at)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	n, err = s.CountMessagesBySenderSince(ctx, other.ID, at.Add(time.Microsecond))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	last, err := s.GetLastMessagesByThreadIDs(ctx, []string{th.ID, "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	require.Contains(t, last, th.ID)
	assert.Equal(t, "reply", last[th.ID].Body)
	assert.Len(t, last, 1)
}

func testNotifications(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	author := mustUser(t, s, "author")
	other := mustUser(t, s, "other")
	post := mustPost(t, s, author.ID)
	th := mustThread(t, s, post.ID, other.ID, author.ID)
	threadID := th.ID

	for i, snippet := range []string{"one", "two", "three"} {
		err := s.UpsertThreadNotification(ctx, &domain.Notification{
			UserID: author.ID, Kind: domain.KindThreadMessage, ThreadID: &threadID, ActorID: other.ID,
			Snippet: snippet, UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	list, err := s.ListNotifications(ctx, author.ID, 100)
	require.NoError(t, err)
	require.Len(t, list, 1, "thread notifications collapse")
	assert.Equal(t, "three", list[0].Snippet)
	assert.Nil(t, list[0].ReadAt)

	unread, err := s.CountUnreadNotifications(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	require.NoError(t, s.MarkThreadRead(ctx, threadID, author.ID, base.Add(time.Hour)))
	unread, err = s.CountUnreadNotifications(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)
	p, err := s.GetParticipant(ctx, threadID, author.ID)
	require.NoError(t, err)
	assert.True(t, p.LastReadAt.Equal(base.Add(time.Hour)))

	// Новое сообщение снова делает уведомление непрочитанным.
	require.NoError(t, s.UpsertThreadNotification(ctx, &domain.Notification{
		UserID: author.ID, Kind: domain.KindThreadMessage, ThreadID: &threadID, ActorID: other.ID,
		Snippet: "four", UpdatedAt: base.Add(2 * time.Hour),
	}))
	unread, err = s.CountUnreadNotifications(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	postID := post.ID
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{UserID: author.ID, Kind: domain.KindFavoritePost, PostID: &postID, ActorID: other.ID, CreatedAt: base}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{UserID: author.ID, Kind: domain.KindFavoriteUser, ActorID: other.ID, CreatedAt: base}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{UserID: author.ID, Kind: domain.KindFavoriteUser, ActorID: other.ID, CreatedAt: base}))
	unread, err = s.CountUnreadNotifications(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, unread)

	require.NoError(t, s.MarkAllNotificationsRead(ctx, author.ID, base.Add(3*time.Hour)))
	unread, err = s.CountUnreadNotifications(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	err = s.MarkThreadRead(ctx, threadID, "00000000-0000-0000-0000-000000000000", base)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUnreadThreads(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	author := mustUser(t, s, "author")
	other := mustUser(t, s, "other")
	post := mustPost(t, s, author.ID)
	th := mustThread(t, s, post.ID, other.ID, author.ID)

	n, err := s.CountUnreadThreads(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = s.CreateMessage(ctx, &domain.Message{ThreadID: th.ID, SenderID: other.ID, Body: "hi", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	n, err = s.CountUnreadThreads(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.CountUnreadThreads(ctx, other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "own messages are never unread")

	require.NoError(t, s.MarkThreadRead(ctx, th.ID, author.ID, base.Add(2*time.Minute)))
	n, err = s.CountUnreadThreads(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func testReports(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	reporter := mustUser(t, s, "reporter")
	target := mustUser(t, s, "target")

	r, err := s.CreateReport(ctx, &domain.Report{ReporterID: reporter.ID, TargetUserID: target.ID, Reason: domain.ReasonSpam, CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportOpen, r.Status)

	n, err := s.CountReportsByReporterSince(ctx, reporter.ID, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	open, err := s.ListReports(ctx, true, 50)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	resolved, err := s.ResolveReport(ctx, r.ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.ReportResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	again, err := s.ResolveReport(ctx, r.ID, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.ReportResolved, again.Status)
	assert.True(t, again.ResolvedAt.Equal(base.Add(time.Hour)), "resolution is one-way and keeps its timestamp")

	open, err = s.ListReports(ctx, true, 50)
	require.NoError(t, err)
	assert.Empty(t, open)
	all, err := s.ListReports(ctx, false, 50)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.ResolveReport(ctx, "00000000-0000-0000-0000-000000000000", base)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testFavorites(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := mustUser(t, s, "a")
	b := mustUser(t, s, "b")
	post := mustPost(t, s, b.ID)

	on, err := s.ToggleFavoriteUser(ctx, &domain.FavoriteUser{UserID: a.ID, TargetUserID: b.ID})
	require.NoError(t, err)
	assert.True(t, on)
	on, err = s.ToggleFavoriteUser(ctx, &domain.FavoriteUser{UserID: a.ID, TargetUserID: b.ID})
	require.NoError(t, err)
	assert.False(t, on)

	on, err = s.ToggleFavoritePost(ctx, &domain.FavoritePost{UserID: a.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.True(t, on)
	on, err = s.ToggleFavoritePost(ctx, &domain.FavoritePost{UserID: a.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.False(t, on)
}

// testMalformedIDs: id из запроса может быть любой строкой. Такой id
// не совпадает ни с одной записью и не превращается в сбой хранилища.
func testMalformedIDs(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := mustUser(t, s, "a")
	b := mustUser(t, s, "b")
	p := mustPost(t, s, a.ID)
	th := mustThread(t, s, p.ID, a.ID, b.ID)

	const junk = "not-a-uuid"

	_, err := s.GetUserByID(ctx, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SetUserBannedAt(ctx, junk, nil), storage.ErrNotFound)

	_, err = s.GetPostByID(ctx, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.TogglePostVisibility(ctx, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetThread(ctx, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.FindThreadForPair(ctx, junk, a.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.FindThreadForPair(ctx, p.ID, a.ID, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetParticipant(ctx, th.ID, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.MarkThreadRead(ctx, junk, a.ID, base), storage.ErrNotFound)

	_, err = s.GetReportByID(ctx, junk)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.ResolveReport(ctx, junk, base)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	blocked, err := s.IsBlockedEitherWay(ctx, a.ID, junk)
	require.NoError(t, err)
	assert.False(t, blocked)

	has, err := s.HasMessageFrom(ctx, junk, a.ID)
	require.NoError(t, err)
	assert.False(t, has)

	msgs, err := s.ListMessages(ctx, junk, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	unread, err := s.CountUnreadThreads(ctx, junk)
	require.NoError(t, err)
	assert.Zero(t, unread)

	last, err := s.GetLastMessagesByThreadIDs(ctx, []string{junk})
	require.NoError(t, err)
	assert.Empty(t, last)
}
