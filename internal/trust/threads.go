package trust

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
)

const (
	// MaxThreadMessages - сколько сообщений отдаёт GetThread.
	MaxThreadMessages = 200
	// MaxThreadList - сколько тредов отдаёт ListThreadsForUser.
	MaxThreadList = 50
)

// ThreadStore - то, что нужно менеджеру тредов от хранилища.
type ThreadStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	FindThreadForPair(ctx context.Context, postID, userA, userB string) (*domain.Thread, error)
	CreateThread(ctx context.Context, thread *domain.Thread, participants [2]string) (*domain.Thread, error)
	GetThread(ctx context.Context, id string) (*domain.Thread, error)
	ListThreadsForUser(ctx context.Context, userID string, limit int) ([]*domain.Thread, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]*domain.Message, error)
}

var _ ThreadStore = (storage.Storage)(nil)

// ThreadManager владеет жизненным циклом тредов.
type ThreadManager struct {
	store  ThreadStore
	blocks *BlockRegistry
	now    func() time.Time
	log    *slog.Logger
}

func NewThreadManager(store ThreadStore, blocks *BlockRegistry, opts ...Option) *ThreadManager {
	o := buildOptions(opts)
	return &ThreadManager{store: store, blocks: blocks, now: o.now, log: o.logger.With("component", "threads")}
}

// FindOrCreateThreadForPost возвращает тред по объявлению между requester и автором.
// Любой отказ - NotAllowed; конкретная причина остаётся внутри ошибки.
func (m *ThreadManager) FindOrCreateThreadForPost(ctx context.Context, postID, requesterID string) (*domain.Thread, error) {
	post, err := m.admit(ctx, postID, requesterID)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Kind == domain.KindNotAllowed {
			threadRefusedCount.WithLabelValues(string(de.Reason)).Inc()
			m.log.Info("thread refused", "post", postID, "requester", requesterID, "reason", de.Reason)
		}
		return nil, err
	}

	thread, err := m.store.FindThreadForPair(ctx, post.ID, requesterID, post.AuthorID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := m.now()
	thread, err = m.store.CreateThread(ctx, &domain.Thread{PostID: post.ID, CreatedAt: now, LastActivityAt: now},
		[2]string{requesterID, post.AuthorID})
	if errors.Is(err, storage.ErrConflict) {
		// Параллельный запрос успел создать тред - берём его
		return m.store.FindThreadForPair(ctx, post.ID, requesterID, post.AuthorID)
	}
	if err != nil {
		return nil, err
	}
	threadsCreatedCount.Inc()
	m.log.Info("thread created", "thread", thread.ID, "post", post.ID)
	return thread, nil
}

// admit проверяет правила в порядке: пользователь, объявление, автор, блокировка.
func (m *ThreadManager) admit(ctx context.Context, postID, requesterID string) (*domain.Post, error) {
	user, err := m.store.GetUserByID(ctx, requesterID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NotAllowed(domain.ReasonUnknownUser)
	}
	if err != nil {
		return nil, err
	}
	if user.IsBanned() {
		return nil, domain.NotAllowed(domain.ReasonBanned)
	}

	post, err := m.store.GetPostByID(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NotAllowed(domain.ReasonPostUnavailable)
	}
	if err != nil {
		return nil, err
	}
	if !post.IsPublic {
		return nil, domain.NotAllowed(domain.ReasonPostUnavailable)
	}
	if post.AuthorID == requesterID {
		return nil, domain.NotAllowed(domain.ReasonSelfContact)
	}

	blocked, err := m.blocks.IsBlockedBetween(ctx, requesterID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.NotAllowed(domain.ReasonBlocked)
	}
	return post, nil
}

// GetThread отдаёт тред с сообщениями только участнику.
func (m *ThreadManager) GetThread(ctx context.Context, threadID, userID string) (*domain.Thread, error) {
	thread, err := m.participantThread(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := m.store.ListMessages(ctx, thread.ID, MaxThreadMessages)
	if err != nil {
		return nil, err
	}
	thread.Messages = msgs
	return thread, nil
}

// participantThread возвращает Forbidden и для чужого, и для несуществующего треда.
func (m *ThreadManager) participantThread(ctx context.Context, threadID, userID string) (*domain.Thread, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.Forbidden("not a participant")
	}
	if err != nil {
		return nil, err
	}
	for _, p := range thread.Participants {
		if p.UserID == userID {
			return thread, nil
		}
	}
	return nil, domain.Forbidden("not a participant")
}

// ListThreadsForUser - последние активные первыми. Превью последнего
// сообщения собирает транспорт через dataloader.
func (m *ThreadManager) ListThreadsForUser(ctx context.Context, userID string) ([]*domain.Thread, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return m.store.ListThreadsForUser(ctx, userID, MaxThreadList)
}
