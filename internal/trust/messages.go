package trust

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
)

const (
	MaxMessageRunes = 2000
	SnippetRunes    = 120
)

// MessageStore - запись сообщений.
type MessageStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
}

var _ MessageStore = (storage.Storage)(nil)

// MessageDispatcher добавляет сообщение в тред после всех проверок доверия.
type MessageDispatcher struct {
	store   MessageStore
	threads *ThreadManager
	blocks  *BlockRegistry
	limiter *RateLimiter
	notifs  *NotificationAggregator
	now     func() time.Time
	log     *slog.Logger
}

func NewMessageDispatcher(
	store MessageStore,
	threads *ThreadManager,
	blocks *BlockRegistry,
	limiter *RateLimiter,
	notifs *NotificationAggregator,
	opts ...Option,
) *MessageDispatcher {
	o := buildOptions(opts)
	return &MessageDispatcher{
		store:   store,
		threads: threads,
		blocks:  blocks,
		limiter: limiter,
		notifs:  notifs,
		now:     o.now,
		log:     o.logger.With("component", "messages"),
	}
}

// Send сохраняет сообщение и затем обновляет уведомление получателя.
// Сбой уведомления не откатывает сообщение.
func (d *MessageDispatcher) Send(ctx context.Context, threadID, senderID, body string) (*domain.Message, error) {
	msg, err := d.send(ctx, threadID, senderID, body)
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			sendRefusedCount.WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}
	return msg, nil
}

func (d *MessageDispatcher) send(ctx context.Context, threadID, senderID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.InvalidInput("message body is empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageRunes {
		return nil, domain.InvalidInput("message body is too long")
	}

	sender, err := d.store.GetUserByID(ctx, senderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrBanned
	}
	if err != nil {
		return nil, err
	}
	if sender.IsBanned() {
		return nil, domain.ErrBanned
	}

	thread, err := d.threads.participantThread(ctx, threadID, senderID)
	if err != nil {
		return nil, err
	}
	otherID, ok := thread.Other(senderID)
	if !ok {
		d.log.Error("thread without second participant", "thread", threadID)
		return nil, domain.InvalidState("thread has no other participant")
	}

	// Блокировка могла появиться уже после создания треда
	blocked, err := d.blocks.IsBlockedBetween(ctx, senderID, otherID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrBlocked
	}

	if err := d.limiter.CheckMessage(ctx, senderID); err != nil {
		return nil, err
	}

	msg, err := d.store.CreateMessage(ctx, &domain.Message{
		ThreadID:  thread.ID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: d.now(),
	})
	if err != nil {
		return nil, err
	}
	messagesSentCount.Inc()

	if err := d.notifs.UpsertMessageNotification(ctx, otherID, thread.ID, senderID, Snippet(body)); err != nil {
		notificationErrorCount.Inc()
		d.log.Warn("notification upsert failed", "thread", thread.ID, "recipient", otherID, "err", err)
	}
	return msg, nil
}

// Snippet - первые SnippetRunes символов текста.
func Snippet(body string) string {
	if utf8.RuneCountInString(body) <= SnippetRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:SnippetRunes])
}
