package trust

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"

	"golang.org/x/sync/errgroup"
)

// MaxNotificationList - сколько уведомлений отдаёт ListNotifications.
const MaxNotificationList = 100

// NotificationStore - уведомления и водяные знаки прочтения.
type NotificationStore interface {
	MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error
	CountUnreadThreads(ctx context.Context, userID string) (int64, error)
	UpsertThreadNotification(ctx context.Context, n *domain.Notification) error
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) error
}

var _ NotificationStore = (storage.Storage)(nil)

// NotificationAggregator схлопывает уведомления: одно непрочитанное на тред.
type NotificationAggregator struct {
	store    NotificationStore
	observer *BadgeObserver
	now      func() time.Time
	log      *slog.Logger
}

// NewNotificationAggregator; observer может быть nil.
func NewNotificationAggregator(store NotificationStore, observer *BadgeObserver, opts ...Option) *NotificationAggregator {
	o := buildOptions(opts)
	return &NotificationAggregator{store: store, observer: observer, now: o.now, log: o.logger.With("component", "notifications")}
}

// UpsertMessageNotification создаёт или обновляет уведомление треда и снимает отметку о прочтении.
func (a *NotificationAggregator) UpsertMessageNotification(ctx context.Context, recipientID, threadID, actorID, snippet string) error {
	tid := threadID
	err := a.store.UpsertThreadNotification(ctx, &domain.Notification{
		UserID:    recipientID,
		Kind:      domain.KindThreadMessage,
		ThreadID:  &tid,
		ActorID:   actorID,
		Snippet:   snippet,
		UpdatedAt: a.now(),
	})
	if err != nil {
		return err
	}
	a.publish(ctx, recipientID)
	return nil
}

// Notify создаёт одиночное уведомление (избранное).
func (a *NotificationAggregator) Notify(ctx context.Context, n *domain.Notification) error {
	if n.Kind == domain.KindThreadMessage {
		return errors.New("thread notifications must go through UpsertMessageNotification")
	}
	n.CreatedAt = a.now()
	if err := a.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	a.publish(ctx, n.UserID)
	return nil
}

// MarkThreadRead сдвигает lastReadAt и гасит уведомление треда вместе.
func (a *NotificationAggregator) MarkThreadRead(ctx context.Context, userID, threadID string) error {
	err := a.store.MarkThreadRead(ctx, threadID, userID, a.now())
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Forbidden("not a participant")
	}
	if err != nil {
		return err
	}
	a.publish(ctx, userID)
	return nil
}

func (a *NotificationAggregator) UnreadThreadCount(ctx context.Context, userID string) (int64, error) {
	return a.store.CountUnreadThreads(ctx, userID)
}

func (a *NotificationAggregator) UnreadNotificationCount(ctx context.Context, userID string) (int64, error) {
	return a.store.CountUnreadNotifications(ctx, userID)
}

func (a *NotificationAggregator) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := a.store.MarkAllNotificationsRead(ctx, userID, a.now()); err != nil {
		return err
	}
	a.publish(ctx, userID)
	return nil
}

// ListNotifications - новые первыми.
func (a *NotificationAggregator) ListNotifications(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return a.store.ListNotifications(ctx, userID, MaxNotificationList)
}

// Badges считает оба счётчика параллельно.
func (a *NotificationAggregator) Badges(ctx context.Context, userID string) (Badge, error) {
	var b Badge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b.UnreadThreads, err = a.store.CountUnreadThreads(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		b.UnreadNotifications, err = a.store.CountUnreadNotifications(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Badge{}, err
	}
	return b, nil
}

func (a *NotificationAggregator) publish(ctx context.Context, userID string) {
	if a.observer == nil || !a.observer.HasSubscribers(userID) {
		return
	}
	b, err := a.Badges(ctx, userID)
	if err != nil {
		a.log.Warn("badge refresh failed", "user", userID, "err", err)
		return
	}
	a.observer.Publish(userID, b)
}
