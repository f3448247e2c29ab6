package trust

import (
	"context"
	"log/slog"
	"time"

	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"

	"golang.org/x/sync/errgroup"
)

// RateStore - выборки, по которым считаются окна.
type RateStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CountMessagesBySenderSince(ctx context.Context, senderID string, since time.Time) (int64, error)
	CountPostsByAuthorSince(ctx context.Context, authorID string, since time.Time) (int64, error)
	CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int64, error)
}

var _ RateStore = (storage.Storage)(nil)

// RateLimiter - скользящие окна поверх уже сохранённых строк.
// Состояния нет: каждая проверка - запрос count по окну [now-window, now].
type RateLimiter struct {
	store RateStore
	cfg   config.Config
	now   func() time.Time
	log   *slog.Logger
}

func NewRateLimiter(store RateStore, cfg config.Config, opts ...Option) *RateLimiter {
	o := buildOptions(opts)
	return &RateLimiter{store: store, cfg: cfg, now: o.now, log: o.logger.With("component", "ratelimit")}
}

func (l *RateLimiter) CheckMessage(ctx context.Context, senderID string) error {
	w := l.cfg.Limits.Messages
	n, err := l.store.CountMessagesBySenderSince(ctx, senderID, l.now().Add(-w.Window))
	if err != nil {
		return err
	}
	return l.admit("message", senderID, n, w)
}

// CheckPost выбирает окно по возрасту аккаунта на момент проверки.
func (l *RateLimiter) CheckPost(ctx context.Context, authorID string) error {
	now := l.now()
	newWin, regular := l.cfg.Limits.NewAccountPosts, l.cfg.Limits.Posts

	var (
		user           *domain.User
		newN, regularN int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = l.store.GetUserByID(gctx, authorID)
		return err
	})
	g.Go(func() error {
		var err error
		newN, err = l.store.CountPostsByAuthorSince(gctx, authorID, now.Add(-newWin.Window))
		return err
	})
	g.Go(func() error {
		var err error
		regularN, err = l.store.CountPostsByAuthorSince(gctx, authorID, now.Add(-regular.Window))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if now.Sub(user.CreatedAt) < l.cfg.NewAccountAge {
		return l.admit("post", authorID, newN, newWin)
	}
	return l.admit("post", authorID, regularN, regular)
}

func (l *RateLimiter) CheckReport(ctx context.Context, reporterID string) error {
	w := l.cfg.Limits.Reports
	n, err := l.store.CountReportsByReporterSince(ctx, reporterID, l.now().Add(-w.Window))
	if err != nil {
		return err
	}
	return l.admit("report", reporterID, n, w)
}

func (l *RateLimiter) admit(action, actorID string, count int64, w config.Window) error {
	if count < int64(w.Max) {
		return nil
	}
	rateLimitedCount.WithLabelValues(action).Inc()
	l.log.Info("rate limited", "action", action, "actor", actorID, "count", count, "max", w.Max, "window", w.Window)
	return domain.RateLimited(domain.Limit{Max: w.Max, Window: w.Window})
}
