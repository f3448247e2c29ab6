// Package board - операции доски вокруг ядра доверия: объявления, жалобы,
// модерация, избранное и регистрация.
package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/UkralStul/matchboard/internal/trust"
)

// Board собирает сервисы доски.
type Board struct {
	Users      *Users
	Posts      *Posts
	Reports    *Reports
	Moderation *Moderation
	Favorites  *Favorites
}

// New; now == nil означает time.Now().UTC().
func New(store storage.Storage, core *trust.Core, cfg config.Config, log *slog.Logger, now func() time.Time) *Board {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	b := base{store: store, now: now}
	return &Board{
		Users:      &Users{base: b, log: log.With("component", "users")},
		Posts:      &Posts{base: b, limiter: core.Limiter, cfg: cfg, log: log.With("component", "posts")},
		Reports:    &Reports{base: b, limiter: core.Limiter, log: log.With("component", "reports")},
		Moderation: &Moderation{base: b, log: log.With("component", "moderation")},
		Favorites:  &Favorites{base: b, notifs: core.Notifications, log: log.With("component", "favorites")},
	}
}

type base struct {
	store storage.Storage
	now   func() time.Time
}

// activeUser - существующий и не забаненный пользователь.
func (b base) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	u, err := b.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if u.IsBanned() {
		return nil, domain.ErrBanned
	}
	return u, nil
}

// admin - действующий администратор, иначе Forbidden.
func (b base) admin(ctx context.Context, userID string) (*domain.User, error) {
	u, err := b.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin {
		return nil, domain.Forbidden("admin only")
	}
	return u, nil
}

// checkLen проверяет длину в символах после обрезки пробелов.
func checkLen(field, value string, lo, hi int) (string, error) {
	value = strings.TrimSpace(value)
	n := utf8.RuneCountInString(value)
	if n < lo || n > hi {
		return "", domain.InvalidInput(field + " has invalid length")
	}
	return value, nil
}

func notFoundAs(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NotFound(message)
	}
	return err
}
