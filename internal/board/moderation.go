package board

import (
	"context"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/domain"
)

// Moderation - действия администратора. Ядро доверия только читает их результат.
type Moderation struct {
	base
	log *slog.Logger
}

func (m *Moderation) Ban(ctx context.Context, adminID, userID string) error {
	admin, err := m.admin(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.ID == userID {
		return domain.InvalidInput("cannot ban yourself")
	}
	at := m.now()
	if err := m.store.SetUserBannedAt(ctx, userID, &at); err != nil {
		return notFoundAs(err, "user not found")
	}
	m.log.Warn("user banned", "user", userID, "admin", admin.ID)
	return nil
}

func (m *Moderation) Unban(ctx context.Context, adminID, userID string) error {
	admin, err := m.admin(ctx, adminID)
	if err != nil {
		return err
	}
	if err := m.store.SetUserBannedAt(ctx, userID, nil); err != nil {
		return notFoundAs(err, "user not found")
	}
	m.log.Info("user unbanned", "user", userID, "admin", admin.ID)
	return nil
}

// TogglePostVisibility - так администратор одобряет объявление из карантина.
func (m *Moderation) TogglePostVisibility(ctx context.Context, adminID, postID string) (*domain.Post, error) {
	admin, err := m.admin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	post, err := m.store.TogglePostVisibility(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, "post not found")
	}
	m.log.Info("post visibility toggled", "post", post.ID, "public", post.IsPublic, "admin", admin.ID)
	return post, nil
}
