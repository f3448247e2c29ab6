package board

import (
	"context"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/trust"
)

type Favorites struct {
	base
	notifs *trust.NotificationAggregator
	log    *slog.Logger
}

// ToggleUser переключает избранного пользователя; при добавлении цель получает уведомление.
func (f *Favorites) ToggleUser(ctx context.Context, userID, targetID string) (bool, error) {
	user, err := f.activeUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.ID == targetID {
		return false, domain.InvalidInput("cannot favorite yourself")
	}
	if _, err := f.store.GetUserByID(ctx, targetID); err != nil {
		return false, notFoundAs(err, "user not found")
	}

	on, err := f.store.ToggleFavoriteUser(ctx, &domain.FavoriteUser{UserID: user.ID, TargetUserID: targetID, CreatedAt: f.now()})
	if err != nil {
		return false, err
	}
	if on {
		f.notify(ctx, &domain.Notification{UserID: targetID, Kind: domain.KindFavoriteUser, ActorID: user.ID})
	}
	return on, nil
}

// TogglePost переключает избранное объявление; автор не уведомляется о своих.
func (f *Favorites) TogglePost(ctx context.Context, userID, postID string) (bool, error) {
	user, err := f.activeUser(ctx, userID)
	if err != nil {
		return false, err
	}
	post, err := f.store.GetPostByID(ctx, postID)
	if err != nil {
		return false, notFoundAs(err, "post not found")
	}
	if !post.IsPublic && post.AuthorID != user.ID {
		return false, domain.NotFound("post not found")
	}

	on, err := f.store.ToggleFavoritePost(ctx, &domain.FavoritePost{UserID: user.ID, PostID: post.ID, CreatedAt: f.now()})
	if err != nil {
		return false, err
	}
	if on && post.AuthorID != user.ID {
		pid := post.ID
		f.notify(ctx, &domain.Notification{UserID: post.AuthorID, Kind: domain.KindFavoritePost, PostID: &pid, ActorID: user.ID})
	}
	return on, nil
}

// notify - уведомление не влияет на результат переключения.
func (f *Favorites) notify(ctx context.Context, n *domain.Notification) {
	if err := f.notifs.Notify(ctx, n); err != nil {
		f.log.Warn("favorite notification failed", "user", n.UserID, "kind", n.Kind, "err", err)
	}
}
