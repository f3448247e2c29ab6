package board

import (
	"context"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/domain"
)

// Users - регистрация без учётных данных: личность приходит извне.
type Users struct {
	base
	log *slog.Logger
}

func (u *Users) Register(ctx context.Context, displayName string, role domain.Role) (*domain.User, error) {
	name, err := checkLen("displayName", displayName, 1, 64)
	if err != nil {
		return nil, err
	}
	if role != domain.RolePhotographer && role != domain.RoleModel {
		return nil, domain.InvalidInput("unknown role")
	}
	user, err := u.store.CreateUser(ctx, &domain.User{DisplayName: name, Role: role, CreatedAt: u.now()})
	if err != nil {
		return nil, err
	}
	u.log.Info("user registered", "user", user.ID, "role", role)
	return user, nil
}

// Get возвращает профиль пользователя.
func (u *Users) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	return user, nil
}
