package trust

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
)

// BlockRegistry ведёт направленные блокировки и проверяет их в обе стороны.
type BlockRegistry struct {
	store storage.BlockStore
	log   *slog.Logger
}

func NewBlockRegistry(store storage.BlockStore, opts ...Option) *BlockRegistry {
	o := buildOptions(opts)
	return &BlockRegistry{store: store, log: o.logger.With("component", "blocks")}
}

func (r *BlockRegistry) Block(ctx context.Context, blockerID, blockedID string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	err := r.store.CreateBlock(ctx, &domain.BlockUser{BlockerID: blockerID, BlockedID: blockedID})
	return unknownUser(err)
}

func (r *BlockRegistry) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := validatePair(blockerID, blockedID); err != nil {
		return err
	}
	return r.store.DeleteBlock(ctx, blockerID, blockedID)
}

// Toggle переключает блокировку одной условной записью в хранилище.
func (r *BlockRegistry) Toggle(ctx context.Context, blockerID, blockedID string) (bool, error) {
	if err := validatePair(blockerID, blockedID); err != nil {
		return false, err
	}
	blocked, err := r.store.ToggleBlock(ctx, &domain.BlockUser{BlockerID: blockerID, BlockedID: blockedID})
	if err != nil {
		return false, unknownUser(err)
	}
	r.log.Info("block toggled", "blocker", blockerID, "blocked", blockedID, "state", blocked)
	return blocked, nil
}

// IsBlockedBetween истинно, если есть ребро в любую сторону.
func (r *BlockRegistry) IsBlockedBetween(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	return r.store.IsBlockedEitherWay(ctx, a, b)
}

func validatePair(blockerID, blockedID string) error {
	if blockerID == "" || blockedID == "" {
		return domain.InvalidInput("user id is required")
	}
	if blockerID == blockedID {
		return domain.InvalidInput("cannot block yourself")
	}
	return nil
}

// unknownUser: хранилище не знает такого id.
func unknownUser(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NotFound("user not found")
	}
	return err
}
