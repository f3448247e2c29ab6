package trust

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
)

// DisclosureStore - только чтение.
type DisclosureStore interface {
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	FindThreadForPair(ctx context.Context, postID, userA, userB string) (*domain.Thread, error)
	HasMessageFrom(ctx context.Context, threadID, senderID string) (bool, error)
}

var _ DisclosureStore = (storage.Storage)(nil)

// ContactDisclosureEngine решает, можно ли показать контакт автора.
// Контакт открывается только после того, как написали обе стороны.
type ContactDisclosureEngine struct {
	store  DisclosureStore
	blocks *BlockRegistry
	log    *slog.Logger
}

func NewContactDisclosureEngine(store DisclosureStore, blocks *BlockRegistry, opts ...Option) *ContactDisclosureEngine {
	o := buildOptions(opts)
	return &ContactDisclosureEngine{store: store, blocks: blocks, log: o.logger.With("component", "disclosure")}
}

func (e *ContactDisclosureEngine) CanViewContact(ctx context.Context, postID, viewerID string) (bool, error) {
	_, ok, err := e.evaluate(ctx, postID, viewerID)
	return ok, err
}

// ContactFor возвращает контакт автора, если он виден зрителю.
func (e *ContactDisclosureEngine) ContactFor(ctx context.Context, postID, viewerID string) (string, bool, error) {
	post, ok, err := e.evaluate(ctx, postID, viewerID)
	if err != nil || !ok {
		return "", false, err
	}
	if post.AuthorID != viewerID {
		contactDisclosedCount.Inc()
		e.log.Debug("contact disclosed", "post", postID, "viewer", viewerID)
	}
	return post.ContactText, true, nil
}

func (e *ContactDisclosureEngine) evaluate(ctx context.Context, postID, viewerID string) (*domain.Post, bool, error) {
	if viewerID == "" {
		return nil, false, nil
	}
	post, err := e.store.GetPostByID(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !post.IsPublic {
		return nil, false, nil
	}
	if post.AuthorID == viewerID {
		return post, true, nil
	}

	blocked, err := e.blocks.IsBlockedBetween(ctx, viewerID, post.AuthorID)
	if err != nil || blocked {
		return nil, false, err
	}

	thread, err := e.store.FindThreadForPair(ctx, post.ID, viewerID, post.AuthorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	fromViewer, err := e.store.HasMessageFrom(ctx, thread.ID, viewerID)
	if err != nil || !fromViewer {
		return nil, false, err
	}
	fromAuthor, err := e.store.HasMessageFrom(ctx, thread.ID, post.AuthorID)
	if err != nil || !fromAuthor {
		return nil, false, err
	}
	return post, true, nil
}
