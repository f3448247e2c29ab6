package trust

import (
	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/storage"
)

// Core связывает все компоненты поверх одного хранилища.
type Core struct {
	Blocks        *BlockRegistry
	Limiter       *RateLimiter
	Threads       *ThreadManager
	Messages      *MessageDispatcher
	Disclosure    *ContactDisclosureEngine
	Notifications *NotificationAggregator
	Observer      *BadgeObserver
}

func New(store storage.Storage, cfg config.Config, opts ...Option) *Core {
	observer := NewBadgeObserver()
	blocks := NewBlockRegistry(store, opts...)
	limiter := NewRateLimiter(store, cfg, opts...)
	threads := NewThreadManager(store, blocks, opts...)
	notifs := NewNotificationAggregator(store, observer, opts...)
	return &Core{
		Blocks:        blocks,
		Limiter:       limiter,
		Threads:       threads,
		Messages:      NewMessageDispatcher(store, threads, blocks, limiter, notifs, opts...),
		Disclosure:    NewContactDisclosureEngine(store, blocks, opts...),
		Notifications: notifs,
		Observer:      observer,
	}
}
