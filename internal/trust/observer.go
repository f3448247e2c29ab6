package trust

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Badge - счётчики непрочитанного для живого бейджа.
type Badge struct {
	UnreadThreads       int64 `json:"unreadThreads"`
	UnreadNotifications int64 `json:"unreadNotifications"`
}

// BadgeObserver хранит каналы подписчиков на бейдж.
// Кроме набора подписчиков состояния нет.
type BadgeObserver struct {
	mu sync.RWMutex
	//          map[userID] map[subscriberID] channel
	subs map[string]map[string]chan Badge
}

func NewBadgeObserver() *BadgeObserver {
	return &BadgeObserver{
		subs: make(map[string]map[string]chan Badge),
	}
}

// Subscribe регистрирует канал; отписка происходит по ctx.Done().
func (o *BadgeObserver) Subscribe(ctx context.Context, userID string) <-chan Badge {
	ch := make(chan Badge, 1)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[userID] == nil {
		o.subs[userID] = make(map[string]chan Badge)
	}
	o.subs[userID][subID] = ch
	o.mu.Unlock()

	// Очистка при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if userSubs, ok := o.subs[userID]; ok {
			delete(userSubs, subID)
			if len(userSubs) == 0 {
				delete(o.subs, userID)
			}
		}
		o.mu.Unlock()
	}()

	return ch
}

// HasSubscribers позволяет не считать бейдж, если его никто не ждёт.
func (o *BadgeObserver) HasSubscribers(userID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[userID]) > 0
}

// Publish не блокирует: медленный клиент получит только свежее значение.
func (o *BadgeObserver) Publish(userID string, b Badge) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[userID] {
		select {
		case ch <- b:
		default:
			// В буфере лежит устаревший бейдж - заменяем его
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- b:
			default:
			}
		}
	}
}
