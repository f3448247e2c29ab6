package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"

	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// LastMessageSource - один запрос на все треды сразу.
type LastMessageSource interface {
	GetLastMessagesByThreadIDs(ctx context.Context, threadIDs []string) (map[string]*domain.Message, error)
}

var _ LastMessageSource = (storage.Storage)(nil)

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	LastMessageByThreadID *dataloader.Loader
}

// NewLoaders создает лоадеры на один запрос: кэш не переживает запрос.
func NewLoaders(store LastMessageSource) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		threadIDs := keys.Keys()

		messages, err := store.GetLastMessagesByThreadIDs(ctx, threadIDs)
		if err != nil {
			// Ошибка хранилища достаётся всем ключам батча
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Результат в том же порядке, что и ключи; у пустого треда - nil
		results := make([]*dataloader.Result, len(keys))
		for i, id := range threadIDs {
			var msg *domain.Message
			if m, ok := messages[id]; ok {
				msg = m
			}
			results[i] = &dataloader.Result{Data: msg}
		}
		return results
	}

	return &Loaders{
		LastMessageByThreadID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store LastMessageSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(key).(*Loaders)
	return loaders
}

// LastMessage загружает последнее сообщение треда через батч.
func (l *Loaders) LastMessage(ctx context.Context, threadID string) (*domain.Message, error) {
	v, err := l.LastMessageByThreadID.Load(ctx, dataloader.StringKey(threadID))()
	if err != nil {
		return nil, err
	}
	msg, _ := v.(*domain.Message)
	return msg, nil
}

// LastMessages загружает превью для списка тредов одним батчем.
// Порядок результата совпадает с threadIDs.
func (l *Loaders) LastMessages(ctx context.Context, threadIDs []string) ([]*domain.Message, error) {
	values, errs := l.LastMessageByThreadID.LoadMany(ctx, dataloader.NewKeysFromStrings(threadIDs))()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	out := make([]*domain.Message, len(threadIDs))
	for i, v := range values {
		out[i], _ = v.(*domain.Message)
	}
	return out, nil
}
