// Package trust - ядро доверия: блокировки, лимиты, треды, сообщения,
// раскрытие контактов и агрегация уведомлений.
package trust

import (
	"log/slog"
	"time"
)

// Option настраивает сервисы пакета.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock подменяет источник времени (в тестах).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger задаёт логгер; по умолчанию slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
