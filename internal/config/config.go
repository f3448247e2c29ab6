package config

import "time"

// Window - потолок скользящего окна: не больше Max событий за Window.
type Window struct {
	Max    int
	Window time.Duration
}

// Limits задаёт окна RateLimiter'а.
type Limits struct {
	Messages Window
	// NewAccountPosts применяется к аккаунтам моложе NewAccountAge.
	NewAccountPosts Window
	Posts           Window
	Reports         Window
}

// Config собирается один раз при старте и передаётся в компоненты явно.
type Config struct {
	// NewAccountAge - до этого возраста аккаунт считается новым.
	NewAccountAge time.Duration
	// StrictLinkMode прячет любое объявление со ссылкой, независимо от возраста автора.
	StrictLinkMode bool
	Limits         Limits
}

// Default возвращает значения по умолчанию.
func Default() Config {
	return Config{
		NewAccountAge:  24 * time.Hour,
		StrictLinkMode: false,
		Limits: Limits{
			Messages:        Window{Max: 10, Window: 5 * time.Minute},
			NewAccountPosts: Window{Max: 1, Window: 24 * time.Hour},
			Posts:           Window{Max: 5, Window: time.Hour},
			Reports:         Window{Max: 5, Window: 24 * time.Hour},
		},
	}
}
