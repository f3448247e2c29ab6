package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind - класс ошибки доменного уровня. Транспорт сам решает, как его показать.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindBanned       Kind = "banned"
	KindBlocked      Kind = "blocked"
	KindRateLimited  Kind = "rate_limited"
	KindInvalidInput Kind = "invalid_input"
	KindInvalidState Kind = "invalid_state"
	KindNotAllowed   Kind = "not_allowed"
	KindNotFound     Kind = "not_found"
)

// Reason уточняет NotAllowed. Наружу не отдаётся, только в логи и тесты.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnknownUser     Reason = "unknown_user"
	ReasonBanned          Reason = "banned"
	ReasonPostUnavailable Reason = "post_unavailable"
	ReasonSelfContact     Reason = "self_contact"
	ReasonBlocked         Reason = "blocked"
)

// Limit - потолок скользящего окна, который сработал.
type Limit struct {
	Max    int           `json:"max"`
	Window time.Duration `json:"-"`
}

func (l Limit) String() string {
	return fmt.Sprintf("%d per %s", l.Max, l.Window)
}

// Error - ошибка бизнес-правила.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Limit   *Limit
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Reason != ReasonNone {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is сравнивает по Kind, чтобы работало errors.Is(err, domain.ErrBlocked).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == ReasonNone || t.Reason == e.Reason)
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func InvalidInput(message string) error {
	return New(KindInvalidInput, message)
}

func Forbidden(message string) error {
	return New(KindForbidden, message)
}

func NotFound(message string) error {
	return New(KindNotFound, message)
}

func InvalidState(message string) error {
	return New(KindInvalidState, message)
}

// NotAllowed - непрозрачный отказ, причина сохраняется внутри.
func NotAllowed(reason Reason) error {
	return &Error{Kind: KindNotAllowed, Reason: reason, Message: "not allowed"}
}

// RateLimited несёт сработавший потолок для UX.
func RateLimited(limit Limit) error {
	return &Error{Kind: KindRateLimited, Message: "rate limited", Limit: &limit}
}

var (
	ErrUnauthorized = New(KindUnauthorized, "unauthorized")
	ErrBanned       = New(KindBanned, "account is banned")
	ErrBlocked      = New(KindBlocked, "blocked")
	ErrForbidden    = New(KindForbidden, "forbidden")
	ErrNotAllowed   = New(KindNotAllowed, "not allowed")
	ErrRateLimited  = New(KindRateLimited, "rate limited")
	ErrInvalidInput = New(KindInvalidInput, "invalid input")
	ErrInvalidState = New(KindInvalidState, "invalid state")
	ErrNotFound     = New(KindNotFound, "not found")
)

// KindOf возвращает Kind доменной ошибки или "" для прочих (сбой хранилища).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf возвращает причину NotAllowed.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// LimitOf возвращает потолок из RateLimited.
func LimitOf(err error) (Limit, bool) {
	var e *Error
	if errors.As(err, &e) && e.Limit != nil {
		return *e.Limit, true
	}
	return Limit{}, false
}
