// Package spamguard - эвристика ссылок для объявлений. Только чистые функции.
package spamguard

import (
	"regexp"
	"strings"
	"time"

	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/domain"
)

// Marker ставится на место вырезанной ссылки.
const Marker = "[link removed]"

// Явная схема, префикс www. или голый домен с известной зоной.
// \s в RE2 не покрывает U+3000, поэтому полноширинный пробел указан явно.
var linkRegex = regexp.MustCompile(
	`(?i)(?:\b(?:https?|ftp)://[^\s\x{3000}<>"']+` +
		`|\bwww\.[^\s\x{3000}<>"']+` +
		`|\b[a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|net|org|jp|co|io|me|app|dev|xyz|info|biz)\b(?:/[^\s\x{3000}<>"']*)?)`)

const trailingPunct = ".,;:!?)]}"

// linkSpans возвращает границы ссылок, пропуская почтовые адреса.
func linkSpans(text string) [][2]int {
	var spans [][2]int
	for _, m := range linkRegex.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if start > 0 && text[start-1] == '@' {
			continue
		}
		for end > start && strings.IndexByte(trailingPunct, text[end-1]) >= 0 {
			end--
		}
		if end > start {
			spans = append(spans, [2]int{start, end})
		}
	}
	return spans
}

// LooksLikeExternalLink сообщает, есть ли в тексте что-то похожее на внешнюю ссылку.
func LooksLikeExternalLink(text string) bool {
	return len(linkSpans(text)) > 0
}

// StripExternalLinks заменяет каждую ссылку на Marker.
func StripExternalLinks(text string) (string, bool) {
	spans := linkSpans(text)
	if len(spans) == 0 {
		return text, false
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s[0]])
		b.WriteString(Marker)
		prev = s[1]
	}
	b.WriteString(text[prev:])
	return b.String(), true
}

// Content - проверяемые поля объявления.
type Content struct {
	Title       string
	Body        string
	ContactText string
}

func (c Content) joined() string {
	return c.Title + "\n" + c.Body + "\n" + c.ContactText
}

// IsNewAccount - аккаунт моложе cfg.NewAccountAge на момент now.
func IsNewAccount(cfg config.Config, author *domain.User, now time.Time) bool {
	return now.Sub(author.CreatedAt) < cfg.NewAccountAge
}

// ShouldQuarantine решает, нужно ли скрыть объявление до проверки.
// Это не отказ: объявление сохраняется с IsPublic=false.
func ShouldQuarantine(cfg config.Config, author *domain.User, c Content, now time.Time) bool {
	if !LooksLikeExternalLink(c.joined()) {
		return false
	}
	if cfg.StrictLinkMode {
		return true
	}
	return IsNewAccount(cfg, author, now)
}
