package api

import (
	"context"
	"net/http"
	"strings"
)

// IdentityResolver отдаёт id уже аутентифицированного пользователя.
// Проверка учётных данных - дело внешнего провайдера.
type IdentityResolver interface {
	UserID(r *http.Request) (string, bool)
}

// HeaderIdentity берёт id из заголовка, выставленного шлюзом аутентификации.
type HeaderIdentity struct {
	Header string
}

func (h HeaderIdentity) UserID(r *http.Request) (string, bool) {
	name := h.Header
	if name == "" {
		name = "X-User-ID"
	}
	id := strings.TrimSpace(r.Header.Get(name))
	return id, id != ""
}

type identityKey struct{}

// identityMiddleware кладёт id в контекст; анонимный запрос идёт дальше с пустым id.
func identityMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := resolver.UserID(r); ok {
				r = r.WithContext(context.WithValue(r.Context(), identityKey{}, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUserID - пустая строка для анонимного запроса.
func CurrentUserID(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// requireUser отвечает 401, если личность не установлена.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUserID(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "sign in required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
