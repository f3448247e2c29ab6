package api

import (
	"errors"
	"net/http"

	"github.com/UkralStul/matchboard/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
)

// genericRefusal - одинаковый ответ для blocked/forbidden/not-allowed,
// чтобы не выдавать, какое правило сработало.
const genericRefusal = "cannot perform this action"

type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Max           int    `json:"max,omitempty"`
	WindowSeconds int    `json:"windowSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.InvalidInput("malformed JSON body")
	}
	return nil
}

// writeError сводит доменные ошибки к закрытому набору ответов.
// Всё, что не доменная ошибка, - сбой хранилища: 500 и запись в лог.
func (res *Resolver) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := res.Logger.With("request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path)

	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "sign in required"})
	case domain.KindForbidden, domain.KindBanned, domain.KindBlocked, domain.KindNotAllowed:
		// Причина остаётся только в логе
		log.Info("request refused", "kind", domain.KindOf(err), "reason", domain.ReasonOf(err))
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: genericRefusal})
	case domain.KindRateLimited:
		body := errorBody{Error: "rate_limited", Message: "too many requests, try again later"}
		if limit, ok := domain.LimitOf(err); ok {
			body.Max = limit.Max
			body.WindowSeconds = int(limit.Window.Seconds())
			body.Message = "limit is " + limit.String()
		}
		writeJSON(w, http.StatusTooManyRequests, body)
	case domain.KindInvalidInput:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: messageOf(err)})
	case domain.KindInvalidState:
		log.Error("invalid state", "err", err)
		writeJSON(w, http.StatusConflict, errorBody{Error: "invalid_state", Message: "conversation is unavailable"})
	case domain.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: messageOf(err)})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
	}
}

func messageOf(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
