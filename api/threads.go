package api

import (
	"net/http"

	"github.com/UkralStul/matchboard/internal/dataloader"
	"github.com/UkralStul/matchboard/internal/domain"

	"github.com/go-chi/chi/v5"
)

type threadView struct {
	*domain.Thread
	LastMessage *domain.Message `json:"lastMessage"`
}

func (res *Resolver) openThread(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PostID string `json:"postId"`
	}
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	if in.PostID == "" {
		res.writeError(w, r, domain.InvalidInput("postId is required"))
		return
	}
	thread, err := res.Core.Threads.FindOrCreateThreadForPost(r.Context(), in.PostID, CurrentUserID(r.Context()))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (res *Resolver) listThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threads, err := res.Core.Threads.ListThreadsForUser(ctx, CurrentUserID(ctx))
	if err != nil {
		res.writeError(w, r, err)
		return
	}

	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	// Превью всех тредов - одним запросом
	var last []*domain.Message
	if loaders := dataloader.For(ctx); loaders != nil && len(ids) > 0 {
		if last, err = loaders.LastMessages(ctx, ids); err != nil {
			res.writeError(w, r, err)
			return
		}
	}

	views := make([]threadView, len(threads))
	for i, t := range threads {
		views[i] = threadView{Thread: t}
		if i < len(last) {
			views[i].LastMessage = last[i]
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// getThread: открытие треда сдвигает водяной знак прочтения.
func (res *Resolver) getThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := CurrentUserID(ctx)
	thread, err := res.Core.Threads.GetThread(ctx, chi.URLParam(r, "threadID"), userID)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	if err := res.Core.Notifications.MarkThreadRead(ctx, userID, thread.ID); err != nil {
		res.Logger.Warn("mark read on open failed", "thread", thread.ID, "user", userID, "err", err)
	}
	writeJSON(w, http.StatusOK, thread)
}

func (res *Resolver) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	msg, err := res.Core.Messages.Send(r.Context(), chi.URLParam(r, "threadID"), CurrentUserID(r.Context()), in.Body)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (res *Resolver) markThreadRead(w http.ResponseWriter, r *http.Request) {
	err := res.Core.Notifications.MarkThreadRead(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "threadID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resolver) getContact(w http.ResponseWriter, r *http.Request) {
	contact, ok, err := res.Core.Disclosure.ContactFor(r.Context(), chi.URLParam(r, "postID"), CurrentUserID(r.Context()))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Visible     bool   `json:"visible"`
		ContactText string `json:"contactText,omitempty"`
	}{Visible: ok, ContactText: contact})
}

func (res *Resolver) toggleBlock(w http.ResponseWriter, r *http.Request) {
	blocked, err := res.Core.Blocks.Toggle(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"blocked": blocked})
}

func (res *Resolver) unblock(w http.ResponseWriter, r *http.Request) {
	if err := res.Core.Blocks.Unblock(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "userID")); err != nil {
		res.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resolver) getBadges(w http.ResponseWriter, r *http.Request) {
	badge, err := res.Core.Notifications.Badges(r.Context(), CurrentUserID(r.Context()))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

func (res *Resolver) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := res.Core.Notifications.ListNotifications(r.Context(), CurrentUserID(r.Context()))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (res *Resolver) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := res.Core.Notifications.MarkAllNotificationsRead(r.Context(), CurrentUserID(r.Context())); err != nil {
		res.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
