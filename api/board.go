package api

import (
	"net/http"
	"strconv"

	"github.com/UkralStul/matchboard/internal/board"
	"github.com/UkralStul/matchboard/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (res *Resolver) registerUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DisplayName string      `json:"displayName"`
		Role        domain.Role `json:"role"`
	}
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	user, err := res.Board.Users.Register(r.Context(), in.DisplayName, in.Role)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (res *Resolver) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := res.Board.Users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (res *Resolver) createPost(w http.ResponseWriter, r *http.Request) {
	var in board.PostInput
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	out, err := res.Board.Posts.Create(r.Context(), CurrentUserID(r.Context()), in)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (res *Resolver) updatePost(w http.ResponseWriter, r *http.Request) {
	var in board.PostInput
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	out, err := res.Board.Posts.Update(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "postID"), in)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (res *Resolver) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := res.Board.Posts.Get(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "postID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (res *Resolver) createReport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason domain.ReportReason `json:"reason"`
		Detail string              `json:"detail"`
	}
	if err := decodeJSON(r, &in); err != nil {
		res.writeError(w, r, err)
		return
	}
	report, err := res.Board.Reports.Create(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "postID"), in.Reason, in.Detail)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (res *Resolver) favoritePost(w http.ResponseWriter, r *http.Request) {
	on, err := res.Board.Favorites.TogglePost(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "postID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

func (res *Resolver) favoriteUser(w http.ResponseWriter, r *http.Request) {
	on, err := res.Board.Favorites.ToggleUser(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

// === Admin ===

func (res *Resolver) listReports(w http.ResponseWriter, r *http.Request) {
	openOnly := true
	if v := r.URL.Query().Get("open"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			res.writeError(w, r, domain.InvalidInput("open must be a boolean"))
			return
		}
		openOnly = parsed
	}
	list, err := res.Board.Reports.List(r.Context(), CurrentUserID(r.Context()), openOnly)
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (res *Resolver) resolveReport(w http.ResponseWriter, r *http.Request) {
	report, err := res.Board.Reports.Resolve(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "reportID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (res *Resolver) banUser(w http.ResponseWriter, r *http.Request) {
	if err := res.Board.Moderation.Ban(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "userID")); err != nil {
		res.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resolver) unbanUser(w http.ResponseWriter, r *http.Request) {
	if err := res.Board.Moderation.Unban(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "userID")); err != nil {
		res.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resolver) togglePostVisibility(w http.ResponseWriter, r *http.Request) {
	post, err := res.Board.Moderation.TogglePostVisibility(r.Context(), CurrentUserID(r.Context()), chi.URLParam(r, "postID"))
	if err != nil {
		res.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
