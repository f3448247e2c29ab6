// Package api - HTTP и websocket транспорт поверх ядра доверия и доски.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/matchboard/internal/dataloader"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// NewRouter собирает все маршруты. Лоадеры создаются на каждый запрос.
func NewRouter(res *Resolver) http.Handler {
	if res.Logger == nil {
		res.Logger = slog.Default()
	}
	if res.Identity == nil {
		res.Identity = HeaderIdentity{}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(res.Logger))
	router.Use(middleware.Recoverer)
	router.Use(identityMiddleware(res.Identity))
	router.Use(dataloader.Middleware(res.Storage))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/users", res.registerUser)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/users/{userID}", res.getUser)
			r.Post("/users/{userID}/block", res.toggleBlock)
			r.Delete("/users/{userID}/block", res.unblock)
			r.Post("/users/{userID}/favorite", res.favoriteUser)

			r.Post("/posts", res.createPost)
			r.Get("/posts/{postID}", res.getPost)
			r.Put("/posts/{postID}", res.updatePost)
			r.Get("/posts/{postID}/contact", res.getContact)
			r.Post("/posts/{postID}/reports", res.createReport)
			r.Post("/posts/{postID}/favorite", res.favoritePost)

			r.Post("/threads", res.openThread)
			r.Get("/threads", res.listThreads)
			r.Get("/threads/{threadID}", res.getThread)
			r.Post("/threads/{threadID}/messages", res.sendMessage)
			r.Post("/threads/{threadID}/read", res.markThreadRead)

			r.Get("/badges", res.getBadges)
			r.Get("/notifications", res.listNotifications)
			r.Post("/notifications/read", res.markNotificationsRead)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/reports", res.listReports)
				r.Post("/reports/{reportID}/resolve", res.resolveReport)
				r.Post("/users/{userID}/ban", res.banUser)
				r.Post("/users/{userID}/unban", res.unbanUser)
				r.Post("/posts/{postID}/visibility", res.togglePostVisibility)
			})
		})
	})

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	router.With(requireUser).Get("/ws/badges", res.badgeSocket(upgrader, 10*time.Second))

	return router
}

// requestLogger пишет одну строку slog на запрос.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
