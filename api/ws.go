package api

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// badgeSocket отдаёт текущий бейдж, а затем каждое его изменение.
func (res *Resolver) badgeSocket(upgrader websocket.Upgrader, pingInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			res.Logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Подписка до первого чтения, чтобы не потерять обновление между ними
		updates := res.Core.Observer.Subscribe(ctx, userID)

		initial, err := res.Core.Notifications.Badges(ctx, userID)
		if err != nil {
			res.Logger.Error("initial badge failed", "user", userID, "err", err)
			return
		}
		if err := writeFrame(conn, initial); err != nil {
			return
		}

		// Читаем только ради закрытия соединения клиентом
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-updates:
				if err := writeFrame(conn, b); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
