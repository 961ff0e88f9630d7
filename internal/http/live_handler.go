package http

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"fintrack/internal/live"
)

// LiveHandler upgrades an authenticated dashboard connection to a websocket
// and streams hub envelopes until the client disconnects. Auth is checked
// before the upgrade so an anonymous client gets a plain 401, not a failed
// handshake.
func LiveHandler(hub *live.Hub) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		if !isAdmin(ctx) {
			return unauthorized(ctx)
		}

		if !websocket.IsWebSocketUpgrade(ctx.Ctx) {
			return fiber.ErrUpgradeRequired
		}

		logger := ctx.Logger
		handler := websocket.New(func(conn *websocket.Conn) {
			client := hub.Register()
			defer hub.Unregister(client)

			// Reader goroutine: the dashboard never sends data, but reads
			// are needed to detect disconnects and answer pings.
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}()

			for {
				select {
				case payload, ok := <-client.Send():
					if !ok {
						return
					}
					if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						logger.Debug("Live client write failed", slog.Any("error", err))
						return
					}
				case <-done:
					return
				}
			}
		})

		return handler(ctx.Ctx)
	}
}
