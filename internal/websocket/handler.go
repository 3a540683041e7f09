package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/laundrydash/internal/auth"
	"github.com/dukerupert/laundrydash/internal/guard"
	"github.com/dukerupert/laundrydash/internal/identity"
)

const navigateTimeout = 5 * time.Second

// HandleSessionEvents upgrades a dashboard tab to a websocket and watches its
// session with a guard. Only signed-in tabs join the hub. A tab that is or
// becomes signed out is told to navigate to the login page and disconnected.
func HandleSessionEvents(hub *Hub, provider *identity.Provider, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(auth.CookieName); err == nil {
			token = cookie.Value
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		signedOut := make(chan string, 1)
		g := guard.New(provider.Session(token), guard.NavigatorFunc(func(path string) {
			select {
			case signedOut <- path:
			default:
			}
		}), guard.WithLogger(logger))
		defer g.Close()

		st, err := g.Wait(ctx)
		if err != nil {
			return
		}
		if st.CurrentUser == nil {
			select {
			case path := <-signedOut:
				navigateAndClose(ctx, conn, path, logger)
			case <-ctx.Done():
			}
			return
		}

		client := NewClient(hub, conn)
		hub.Register(client)
		defer hub.Unregister(client)

		go func() {
			select {
			case path := <-signedOut:
				// leave the hub first so no broadcast follows the navigate
				hub.Unregister(client)
				navigateAndClose(ctx, conn, path, logger)
			case <-ctx.Done():
			}
		}()

		client.Run(ctx)
	}
}

func navigateAndClose(ctx context.Context, conn *ws.Conn, path string, logger *slog.Logger) {
	data, err := json.Marshal(Navigate(path))
	if err != nil {
		logger.Error("marshal navigate", "error", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()
	if err := conn.Write(wctx, ws.MessageText, data); err != nil {
		logger.Debug("send navigate", "error", err)
		return
	}
	conn.Close(ws.StatusPolicyViolation, "signed out")
}
