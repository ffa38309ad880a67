package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// HandleWebSocket rate limits, checks the proof-of-work token, upgrades the connection
// and runs the client until it disconnects.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		if deps.PoW.Enabled() && !deps.PoW.ConsumeProofToken(r) {
			resp.RespondError(w, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		if payload == nil && jwt.HasToken(r) {
			resp.RespondError(w, errs.NewError(errs.ErrUnauthorized))
			return
		}
		admin := payload.IsAdmin()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		connID := uuid.New().String()
		client := chat.NewClient(connID, conn, deps.Hub, deps.Manager)

		admitted := deps.Manager.Connect(connID, ip, admin, func() {
			deps.Hub.Register(client)
		})
		if !admitted {
			logx.Info("WebSocket connection refused: address is banned.", "ip", logx.AnonymizeIP(ip))
			client.Close()
			client.WritePump()
			return
		}

		go client.WritePump()

		logx.Logger().Info().
			Str("conn_id", connID).
			Str("ip", logx.AnonymizeIP(ip)).
			Bool("admin", admin).
			Msg("WebSocket connection established.")

		client.ReadPump()
	}
}
