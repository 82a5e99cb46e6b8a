package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-service/internal/config"
	"github.com/sanosuguru/go-concert-service/internal/domain/client"
	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
)

const clientIDContextKey = "client_id"

// ClientIdentity はクライアント識別Cookieを引き継ぎ、無ければ発行するミドルウェア
//
// Cookieはハンドラー実行前にレスポンスヘッダーへ付与するため、
// ハンドラーがボディを書き込んだ後でも確実に送られる。
func ClientIdentity(assigner *client.Assigner, cfg config.CookieConfig, m *metrics.Metrics) echo.MiddlewareFunc {
	name := cfg.Name
	if name == "" {
		name = client.DefaultCookieName
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var existing string
			if ck, err := c.Cookie(name); err == nil {
				existing = ck.Value
			}

			token, minted := assigner.Assign(existing)
			if minted {
				c.SetCookie(newClientCookie(name, token, cfg))
				if m != nil {
					m.ClientTokensIssued.Inc()
				}
				logger.Debug("クライアントトークンを発行しました", zap.String("client_id", token))
			}

			c.Set(clientIDContextKey, token)
			return next(c)
		}
	}
}

// ClientID はリクエストに紐づくクライアントトークンを返す
// ClientIdentity を通っていない場合は空文字
func ClientID(c echo.Context) string {
	id, _ := c.Get(clientIDContextKey).(string)
	return id
}

func newClientCookie(name, token string, cfg config.CookieConfig) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.MaxAge > 0 {
		ck.MaxAge = int(cfg.MaxAge / time.Second)
		ck.Expires = time.Now().Add(cfg.MaxAge).UTC()
	}
	return ck
}
