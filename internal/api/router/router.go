// Package router はHTTPルーティングとミドルウェアの組み立てを行う
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-concert-service/internal/api"
	"github.com/sanosuguru/go-concert-service/internal/api/handler"
	"github.com/sanosuguru/go-concert-service/internal/api/middleware"
	"github.com/sanosuguru/go-concert-service/internal/config"
	"github.com/sanosuguru/go-concert-service/internal/domain/client"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
)

// Dependencies はルーティングに必要なハンドラーと設定
type Dependencies struct {
	Concerts *handler.ConcertHandler
	Health   *handler.HealthHandler
	Assigner *client.Assigner

	BasePath    string
	Cookie      config.CookieConfig
	MetricsAuth config.MetricsConfig

	// Metrics が nil の場合はHTTPメトリクスを収集しない
	Metrics *metrics.Metrics
	// Gatherer が nil の場合はデフォルトレジストリを公開する
	Gatherer prometheus.Gatherer
}

// New はミドルウェアとルートを設定したEchoインスタンスを作成する
func New(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, deps.Metrics)
	Register(e, deps)
	return e
}

// Register はルートを登録する
func Register(e *echo.Echo, deps Dependencies) {
	e.GET("/health", deps.Health.Check)

	metricsHandler := promhttp.Handler()
	if deps.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
	}
	e.GET("/metrics", echo.WrapHandler(metricsHandler), middleware.MetricsBasicAuth(deps.MetricsAuth))

	assigner := deps.Assigner
	if assigner == nil {
		assigner = client.NewAssigner()
	}

	g := e.Group(deps.BasePath+"/concerts", middleware.ClientIdentity(assigner, deps.Cookie, deps.Metrics))
	g.POST("", deps.Concerts.Create)
	g.GET("", deps.Concerts.List)
	g.DELETE("", deps.Concerts.DeleteAll)
	g.GET("/:id", deps.Concerts.GetByID)
	g.PUT("/:id", deps.Concerts.Update)
	g.DELETE("/:id", deps.Concerts.Delete)
}
