package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-concert-service/internal/api"
)

// NewTestEcho は本番と同じバリデータとエラーハンドラを設定したEchoを返す
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}
