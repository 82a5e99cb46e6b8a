package api

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Respond は Accept ヘッダーに応じて JSON か XML でレスポンスを返す
// XML が JSON より優先される場合だけ XML を使い、それ以外は JSON
func Respond(c echo.Context, code int, body interface{}) error {
	if PrefersXML(c.Request()) {
		return c.XML(code, body)
	}
	return c.JSON(code, body)
}

// PrefersXML はリクエストが XML を JSON より優先して受け付けるかを返す
func PrefersXML(r *http.Request) bool {
	accept := r.Header.Get(echo.HeaderAccept)
	if accept == "" {
		return false
	}

	var xmlQ, jsonQ float64 = -1, -1
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		switch mediaType {
		case echo.MIMEApplicationXML, echo.MIMETextXML:
			xmlQ = max(xmlQ, q)
		case echo.MIMEApplicationJSON, "application/*", "*/*":
			jsonQ = max(jsonQ, q)
		}
	}
	return xmlQ > 0 && xmlQ > jsonQ
}
