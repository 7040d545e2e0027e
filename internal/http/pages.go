package http

import (
	"embed"
	"net/http"

	echo "github.com/labstack/echo/v4"
)

//go:embed web/*.html
var pages embed.FS

func pageHandler(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := pages.ReadFile("web/" + name)
		if err != nil {
			return echo.ErrNotFound
		}
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.HTMLBlob(http.StatusOK, b)
	}
}
