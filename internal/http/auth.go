package http

import (
	"net/http"
	"time"

	"github.com/jmehdipour/outline-admin/internal/session"
	echo "github.com/labstack/echo/v4"
)

type loginRequest struct {
	Password string `json:"password"`
}

type authConfig struct {
	AdminPassword string
	SessionSecret string
	SecureCookies bool
	Now           func() time.Time
}

func loginHandler(cfg authConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		if cfg.AdminPassword == "" || cfg.SessionSecret == "" {
			c.Logger().Error("login: admin password or session secret not configured")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "server misconfigured"})
		}

		var req loginRequest
		_ = c.Bind(&req) // malformed body is treated as an empty password

		if !session.VerifyAdminPassword(req.Password, cfg.AdminPassword) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid password"})
		}

		token := session.Issue(cfg.SessionSecret, cfg.Now())
		c.SetCookie(session.NewCookie(token, cfg.SecureCookies))
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
}

func logoutHandler(secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.SetCookie(session.ClearCookie(secure))
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
}
