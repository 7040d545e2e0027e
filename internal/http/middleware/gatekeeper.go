package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/outline-admin/internal/session"
	echo "github.com/labstack/echo/v4"
)

// CronSecretHeader carries the shared secret of the expiry sweep trigger.
const CronSecretHeader = "x-cron-secret"

// GatekeeperConfig configures session enforcement for the dashboard and API.
type GatekeeperConfig struct {
	SessionSecret string
	CronSecret    string
	CronPath      string   // e.g. "/api/cron/expire"
	PublicPaths   []string // reachable without a session, e.g. login/logout
	LoginPath     string   // UI redirect target, default "/login"
	Now           func() time.Time
}

// GatekeeperMiddleware guards /dashboard and /api/* with the session cookie.
// API requests are refused with JSON, UI requests are redirected to the login
// page. It only inspects the request.
func GatekeeperMiddleware(cfg GatekeeperConfig) echo.MiddlewareFunc {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	public := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			isAPI := isAPIPath(path)
			if !isAPI && !isDashboardPath(path) {
				return next(c)
			}

			if _, ok := public[path]; ok {
				return next(c)
			}

			if path == cfg.CronPath && cfg.CronSecret != "" {
				got := c.Request().Header.Get(CronSecretHeader)
				if session.Equal([]byte(got), []byte(cfg.CronSecret)) {
					return next(c)
				}
			}

			if cfg.SessionSecret == "" {
				if isAPI {
					return c.JSON(http.StatusInternalServerError, map[string]string{"error": "server misconfigured"})
				}
				return c.Redirect(http.StatusFound, cfg.LoginPath)
			}

			if _, err := session.FromRequest(c.Request(), cfg.SessionSecret, cfg.Now()); err != nil {
				if isAPI {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				}
				return c.Redirect(http.StatusFound, cfg.LoginPath+"?next="+url.QueryEscape(path))
			}

			return next(c)
		}
	}
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

func isDashboardPath(p string) bool {
	return p == "/dashboard" || strings.HasPrefix(p, "/dashboard/")
}
