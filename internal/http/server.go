package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/http/middleware"
	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	loginPath      = "/api/auth/login"
	logoutPath     = "/api/auth/logout"
	cronExpirePath = "/api/cron/expire"
)

type Server struct{ e *echo.Echo }

// Deps are the collaborators the HTTP layer needs. Redis is optional and only
// backs the login rate limit.
type Deps struct {
	Customers CustomerService
	Audit     repository.AuditReader
	Redis     *redis.Client
	Now       func() time.Time
}

func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	e.Use(middleware.GatekeeperMiddleware(middleware.GatekeeperConfig{
		SessionSecret: cfg.Auth.SessionSecret,
		CronSecret:    cfg.Auth.CronSecret,
		CronPath:      cronExpirePath,
		PublicPaths:   []string{loginPath, logoutPath},
		LoginPath:     "/login",
		Now:           deps.Now,
	}))
	loginRL := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		Attempts:       cfg.LoginRateLimit.Attempts,
		KeyPrefix:      "rl:login:",
		Window:         cfg.LoginRateLimit.Window,
		RetryAfterHint: true,
	})

	// pages
	e.GET("/", func(c echo.Context) error { return c.Redirect(http.StatusFound, "/dashboard") })
	e.GET("/login", pageHandler("login.html"))
	e.GET("/dashboard", pageHandler("dashboard.html"))

	// routes
	e.POST(loginPath, loginHandler(authConfig{
		AdminPassword: cfg.Auth.AdminPassword,
		SessionSecret: cfg.Auth.SessionSecret,
		SecureCookies: cfg.HTTP.SecureCookies,
		Now:           deps.Now,
	}), loginRL)
	e.POST(logoutPath, logoutHandler(cfg.HTTP.SecureCookies))
	e.POST(cronExpirePath, expireHandler(deps.Customers))

	api := e.Group("/api")
	api.GET("/customers", listCustomersHandler(deps.Customers))
	api.POST("/customers", createCustomerHandler(deps.Customers))
	api.GET("/customers/:id", getCustomerHandler(deps.Customers))
	api.PATCH("/customers/:id", updateCustomerHandler(deps.Customers))
	api.DELETE("/customers/:id", deleteCustomerHandler(deps.Customers))
	api.POST("/customers/:id/renew", renewCustomerHandler(deps.Customers))
	api.POST("/customers/:id/revoke", revokeCustomerHandler(deps.Customers))
	api.POST("/customers/:id/lock", lockCustomerHandler(deps.Customers))
	api.POST("/customers/:id/unlock", unlockCustomerHandler(deps.Customers))
	if deps.Audit != nil {
		api.GET("/audit", listAuditHandler(deps.Audit))
	}

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	s.e.Logger.Infof("http: listening on %s", addr)
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP exposes the router, mostly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }
