package core

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/violet-hub/keygate/api/middleware"
	"github.com/violet-hub/keygate/config"
)

// setupRouter builds the gin engine with global middleware.
func setupRouter(deps *RouterDependencies) (*gin.Engine, func()) {
	cfg := deps.Config

	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	router.Use(middleware.RequestID())

	rl := middleware.NewIPRateLimiter(
		cfg.RateLimitRegisterRPS,
		cfg.RateLimitRegisterBurst,
		cfg.RateLimitExpireTime,
	)
	deps.RateLimiter = rl
	cleanup := func() {
		rl.StopCleanup()
	}

	RegisterRoutes(router, deps)

	return router, cleanup
}

// StartServer builds the http.Server; the caller runs ListenAndServe.
func StartServer(deps *RouterDependencies) (*http.Server, func()) {
	cfg := deps.Config
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
