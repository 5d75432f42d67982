package core

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/violet-hub/keygate/api/common"
	"github.com/violet-hub/keygate/api/handler/register"
	"github.com/violet-hub/keygate/api/middleware"
	"github.com/violet-hub/keygate/config"
	"github.com/violet-hub/keygate/database"
	"gorm.io/gorm"
)

var startTime = time.Now()

// RouterDependencies carries everything route registration needs.
type RouterDependencies struct {
	Config          *config.Config
	DB              *gorm.DB
	RegisterHandler *register.Handler
	RateLimiter     *middleware.IPRateLimiter
}

// RegisterRoutes wires all routes onto the engine.
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	router.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		httpStatus := http.StatusOK
		if err := database.Ping(c.Request.Context(), deps.DB); err != nil {
			dbStatus = "unavailable"
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status": dbStatus,
			"uptime": time.Since(startTime).Round(time.Second).String(),
			"checks": gin.H{
				"database": dbStatus,
			},
		})
	})

	router.GET("/version", func(c *gin.Context) {
		common.RespondSuccessData(c, "", gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	registerGroup := router.Group("/register")
	registerGroup.Use(deps.RateLimiter.Middleware())
	{
		registerGroup.POST("", deps.RegisterHandler.Register) // POST /register
	}
}
