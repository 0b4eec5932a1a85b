package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/controllers"
	"github.com/expo25/eventpass/middleware"
	"github.com/expo25/eventpass/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	ginLogPath := cfg.GinPath
	gl, err := utils.NewRollingFileLogger(ginLogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Session-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	// Count page visits for the dashboard activity figure
	r.Use(middleware.ActivityRecorder(db))

	r.Static("/static", "./static")

	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	r.GET("/admin", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	r.GET("/admin/dashboard", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	userController := controllers.NewUserController(db)
	feedbackController := controllers.NewFeedbackController(db)
	certificateController := controllers.NewCertificateController(db)
	adminController := controllers.NewAdminController(db)

	api := r.Group("/api/v1")

	public := api.Group("")
	public.Use(middleware.RateLimitMiddleware())
	public.POST("/register", userController.Register)
	public.POST("/admin/login", adminController.Login)

	attendee := api.Group("")
	attendee.Use(middleware.SessionRequired())
	attendee.GET("/session", userController.Session)
	attendee.POST("/logout", userController.Logout)
	attendee.GET("/checkin", userController.CheckInState)
	attendee.POST("/checkin", userController.CheckIn)
	attendee.POST("/feedback", feedbackController.Submit)
	attendee.POST("/certificate/photo", certificateController.UploadPhoto)
	attendee.GET("/certificate/preview", certificateController.Preview)
	attendee.GET("/certificate/download", certificateController.Download)
	attendee.POST("/certificate/share", certificateController.Share)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.POST("/logout", adminController.Logout)
	admin.GET("/steps", adminController.ListSteps)
	admin.POST("/steps", adminController.CreateStep)
	admin.DELETE("/steps/:id", adminController.DeleteStep)
	admin.GET("/users", adminController.ListUsers)
	admin.PATCH("/users/:id", adminController.UpdateUser)
	admin.DELETE("/users/:id", adminController.DeleteUser)
	admin.GET("/export", adminController.Export)
	admin.GET("/stats", adminController.Stats)
	admin.GET("/watch/:collection", adminController.Watch)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		// Everything else falls back to the SPA entry
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
