package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/metrics"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/services"
)

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Services    *services.Services
	Store       Pinger
	Stream      Streamer
	Limiter     *middleware.RateLimiter
	Log         *logger.Logger
	Env         string
	StoreDriver string
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Order: RequestID -> Logger -> Recovery -> CORS -> Metrics -> Actor -> RateLimit
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Log))
	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.CORS(deps.CORSOrigins))
	router.Use(metrics.Middleware())
	router.Use(middleware.Actor())
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Handler())
	}

	health := NewHealthHandler(deps.Store, deps.Env, deps.StoreDriver)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	svc := deps.Services
	properties := NewPropertyHandler(svc.Properties)
	admin := NewAdminHandler(svc.Approvals)
	analytics := NewAnalyticsHandler(svc.Analytics)
	applications := NewApplicationHandler(svc.Applications)
	transactions := NewTransactionHandler(svc.Ledger, svc.Payments)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)

		props := v1.Group("/properties")
		{
			props.POST("", properties.Submit)
			props.GET("", properties.List)
			props.GET("/:id", properties.Get)
			props.PUT("/:id", properties.Resubmit)
			props.PATCH("/:id/status", properties.ChangeStatus)
			props.POST("/:id/applications", applications.Submit)
			props.GET("/:id/applications", applications.ListByProperty)
			props.GET("/:id/transactions", transactions.ListByProperty)
		}

		apps := v1.Group("/applications")
		{
			apps.GET("", applications.ListByApplicant)
			apps.GET("/:id", applications.Get)
			apps.POST("/:id/decision", applications.Decide)
		}

		txs := v1.Group("/transactions")
		{
			txs.GET("", transactions.List)
			txs.GET("/:id", transactions.Get)
			txs.POST("/:id/terminate", transactions.Terminate)
			txs.GET("/:id/obligations", transactions.Obligations)
			txs.POST("/:id/payments", transactions.Pay)
		}

		adm := v1.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			adm.POST("/properties/:id/approve", admin.Approve)
			adm.POST("/properties/:id/reject", admin.Reject)
			adm.POST("/properties/:id/disable", admin.Disable)
			adm.POST("/properties/:id/enable", admin.Enable)
			adm.POST("/properties/:id/verify", admin.Verify)
			adm.POST("/properties/:id/unverify", admin.Unverify)
			adm.GET("/analytics", analytics.Snapshot)
		}

		v1.GET("/owners/me/analytics",
			middleware.RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleSeeker),
			analytics.OwnerReport)

		if deps.Stream != nil {
			v1.GET("/events/stream", NewEventsHandler(deps.Stream).Stream)
		}
	}

	return router
}
