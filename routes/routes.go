package routes

import (
	"trading_backend/controllers"
	"trading_backend/middleware"
	"trading_backend/services/auth"
	"trading_backend/services/marketdata"
	"trading_backend/services/news"
	"trading_backend/services/notify"
	"trading_backend/services/orders"
	"trading_backend/services/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the explicitly constructed services the routes need.
// Everything is built once at process start and passed down by reference;
// there is no ambient service registry.
type Deps struct {
	DB         *gorm.DB
	Store      *store.Store
	Lifecycle  *orders.Lifecycle
	JWTService *auth.JWTService
	Market     *marketdata.Client
	Archive    *news.Archive
	Hub        *notify.Hub
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	userController := controllers.NewUserController(deps.DB, deps.JWTService)
	orderController := controllers.NewOrderController(deps.Store, deps.Lifecycle)
	alertController := controllers.NewAlertController(deps.Store)
	stockController := controllers.NewStockController(deps.Market, deps.Archive, deps.Hub)

	api := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", userController.Register)
			authGroup.POST("/login", userController.Login)
		}

		// Authenticated routes
		authed := api.Group("")
		authed.Use(middleware.JWTAuthMiddleware(deps.JWTService))
		{
			// Order routes
			ordersGroup := authed.Group("/orders")
			{
				ordersGroup.POST("", orderController.PlaceOrder)
				ordersGroup.GET("", orderController.GetOrders)
				ordersGroup.GET("/:id", orderController.GetOrder)
				ordersGroup.POST("/:id/cancel", orderController.CancelOrder)
			}

			// Alert routes
			alerts := authed.Group("/alerts")
			{
				alerts.POST("", alertController.CreateAlert)
				alerts.GET("", alertController.GetAlerts)
				alerts.POST("/:id/disable", alertController.DisableAlert)
				alerts.POST("/:id/rearm", alertController.RearmAlert)
			}

			// Stock routes
			stocks := authed.Group("/stocks")
			{
				stocks.GET("/:symbol/quote", stockController.GetQuote)
				stocks.GET("/:symbol/news", stockController.GetCompanyNews)
			}

			// Market routes
			market := authed.Group("/market")
			{
				market.GET("/news", stockController.GetMarketNews)
				market.GET("/news/archive", stockController.GetArchivedNews)
				market.GET("/status", stockController.GetMarketStatus)
			}

			// Realtime event stream
			authed.GET("/ws", func(c *gin.Context) {
				userID, err := middleware.GetUserIDFromContext(c)
				if err != nil {
					c.AbortWithStatus(401)
					return
				}
				deps.Hub.HandleWebSocket(c.Writer, c.Request, userID)
			})
		}
	}
}
