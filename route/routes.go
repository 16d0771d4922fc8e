package route

import (
	"net/http"

	"dashboard/auth"
	"dashboard/controller"
	"dashboard/model"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth         *auth.Handler
	Controller   *controller.Handler
	Tokens       *utils.TokenManager
	CookieName   string
	LoginLimiter *utils.IPLimiter
	Metrics      http.Handler
}

func DashboardRoutes(router *gin.Engine, d Deps) {
	h := d.Controller

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics))
	}

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", d.LoginLimiter.Middleware(), d.Auth.Login)
		authGroup.POST("/signup", d.Auth.Signup)
		authGroup.POST("/forgot-password", d.LoginLimiter.Middleware(), d.Auth.ForgotPassword)
		authGroup.POST("/verify-otp", d.Auth.VerifyOTP)
		authGroup.POST("/reset-password", d.Auth.ResetPassword)
		authGroup.POST("/refresh", d.Auth.Refresh)
		authGroup.POST("/logout", d.Auth.Logout)
	}
	router.GET("/api/landing/foods", h.LandingFoods)

	api := router.Group("/api")
	api.Use(utils.TokenMiddleware(d.Tokens, d.CookieName), d.Auth.SessionMiddleware())
	{
		api.GET("/dashboard", h.Dashboard)
		api.GET("/notifications", h.Notifications)
		api.GET("/notifications/history", h.NotificationHistory)
		api.DELETE("/notifications/:id", h.DeleteNotification)
		api.DELETE("/notifications", h.ClearNotifications)
		api.GET("/alerts/stream", h.AlertStream)
		api.PATCH("/profile", h.UpdateProfile)
		api.DELETE("/profile", h.DeleteProfile)
	}

	manager := api.Group("")
	manager.Use(utils.RoleMiddleware(model.RoleManager))
	{
		manager.GET("/orders", h.ListOrders)
		manager.POST("/orders/refresh", h.RefreshOrders)
		manager.GET("/orders/export", h.ExportOrders)
		manager.PATCH("/orders/:id/status", h.UpdateOrderStatus)
		manager.POST("/orders/:id/verify-pickup", h.VerifyPickup)

		manager.GET("/menus", h.ListMenus)
		manager.POST("/menus", h.CreateMenu)
		manager.PATCH("/menus/:id", h.UpdateMenu)
		manager.GET("/menus/:id/foods", h.FoodsByMenu)

		manager.GET("/foods/:id", h.GetFood)
		manager.POST("/foods", h.CreateFood)
		manager.POST("/foods/import", h.ImportFoods)
		manager.PATCH("/foods/:id", h.UpdateFood)
		manager.DELETE("/foods/:id", h.DeleteFood)

		manager.GET("/restaurant", h.MyRestaurant)
		manager.PATCH("/restaurant", h.UpdateRestaurant)
		manager.PATCH("/restaurant/open", h.ToggleOpen)
		manager.PATCH("/restaurant/location", h.UpdateLocation)
		manager.POST("/restaurant/first-login", h.AcknowledgeFirstLogin)

		manager.GET("/balance", h.Balance)
		manager.GET("/balance/history", h.BalanceHistory)
		manager.POST("/balance/withdraw", h.Withdraw)
		manager.GET("/balance/withdrawals", h.MyWithdrawals)

		manager.GET("/analytics", h.Analytics)
	}

	admin := api.Group("/admin")
	admin.Use(utils.RoleMiddleware(model.RoleAdmin))
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.POST("/users", h.CreateUser)
		admin.PATCH("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.GET("/restaurants", h.ListRestaurants)
		admin.POST("/restaurants", h.CreateRestaurant)
		admin.PATCH("/restaurants/:id/status", h.SetRestaurantStatus)
		admin.POST("/restaurants/:id/manager", h.AssignManager)
		admin.GET("/restaurants/:id/orders", h.RestaurantOrders)

		admin.GET("/orders/stats", h.OrderStats)
		admin.GET("/overview", h.Overview)
		admin.GET("/top-restaurants", h.TopRestaurants)

		admin.GET("/withdrawals", h.Withdrawals)
		admin.GET("/withdrawals/export", h.ExportWithdrawals)

		admin.GET("/locations", h.Locations)
		admin.POST("/locations/refresh", h.RequestLocations)
	}
}
