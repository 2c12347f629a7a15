package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tableflow/reservation-app/controllers"
	"github.com/tableflow/reservation-app/middlewares"
	"github.com/tableflow/reservation-app/services"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, reservations *services.ReservationService, tables *services.TableService, reconciler *services.Reconciler) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(db)
	tableCtrl := controllers.NewTableController(tables)
	reservationCtrl := controllers.NewReservationController(reservations)
	adminCtrl := controllers.NewAdminController(db, tables, reservations, reconciler)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Booking API: customers browse tables and book without an account.
	r.GET("/tables", tableCtrl.GetAllTables)
	r.GET("/tables/availability", tableCtrl.CheckAvailability)
	r.GET("/tables/:table_id", tableCtrl.GetTableByID)
	r.POST("/reservations", reservationCtrl.CreateReservation)
	r.GET("/reservations", reservationCtrl.GetAllReservations)
	r.GET("/reservations/:reservation_id", reservationCtrl.GetReservationByID)

	// ----------------------------------------------------------------
	//                      CUSTOMER ROUTES
	// ----------------------------------------------------------------
	my := r.Group("/my")
	my.Use(middlewares.AuthMiddleware())
	{
		my.GET("/reservations", reservationCtrl.GetMyReservations)
		my.PATCH("/reservations/:reservation_id/cancel", reservationCtrl.CancelMyReservation)
	}

	// ----------------------------------------------------------------
	//                      STAFF / ADMIN ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware())
	admin.Use(middlewares.RequireRole("staff"))
	{
		admin.GET("/profile", userCtrl.GetProfile)
		admin.GET("/dashboard", adminCtrl.GetDashboard)
		admin.POST("/tables/sync", adminCtrl.SyncTables)

		admin.POST("/tables", tableCtrl.CreateTable)
		admin.PUT("/tables/:table_id", tableCtrl.UpdateTable)
		admin.PATCH("/tables/:table_id/status", tableCtrl.UpdateTableStatus)
		admin.POST("/tables/bulk-status", tableCtrl.BulkUpdateTableStatus)
		admin.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
		admin.GET("/tables/:table_id/status-logs", adminCtrl.GetStatusLogs)

		admin.PUT("/reservations/:reservation_id", reservationCtrl.UpdateReservation)
		admin.PATCH("/reservations/:reservation_id/status", reservationCtrl.UpdateReservationStatus)
		admin.DELETE("/reservations/:reservation_id", reservationCtrl.DeleteReservation)
	}

	// Realtime dashboard updates (token via query parameter).
	ws := r.Group("/ws")
	ws.Use(middlewares.AuthMiddleware())
	ws.GET("", controllers.DashboardWSHandler)

	return r
}
