package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tableflow/reservation-app/config"
	"github.com/tableflow/reservation-app/middlewares"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/router"
	"github.com/tableflow/reservation-app/services"
	"github.com/tableflow/reservation-app/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	cfg := config.Load()

	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	utils.InitDB(db)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// One lock set shared by every status-affecting write path.
	locks := services.NewTableLocks()
	reconciler := services.NewReconciler(db, services.SystemClock, locks, cfg.ReservedWindow, cfg.LockWait)
	reservationSvc := services.NewReservationService(db, services.SystemClock, reconciler)
	tableSvc := services.NewTableService(db, services.SystemClock, reconciler)

	// Periodic sweep keeps statuses converging even without traffic.
	monitor := services.NewStatusMonitor(reconciler, cfg.SyncInterval)
	monitor.Start()
	defer monitor.Stop()

	r := router.SetupRouter(db, reservationSvc, tableSvc, reconciler)

	rateLimiter := middlewares.NewRateLimiter(50, 1)
	r.Use(rateLimiter.RateLimit())

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Table{},
		&models.Reservation{},
		&models.TableStatusLog{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
