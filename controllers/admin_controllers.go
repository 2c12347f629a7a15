package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/services"
	"github.com/tableflow/reservation-app/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB           *gorm.DB
	Tables       *services.TableService
	Reservations *services.ReservationService
	Reconciler   *services.Reconciler
}

func NewAdminController(db *gorm.DB, tables *services.TableService, reservations *services.ReservationService, rec *services.Reconciler) *AdminController {
	return &AdminController{
		DB:           db,
		Tables:       tables,
		Reservations: reservations,
		Reconciler:   rec,
	}
}

// GetDashboard -> table status summary plus today's reservations
func (ac *AdminController) GetDashboard(c *gin.Context) {
	summary, total, err := ac.Tables.StatusSummary()
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	today := ac.Reconciler.Clock.Now().Format(models.DateLayout)
	reservations, err := ac.Reservations.List(today)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Dashboard", gin.H{
		"table_summary":       summary,
		"total_tables":        total,
		"todays_reservations": reservations,
		"reservations_today":  len(reservations),
	})
}

// SyncTables -> manual trigger for the full reconciliation sweep
func (ac *AdminController) SyncTables(c *gin.Context) {
	summary, err := ac.Reconciler.SyncAllTables()
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table statuses synchronized successfully", summary)
}

// GetStatusLogs -> recent audit entries for one table
func (ac *AdminController) GetStatusLogs(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var logs []models.TableStatusLog
	if err := ac.DB.Where("table_id = ?", id).
		Order("created_at desc").Limit(100).
		Find(&logs).Error; err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Status change history", logs)
}
