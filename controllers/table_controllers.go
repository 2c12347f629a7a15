package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/services"
	"github.com/tableflow/reservation-app/utils"
)

type TableController struct {
	Service *services.TableService
}

func NewTableController(svc *services.TableService) *TableController {
	return &TableController{Service: svc}
}

// CreateTable -> staff adds a new table
func (tc *TableController) CreateTable(c *gin.Context) {
	var input services.TableInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.Create(input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> list all tables with their current status
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Service.List()
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableByID -> detail of one table
func (tc *TableController) GetTableByID(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.Get(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTable -> staff edits number/capacity/location
func (tc *TableController) UpdateTable(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var input services.TableInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.Update(id, input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// UpdateTableStatus -> manual status change (the only way out of maintenance)
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Service.UpdateStatus(id, models.TableStatus(body.Status))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// BulkUpdateTableStatus -> same manual change applied to many tables
func (tc *TableController) BulkUpdateTableStatus(c *gin.Context) {
	var body struct {
		TableIDs []uint `json:"table_ids" binding:"required"`
		Status   string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result := tc.Service.BulkUpdateStatus(body.TableIDs, models.TableStatus(body.Status))
	utils.RespondJSON(c, http.StatusOK, "Bulk update completed", result)
}

// DeleteTable -> blocked while the table has active reservations
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := tc.Service.Delete(id); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"table_id": id})
}

// CheckAvailability -> tables free for a given date, time window and party size
func (tc *TableController) CheckAvailability(c *gin.Context) {
	duration, _ := strconv.Atoi(c.Query("duration"))
	guests, _ := strconv.Atoi(c.Query("guests"))

	query := services.AvailabilityQuery{
		Date:     c.Query("date"),
		Time:     c.Query("time"),
		Duration: duration,
		Guests:   guests,
	}

	tables, err := tc.Service.CheckAvailability(query)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Available tables", gin.H{
		"available_tables": tables,
		"total_available":  len(tables),
		"search_criteria":  query,
	})
}
