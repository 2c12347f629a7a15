package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/services"
	"github.com/tableflow/reservation-app/utils"
)

type ReservationController struct {
	Service *services.ReservationService
}

func NewReservationController(svc *services.ReservationService) *ReservationController {
	return &ReservationController{Service: svc}
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// CreateReservation -> public booking endpoint
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var input services.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	// A logged-in customer books under their own email.
	if email, exists := c.Get("email"); exists {
		input.CustomerEmail = email.(string)
	}

	res, err := rc.Service.Create(input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Reservation created successfully", res)
}

// GetAllReservations -> list reservations, optional ?date=YYYY-MM-DD filter
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	reservations, err := rc.Service.List(c.Query("date"))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}

// GetReservationByID -> detail of one reservation
func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Service.Get(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", res)
}

// UpdateReservation -> staff edits reservation details
func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var input services.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Service.Update(id, input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation updated", res)
}

// UpdateReservationStatus -> staff lifecycle transition
func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
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

	res, err := rc.Service.UpdateStatus(id, models.ReservationStatus(body.Status))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation status updated", res)
}

// DeleteReservation -> staff removes a reservation
func (rc *ReservationController) DeleteReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := rc.Service.Delete(id); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation deleted", gin.H{"reservation_id": id})
}

// GetMyReservations -> the authenticated customer's bookings
func (rc *ReservationController) GetMyReservations(c *gin.Context) {
	email, exists := c.Get("email")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	reservations, err := rc.Service.ListByCustomer(email.(string))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Your reservations", reservations)
}

// CancelMyReservation -> customer cancels their own upcoming booking
func (rc *ReservationController) CancelMyReservation(c *gin.Context) {
	id, err := paramID(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	email, exists := c.Get("email")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	res, err := rc.Service.CancelByCustomer(id, email.(string))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled successfully", res)
}
