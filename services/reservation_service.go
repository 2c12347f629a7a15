package services

import (
	"errors"
	"net/mail"
	"time"

	"github.com/tableflow/reservation-app/apperr"
	"github.com/tableflow/reservation-app/kds"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/utils"
	"gorm.io/gorm"
)

const (
	MinDurationMinutes = 30
	MaxDurationMinutes = 480
	MaxGuests          = 20
)

// ReservationService owns every reservation write. Each one holds the
// table's lock for its full read-modify-write sequence, so the overlap
// check and the insert it guards can never be split by a concurrent
// booking for the same table.
type ReservationService struct {
	DB         *gorm.DB
	Clock      Clock
	Reconciler *Reconciler
	Locks      *TableLocks
	LockWait   time.Duration
}

func NewReservationService(db *gorm.DB, clock Clock, rec *Reconciler) *ReservationService {
	return &ReservationService{
		DB:         db,
		Clock:      clock,
		Reconciler: rec,
		Locks:      rec.Locks,
		LockWait:   rec.LockWait,
	}
}

type ReservationInput struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	CustomerEmail   string `json:"customer_email" binding:"required"`
	Date            string `json:"date" binding:"required"`
	Time            string `json:"time" binding:"required"`
	Duration        int    `json:"duration" binding:"required"`
	Guests          int    `json:"guests" binding:"required"`
	TableID         uint   `json:"table_id" binding:"required"`
	SpecialRequests string `json:"special_requests"`
	Notes           string `json:"notes"`
}

// validate rejects malformed input before any lock is taken.
func (s *ReservationService) validate(in ReservationInput) error {
	if in.CustomerName == "" || len(in.CustomerName) > 255 {
		return apperr.Validation("customer name is required (max 255 characters)")
	}
	if in.CustomerPhone == "" || len(in.CustomerPhone) > 20 {
		return apperr.Validation("customer phone is required (max 20 characters)")
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return apperr.Validation("customer email is not a valid address")
	}
	date, err := time.ParseInLocation(models.DateLayout, in.Date, time.Local)
	if err != nil {
		return apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if _, err := time.Parse(models.TimeLayout, in.Time); err != nil {
		return apperr.Validation("time must be in HH:MM format")
	}
	today, _ := time.ParseInLocation(models.DateLayout, s.Clock.Now().Format(models.DateLayout), time.Local)
	if date.Before(today) {
		return apperr.Validation("date must not be in the past")
	}
	if in.Duration < MinDurationMinutes || in.Duration > MaxDurationMinutes {
		return apperr.Validation("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
	}
	if in.Guests < 1 || in.Guests > MaxGuests {
		return apperr.Validation("guests must be between 1 and %d", MaxGuests)
	}
	return nil
}

// Create books a table for a time window. The overlap check runs under the
// table lock inside the same transaction scope as the insert, so of two
// concurrent requests for overlapping slots exactly one can win.
func (s *ReservationService) Create(in ReservationInput) (*models.Reservation, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	if err := s.Locks.Acquire(in.TableID, s.LockWait); err != nil {
		return nil, err
	}

	res := &models.Reservation{
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		Date:            in.Date,
		Time:            in.Time,
		Duration:        in.Duration,
		Guests:          in.Guests,
		TableID:         in.TableID,
		Status:          models.ReservationPending,
		SpecialRequests: in.SpecialRequests,
		Notes:           in.Notes,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, in.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("table %d not found", in.TableID)
			}
			return err
		}
		if table.UnderMaintenance() {
			return apperr.Conflict("table %d is under maintenance and not available for booking", table.Number)
		}

		if err := s.assertNoConflict(tx, res, 0); err != nil {
			return err
		}
		return tx.Create(res).Error
	})
	s.Locks.Release(in.TableID)
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Reservation %d created for table %d on %s %s", res.ID, res.TableID, res.Date, res.Time)
	kds.BroadcastReservationCreate(*res)

	// Eager reconcile so a booking within the reserved window flips the
	// table to reserved immediately instead of on the next sweep.
	s.Reconciler.ReconcileAfterMutation(res.TableID)

	return s.Get(res.ID)
}

// assertNoConflict scans the target table's active reservations for the
// same date and fails when the requested window overlaps one of them.
// Must run inside the caller's transaction with the table lock held.
func (s *ReservationService) assertNoConflict(tx *gorm.DB, res *models.Reservation, excludeID uint) error {
	var existing []models.Reservation
	if err := tx.
		Where("table_id = ? AND date = ? AND status IN ?", res.TableID, res.Date, models.ActiveReservationStatuses).
		Find(&existing).Error; err != nil {
		return err
	}

	conflict := FindConflict(res.StartDateTime(), time.Duration(res.Duration)*time.Minute, existing, excludeID)
	if conflict != nil {
		return apperr.Conflict("slot already taken: table is booked from %s for %d minutes", conflict.Time, conflict.Duration)
	}
	return nil
}

// Update rewrites a reservation's details. When the reservation moves to
// another table, both tables are reconciled afterwards.
func (s *ReservationService) Update(id uint, in ReservationInput) (*models.Reservation, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	// The unlocked read only decides which locks to take; the row is
	// re-read under them.
	oldTableID, err := s.tableIDOf(id)
	if err != nil {
		return nil, err
	}

	// Lock in ascending ID order so two updates moving reservations
	// between the same pair of tables cannot deadlock.
	lockIDs := []uint{in.TableID}
	if oldTableID != in.TableID {
		lockIDs = append(lockIDs, oldTableID)
		if lockIDs[0] > lockIDs[1] {
			lockIDs[0], lockIDs[1] = lockIDs[1], lockIDs[0]
		}
	}
	for i, tid := range lockIDs {
		if err := s.Locks.Acquire(tid, s.LockWait); err != nil {
			for _, held := range lockIDs[:i] {
				s.Locks.Release(held)
			}
			return nil, err
		}
	}
	releaseLocks := func() {
		for _, tid := range lockIDs {
			s.Locks.Release(tid)
		}
	}

	var res models.Reservation
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("reservation %d not found", id)
			}
			return err
		}
		if res.TableID != oldTableID {
			return apperr.Conflict("reservation %d changed tables, please retry", id)
		}

		var table models.Table
		if err := tx.First(&table, in.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("table %d not found", in.TableID)
			}
			return err
		}
		if table.UnderMaintenance() {
			return apperr.Conflict("table %d is under maintenance and not available for booking", table.Number)
		}

		res.CustomerName = in.CustomerName
		res.CustomerPhone = in.CustomerPhone
		res.CustomerEmail = in.CustomerEmail
		res.Date = in.Date
		res.Time = in.Time
		res.Duration = in.Duration
		res.Guests = in.Guests
		res.TableID = in.TableID
		res.SpecialRequests = in.SpecialRequests
		res.Notes = in.Notes

		if err := s.assertNoConflict(tx, &res, res.ID); err != nil {
			return err
		}
		// Omit the association or gorm resets table_id from the stale
		// preloaded Table on save.
		return tx.Omit("Table").Save(&res).Error
	})
	releaseLocks()
	if err != nil {
		return nil, err
	}

	kds.BroadcastReservationUpdate(res)

	s.Reconciler.ReconcileAfterMutation(in.TableID)
	if oldTableID != in.TableID {
		s.Reconciler.ReconcileAfterMutation(oldTableID)
	}
	return s.Get(res.ID)
}

// UpdateStatus applies a staff-driven lifecycle transition. A same-status
// request is a no-op success; anything outside the transition table is
// rejected with the from/to pair named.
func (s *ReservationService) UpdateStatus(id uint, newStatus models.ReservationStatus) (*models.Reservation, error) {
	if !newStatus.Valid() {
		return nil, apperr.Validation("unknown reservation status %q", string(newStatus))
	}

	tableID, err := s.tableIDOf(id)
	if err != nil {
		return nil, err
	}

	if err := s.Locks.Acquire(tableID, s.LockWait); err != nil {
		return nil, err
	}
	res, oldStatus, err := s.transitionLocked(id, tableID, newStatus)
	s.Locks.Release(tableID)
	if err != nil {
		return nil, err
	}
	if oldStatus == newStatus {
		return res, nil
	}

	utils.InfoLogger.Printf("Reservation %d status updated from %s to %s", res.ID, oldStatus, newStatus)
	kds.BroadcastReservationUpdate(*res)

	s.Reconciler.ReconcileAfterMutation(tableID)
	return s.Get(res.ID)
}

// tableIDOf reads which table a reservation sits on so the caller knows
// which lock to take. The reservation itself must be re-read after the
// lock is held.
func (s *ReservationService) tableIDOf(id uint) (uint, error) {
	res, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	return res.TableID, nil
}

// transitionLocked re-reads the reservation under the table lock and
// validates the transition against its current status, not the one seen
// before the lock was taken. A concurrent writer may have advanced the
// status while this caller waited; terminal statuses stay terminal.
func (s *ReservationService) transitionLocked(id, tableID uint, newStatus models.ReservationStatus) (*models.Reservation, models.ReservationStatus, error) {
	res, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	if res.TableID != tableID {
		return nil, "", apperr.Conflict("reservation %d changed tables, please retry", id)
	}

	if res.Status == newStatus {
		return res, res.Status, nil
	}
	if !res.Status.CanTransitionTo(newStatus) {
		return nil, "", apperr.InvalidTransition(string(res.Status), string(newStatus))
	}

	oldStatus := res.Status
	res.Status = newStatus
	if err := s.DB.Omit("Table").Save(res).Error; err != nil {
		return nil, "", err
	}
	return res, oldStatus, nil
}

// CancelByCustomer cancels the customer's own upcoming reservation.
// Ownership is checked by contact email; past or terminal reservations
// cannot be cancelled.
func (s *ReservationService) CancelByCustomer(id uint, customerEmail string) (*models.Reservation, error) {
	tableID, err := s.tableIDOf(id)
	if err != nil {
		return nil, err
	}

	if err := s.Locks.Acquire(tableID, s.LockWait); err != nil {
		return nil, err
	}
	res, err := s.cancelLocked(id, tableID, customerEmail)
	s.Locks.Release(tableID)
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Reservation %d cancelled by customer %s", res.ID, customerEmail)
	kds.BroadcastReservationUpdate(*res)

	s.Reconciler.ReconcileAfterMutation(tableID)
	return s.Get(res.ID)
}

// cancelLocked re-reads the reservation under the table lock and checks
// every cancel guard against its current state.
func (s *ReservationService) cancelLocked(id, tableID uint, customerEmail string) (*models.Reservation, error) {
	res, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if res.TableID != tableID {
		return nil, apperr.Conflict("reservation %d changed tables, please retry", id)
	}

	if res.CustomerEmail != customerEmail {
		return nil, apperr.Unauthorized("this reservation does not belong to you")
	}
	if res.Status != models.ReservationPending && res.Status != models.ReservationConfirmed {
		return nil, apperr.Conflict("reservation cannot be cancelled")
	}
	if !res.StartDateTime().After(s.Clock.Now()) {
		return nil, apperr.Conflict("reservation cannot be cancelled")
	}

	res.Status = models.ReservationCancelled
	if err := s.DB.Omit("Table").Save(res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes a reservation and reconciles its table.
func (s *ReservationService) Delete(id uint) error {
	tableID, err := s.tableIDOf(id)
	if err != nil {
		return err
	}

	if err := s.Locks.Acquire(tableID, s.LockWait); err != nil {
		return err
	}
	err = s.deleteLocked(id, tableID)
	s.Locks.Release(tableID)
	if err != nil {
		return err
	}

	utils.InfoLogger.Printf("Reservation %d deleted", id)
	kds.BroadcastReservationDelete(id)

	s.Reconciler.ReconcileAfterMutation(tableID)
	return nil
}

func (s *ReservationService) deleteLocked(id, tableID uint) error {
	res, err := s.Get(id)
	if err != nil {
		return err
	}
	if res.TableID != tableID {
		return apperr.Conflict("reservation %d changed tables, please retry", id)
	}
	return s.DB.Delete(&models.Reservation{}, id).Error
}

// Get loads one reservation with its table.
func (s *ReservationService) Get(id uint) (*models.Reservation, error) {
	var res models.Reservation
	if err := s.DB.Preload("Table").First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("reservation %d not found", id)
		}
		return nil, err
	}
	return &res, nil
}

// List returns reservations ordered by date and time, optionally filtered
// to a single date.
func (s *ReservationService) List(date string) ([]models.Reservation, error) {
	query := s.DB.Preload("Table").Order("date").Order("time")
	if date != "" {
		query = query.Where("date = ?", date)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListByCustomer returns a customer's reservations, newest first.
func (s *ReservationService) ListByCustomer(customerEmail string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	if err := s.DB.Preload("Table").
		Where("customer_email = ?", customerEmail).
		Order("date desc").Order("time desc").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
