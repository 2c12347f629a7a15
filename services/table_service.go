package services

import (
	"errors"
	"time"

	"github.com/tableflow/reservation-app/apperr"
	"github.com/tableflow/reservation-app/kds"
	"github.com/tableflow/reservation-app/models"
	"github.com/tableflow/reservation-app/utils"
	"gorm.io/gorm"
)

// TableService owns table records and staff-driven status changes. The
// reconciler remains the only automatic mutator; everything here is an
// explicit staff action.
type TableService struct {
	DB         *gorm.DB
	Clock      Clock
	Reconciler *Reconciler
	Locks      *TableLocks
	LockWait   time.Duration
}

func NewTableService(db *gorm.DB, clock Clock, rec *Reconciler) *TableService {
	return &TableService{
		DB:         db,
		Clock:      clock,
		Reconciler: rec,
		Locks:      rec.Locks,
		LockWait:   rec.LockWait,
	}
}

type TableInput struct {
	Number   int    `json:"number" binding:"required"`
	Capacity int    `json:"capacity" binding:"required"`
	Location string `json:"location" binding:"required"`
}

func validateTableInput(in TableInput) error {
	if in.Number < 1 {
		return apperr.Validation("table number must be a positive integer")
	}
	if in.Capacity < 1 || in.Capacity > MaxGuests {
		return apperr.Validation("capacity must be between 1 and %d", MaxGuests)
	}
	if in.Location == "" || len(in.Location) > 50 {
		return apperr.Validation("location is required (max 50 characters)")
	}
	return nil
}

// Create adds a new table; table numbers are unique.
func (s *TableService) Create(in TableInput) (*models.Table, error) {
	if err := validateTableInput(in); err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.Model(&models.Table{}).Where("number = ?", in.Number).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("table number %d already exists", in.Number)
	}

	table := &models.Table{
		Number:   in.Number,
		Capacity: in.Capacity,
		Location: in.Location,
		Status:   models.TableAvailable,
	}
	if err := s.DB.Create(table).Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("New table created: %d (capacity=%d, location=%s)", table.Number, table.Capacity, table.Location)
	kds.BroadcastTableCreate(*table)
	return table, nil
}

// Update edits a table's number, capacity and location. Status changes go
// through UpdateStatus.
func (s *TableService) Update(id uint, in TableInput) (*models.Table, error) {
	if err := validateTableInput(in); err != nil {
		return nil, err
	}

	table, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.Model(&models.Table{}).
		Where("number = ? AND id <> ?", in.Number, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("table number %d already exists", in.Number)
	}

	table.Number = in.Number
	table.Capacity = in.Capacity
	table.Location = in.Location
	if err := s.DB.Save(table).Error; err != nil {
		return nil, err
	}

	kds.BroadcastTableUpdate(*table)
	return table, nil
}

// Delete removes a table. Deletion is blocked, not cascaded, while the
// table still has reservations in a non-terminal status.
func (s *TableService) Delete(id uint) error {
	table, err := s.Get(id)
	if err != nil {
		return err
	}

	var active int64
	if err := s.DB.Model(&models.Reservation{}).
		Where("table_id = ? AND status IN ?", id, models.ActiveReservationStatuses).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return apperr.Conflict("cannot delete table %d with active reservations", table.Number)
	}

	if err := s.DB.Delete(&models.Table{}, id).Error; err != nil {
		return err
	}

	utils.InfoLogger.Printf("Table %d deleted", table.Number)
	kds.BroadcastTableDelete(id)
	return nil
}

// UpdateStatus applies a manual, staff-driven status change under the
// table lock. Only this path may take a table out of maintenance. Setting
// a table to occupied without going through reserved requires an active
// reservation for today.
func (s *TableService) UpdateStatus(id uint, newStatus models.TableStatus) (*models.Table, error) {
	if !newStatus.Valid() {
		return nil, apperr.Validation("unknown table status %q", string(newStatus))
	}

	if err := s.Locks.Acquire(id, s.LockWait); err != nil {
		return nil, err
	}
	defer s.Locks.Release(id)

	table, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if table.Status == newStatus {
		return table, nil
	}
	if !table.Status.CanTransitionTo(newStatus) {
		return nil, apperr.InvalidTransition(string(table.Status), string(newStatus))
	}

	if newStatus == models.TableOccupied && table.Status != models.TableReserved {
		today := s.Clock.Now().Format(models.DateLayout)
		var active int64
		if err := s.DB.Model(&models.Reservation{}).
			Where("table_id = ? AND date = ? AND status IN ?", id, today, models.ActiveReservationStatuses).
			Count(&active).Error; err != nil {
			return nil, err
		}
		if active == 0 {
			return nil, apperr.Conflict("cannot set table %d to occupied without an active reservation", table.Number)
		}
	}

	oldStatus := table.Status
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Table{}).Where("id = ?", id).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		return tx.Create(&models.TableStatusLog{
			TableID:   id,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    models.StatusReasonManual,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	table.Status = newStatus
	utils.InfoLogger.Printf("Table %d status changed from %s to %s", table.Number, oldStatus, newStatus)
	kds.BroadcastTableUpdate(*table)
	return table, nil
}

type BulkStatusResult struct {
	UpdatedCount   int      `json:"updated_count"`
	TotalRequested int      `json:"total_requested"`
	Errors         []string `json:"errors"`
}

// BulkUpdateStatus applies the same manual status change to many tables,
// collecting per-table failures instead of aborting the batch.
func (s *TableService) BulkUpdateStatus(tableIDs []uint, status models.TableStatus) BulkStatusResult {
	result := BulkStatusResult{TotalRequested: len(tableIDs), Errors: []string{}}
	for _, id := range tableIDs {
		if _, err := s.UpdateStatus(id, status); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.UpdatedCount++
	}
	return result
}

// Get loads one table.
func (s *TableService) Get(id uint) (*models.Table, error) {
	var table models.Table
	if err := s.DB.First(&table, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("table %d not found", id)
		}
		return nil, err
	}
	return &table, nil
}

// List returns all tables ordered by number.
func (s *TableService) List() ([]models.Table, error) {
	var tables []models.Table
	if err := s.DB.Order("number").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

type AvailabilityQuery struct {
	Date     string
	Time     string
	Duration int
	Guests   int
}

// CheckAvailability lists tables that can seat the party and have no
// active reservation overlapping the requested window. Maintenance tables
// are never offered.
func (s *TableService) CheckAvailability(q AvailabilityQuery) ([]models.Table, error) {
	if _, err := time.ParseInLocation(models.DateLayout, q.Date, time.Local); err != nil {
		return nil, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if _, err := time.Parse(models.TimeLayout, q.Time); err != nil {
		return nil, apperr.Validation("time must be in HH:MM format")
	}
	if q.Duration < MinDurationMinutes || q.Duration > MaxDurationMinutes {
		return nil, apperr.Validation("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
	}
	if q.Guests < 1 || q.Guests > MaxGuests {
		return nil, apperr.Validation("guests must be between 1 and %d", MaxGuests)
	}

	var candidates []models.Table
	if err := s.DB.
		Where("status <> ? AND capacity >= ?", models.TableMaintenance, q.Guests).
		Order("capacity").Order("number").
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	probe := models.Reservation{Date: q.Date, Time: q.Time, Duration: q.Duration}
	start := probe.StartDateTime()
	duration := time.Duration(q.Duration) * time.Minute

	available := make([]models.Table, 0, len(candidates))
	for _, table := range candidates {
		var existing []models.Reservation
		if err := s.DB.
			Where("table_id = ? AND date = ? AND status IN ?", table.ID, q.Date, models.ActiveReservationStatuses).
			Find(&existing).Error; err != nil {
			return nil, err
		}
		if FindConflict(start, duration, existing, 0) == nil {
			available = append(available, table)
		}
	}
	return available, nil
}

// StatusSummary counts tables per status for the dashboard.
func (s *TableService) StatusSummary() (map[models.TableStatus]int64, int64, error) {
	summary := make(map[models.TableStatus]int64)
	rows := []struct {
		Status models.TableStatus
		Count  int64
	}{}
	if err := s.DB.Model(&models.Table{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	var total int64
	for _, row := range rows {
		summary[row.Status] = row.Count
		total += row.Count
	}
	return summary, total, nil
}
