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

type SyncSummary struct {
	SyncedCount int `json:"synced_count"`
	TotalTables int `json:"total_tables"`
}

// Reconciler is the single authority that mutates a table's persisted
// status. Every trigger (reservation write, manual sync, periodic sweep)
// funnels through ReconcileTable so the status is always derived from the
// same resolver under the same per-table lock.
type Reconciler struct {
	DB             *gorm.DB
	Clock          Clock
	Locks          *TableLocks
	ReservedWindow time.Duration
	LockWait       time.Duration
}

func NewReconciler(db *gorm.DB, clock Clock, locks *TableLocks, reservedWindow, lockWait time.Duration) *Reconciler {
	return &Reconciler{
		DB:             db,
		Clock:          clock,
		Locks:          locks,
		ReservedWindow: reservedWindow,
		LockWait:       lockWait,
	}
}

// ReconcileTable locks the table, recomputes its status from today's
// active reservations and persists it if changed. Returns true when a
// change was written. Tables under maintenance are skipped entirely.
func (r *Reconciler) ReconcileTable(tableID uint) (bool, error) {
	if err := r.Locks.Acquire(tableID, r.LockWait); err != nil {
		return false, err
	}
	defer r.Locks.Release(tableID)

	return r.reconcileLocked(tableID)
}

// reconcileLocked does the actual work. Callers must hold the table lock.
func (r *Reconciler) reconcileLocked(tableID uint) (bool, error) {
	var table models.Table
	if err := r.DB.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperr.NotFound("table %d not found", tableID)
		}
		return false, err
	}

	if table.UnderMaintenance() {
		return false, nil
	}

	now := r.Clock.Now()
	today := now.Format(models.DateLayout)

	var reservations []models.Reservation
	if err := r.DB.
		Where("table_id = ? AND date = ? AND status IN ?", tableID, today, models.ActiveReservationStatuses).
		Find(&reservations).Error; err != nil {
		return false, err
	}

	newStatus := ResolveTableStatus(reservations, now, r.ReservedWindow)
	if newStatus == table.Status {
		return false, nil
	}

	oldStatus := table.Status
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Table{}).Where("id = ?", table.ID).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		return tx.Create(&models.TableStatusLog{
			TableID:   table.ID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    models.StatusReasonReconciliation,
		}).Error
	})
	if err != nil {
		return false, err
	}

	table.Status = newStatus
	utils.InfoLogger.Printf("Table %d status reconciled from %s to %s", table.Number, oldStatus, newStatus)
	kds.BroadcastTableUpdate(table)
	return true, nil
}

// ReconcileAfterMutation recomputes a table's status after a reservation
// write. Reconciliation failure never propagates to the caller whose write
// triggered it: it is logged and repaired by the next periodic sweep.
func (r *Reconciler) ReconcileAfterMutation(tableID uint) {
	if _, err := r.ReconcileTable(tableID); err != nil {
		utils.ErrorLogger.Printf("Reconciliation for table %d failed, retrying on next sweep: %v", tableID, err)
	}
}

// SyncAllTables sweeps every table and reports how many statuses changed.
// With no intervening reservation writes a second run changes nothing.
func (r *Reconciler) SyncAllTables() (SyncSummary, error) {
	var tables []models.Table
	if err := r.DB.Order("number").Find(&tables).Error; err != nil {
		return SyncSummary{}, err
	}

	summary := SyncSummary{TotalTables: len(tables)}
	for _, table := range tables {
		changed, err := r.ReconcileTable(table.ID)
		if err != nil {
			utils.ErrorLogger.Printf("Sync skipped table %d: %v", table.Number, err)
			continue
		}
		if changed {
			summary.SyncedCount++
		}
	}

	kds.BroadcastSyncCompleted(summary)
	return summary, nil
}
