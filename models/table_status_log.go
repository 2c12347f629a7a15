package models

import "time"

// Reasons recorded on a TableStatusLog entry.
const (
	StatusReasonReconciliation = "reconciliation"
	StatusReasonManual         = "manual"
)

// TableStatusLog is the audit trail for table status changes. One row is
// appended for every persisted change, whether reconciler-driven or manual.
type TableStatusLog struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	TableID   uint        `gorm:"not null;index" json:"table_id"`
	OldStatus TableStatus `gorm:"type:varchar(20);not null" json:"old_status"`
	NewStatus TableStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	Reason    string      `gorm:"type:varchar(30);not null" json:"reason"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}
