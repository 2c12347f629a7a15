package models

import "time"

type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableOccupied    TableStatus = "occupied"
	TableReserved    TableStatus = "reserved"
	TableMaintenance TableStatus = "maintenance"
)

// tableTransitions lists the manual status changes staff may request.
// Automatic (reconciler-driven) changes do not go through this table.
var tableTransitions = map[TableStatus][]TableStatus{
	TableAvailable:   {TableReserved, TableOccupied, TableMaintenance},
	TableReserved:    {TableOccupied, TableAvailable, TableMaintenance},
	TableOccupied:    {TableAvailable, TableMaintenance},
	TableMaintenance: {TableAvailable},
}

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableMaintenance:
		return true
	}
	return false
}

// CanTransitionTo reports whether staff may move a table from s to target.
// A same-status update is always allowed (treated as a no-op by callers).
func (s TableStatus) CanTransitionTo(target TableStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range tableTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Table struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Number    int         `gorm:"uniqueIndex;not null" json:"number"`
	Capacity  int         `gorm:"not null" json:"capacity"`
	Location  string      `gorm:"type:varchar(50);not null" json:"location"`
	Status    TableStatus `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time   `gorm:"not null" json:"updated_at"`
}

func (t *Table) UnderMaintenance() bool {
	return t.Status == TableMaintenance
}
