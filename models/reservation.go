package models

import "time"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationSeated    ReservationStatus = "seated"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationNoShow    ReservationStatus = "no-show"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// reservationTransitions is the staff-driven lifecycle. Terminal statuses
// (completed, cancelled, no-show) have no outgoing edges.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationSeated, ReservationCancelled, ReservationNoShow},
	ReservationSeated:    {ReservationCompleted},
}

// ActiveReservationStatuses are the statuses that block a time slot and
// count toward table occupancy.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationSeated,
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationSeated,
		ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

func (s ReservationStatus) Active() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationSeated:
		return true
	}
	return false
}

// CanTransitionTo reports whether staff may move a reservation from s to
// target. A same-status update is always allowed (no-op).
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	CustomerName    string            `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerPhone   string            `gorm:"type:varchar(20);not null" json:"customer_phone"`
	CustomerEmail   string            `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	Date            string            `gorm:"type:varchar(10);not null;index:idx_table_date" json:"date"`
	Time            string            `gorm:"type:varchar(5);not null" json:"time"`
	Duration        int               `gorm:"not null" json:"duration"`
	Guests          int               `gorm:"not null" json:"guests"`
	TableID         uint              `gorm:"not null;index:idx_table_date" json:"table_id"`
	Table           Table             `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table"`
	Status          ReservationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SpecialRequests string            `gorm:"type:text" json:"special_requests"`
	Notes           string            `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

// StartDateTime combines Date and Time into a wall-clock instant.
// Both fields are validated on write, so a parse failure here means a
// corrupted row; the zero time is returned in that case.
func (r *Reservation) StartDateTime() time.Time {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *Reservation) EndDateTime() time.Time {
	return r.StartDateTime().Add(time.Duration(r.Duration) * time.Minute)
}
