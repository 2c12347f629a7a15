package services

import (
	"time"

	"github.com/tableflow/reservation-app/models"
)

// ResolveTableStatus computes what a table's status should be from its
// reservations for the current day. Rules, first match wins:
//
//  1. any seated reservation -> occupied
//  2. earliest pending/confirmed reservation starting at or after now,
//     if it starts within reservedWindow -> reserved
//  3. otherwise -> available
//
// Callers must not invoke this for tables under maintenance: maintenance
// is a manual override the resolver never clears.
func ResolveTableStatus(reservations []models.Reservation, now time.Time, reservedWindow time.Duration) models.TableStatus {
	var nextStart time.Time

	for i := range reservations {
		r := &reservations[i]
		switch r.Status {
		case models.ReservationSeated:
			return models.TableOccupied
		case models.ReservationPending, models.ReservationConfirmed:
			start := r.StartDateTime()
			if start.Before(now) {
				continue
			}
			if nextStart.IsZero() || start.Before(nextStart) {
				nextStart = start
			}
		}
	}

	if !nextStart.IsZero() && !nextStart.After(now.Add(reservedWindow)) {
		return models.TableReserved
	}
	return models.TableAvailable
}
