package services

import (
	"time"

	"github.com/tableflow/reservation-app/models"
)

// Overlaps reports whether two half-open intervals [s1, s1+d1) and
// [s2, s2+d2) intersect. Touching intervals (one ends exactly when the
// other starts) do not overlap.
func Overlaps(s1 time.Time, d1 time.Duration, s2 time.Time, d2 time.Duration) bool {
	return s1.Before(s2.Add(d2)) && s2.Before(s1.Add(d1))
}

// FindConflict scans a table's reservations for one whose time window
// overlaps [start, start+duration). Only active reservations block a slot;
// completed, cancelled and no-show never do. excludeID skips the
// reservation being edited so it does not conflict with itself.
func FindConflict(start time.Time, duration time.Duration, existing []models.Reservation, excludeID uint) *models.Reservation {
	for i := range existing {
		r := &existing[i]
		if r.ID == excludeID || !r.Status.Active() {
			continue
		}
		if Overlaps(start, duration, r.StartDateTime(), time.Duration(r.Duration)*time.Minute) {
			return r
		}
	}
	return nil
}
