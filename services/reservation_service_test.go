package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableflow/reservation-app/apperr"
	"github.com/tableflow/reservation-app/models"
)

func TestCreateReservation(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	assert.Equal(t, models.ReservationPending, res.Status)
	assert.Equal(t, table.ID, res.TableID)
	assert.Equal(t, table.Number, res.Table.Number)

	// Booking starts within the reserved window, so the table flips
	// immediately rather than waiting for the next sweep.
	assert.Equal(t, models.TableReserved, env.tableStatus(t, table.ID))
}

func TestCreateReservationFarAheadLeavesTableAvailable(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	tomorrow := env.clock.Now().AddDate(0, 0, 1).Format(models.DateLayout)
	_, err := env.reservations.Create(env.bookingInput(table.ID, tomorrow, "19:00", 120))
	require.NoError(t, err)

	assert.Equal(t, models.TableAvailable, env.tableStatus(t, table.ID))
}

func TestCreateReservationValidation(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)
	base := env.bookingInput(table.ID, env.today(), "19:00", 120)

	cases := []struct {
		name   string
		mutate func(*ReservationInput)
	}{
		{"empty name", func(in *ReservationInput) { in.CustomerName = "" }},
		{"empty phone", func(in *ReservationInput) { in.CustomerPhone = "" }},
		{"bad email", func(in *ReservationInput) { in.CustomerEmail = "not-an-email" }},
		{"bad date format", func(in *ReservationInput) { in.Date = "14-03-2025" }},
		{"bad time format", func(in *ReservationInput) { in.Time = "7pm" }},
		{"past date", func(in *ReservationInput) { in.Date = "2025-03-13" }},
		{"duration too short", func(in *ReservationInput) { in.Duration = 15 }},
		{"duration too long", func(in *ReservationInput) { in.Duration = 600 }},
		{"zero guests", func(in *ReservationInput) { in.Guests = 0 }},
		{"too many guests", func(in *ReservationInput) { in.Guests = 21 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := base
			c.mutate(&in)
			_, err := env.reservations.Create(in)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "expected validation error, got %v", err)
		})
	}
}

func TestCreateReservationUnknownTable(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reservations.Create(env.bookingInput(42, env.today(), "19:00", 120))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateReservationMaintenanceTableRejected(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableMaintenance)

	_, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateReservationOverlapRejected(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	_, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	// 20:00 lands inside the 19:00-21:00 booking.
	_, err = env.reservations.Create(env.bookingInput(table.ID, env.today(), "20:00", 120))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// 21:00 starts exactly when the first ends: allowed.
	_, err = env.reservations.Create(env.bookingInput(table.ID, env.today(), "21:00", 60))
	assert.NoError(t, err)

	// A different table for the same slot is fine.
	other := env.seedTable(t, 2, models.TableAvailable)
	_, err = env.reservations.Create(env.bookingInput(other.ID, env.today(), "20:00", 120))
	assert.NoError(t, err)
}

func TestCreateReservationCancelledSlotIsFree(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)
	env.seedReservation(t, table.ID, "19:00", 120, models.ReservationCancelled)

	_, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	assert.NoError(t, err)
}

func TestConcurrentDoubleBookingOneWinner(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)
	in := env.bookingInput(table.ID, env.today(), "19:00", 120)

	const attempts = 8
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.reservations.Create(in)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking may win the slot")
	assert.Equal(t, attempts-1, conflicts)

	var count int64
	require.NoError(t, env.db.Model(&models.Reservation{}).Where("table_id = ?", table.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReservationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "18:00", 120))
	require.NoError(t, err)

	res, err = env.reservations.UpdateStatus(res.ID, models.ReservationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, res.Status)

	res, err = env.reservations.UpdateStatus(res.ID, models.ReservationSeated)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, env.tableStatus(t, table.ID))

	res, err = env.reservations.UpdateStatus(res.ID, models.ReservationCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, res.Status)
	assert.Equal(t, models.TableAvailable, env.tableStatus(t, table.ID))
}

func TestReservationStatusGuards(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	// pending cannot jump straight to seated.
	_, err = env.reservations.UpdateStatus(res.ID, models.ReservationSeated)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))

	// Same-status update is a silent no-op.
	same, err := env.reservations.UpdateStatus(res.ID, models.ReservationPending)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, same.Status)

	// Unknown status string.
	_, err = env.reservations.UpdateStatus(res.ID, models.ReservationStatus("archived"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// Terminal statuses reject every further change.
	_, err = env.reservations.UpdateStatus(res.ID, models.ReservationCancelled)
	require.NoError(t, err)
	_, err = env.reservations.UpdateStatus(res.ID, models.ReservationConfirmed)
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))
}

func TestCancelByCustomer(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, env.tableStatus(t, table.ID))

	_, err = env.reservations.CancelByCustomer(res.ID, "someone-else@example.com")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	cancelled, err := env.reservations.CancelByCustomer(res.ID, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, cancelled.Status)

	// Cancelling released the only booking, so the table frees up.
	assert.Equal(t, models.TableAvailable, env.tableStatus(t, table.ID))
}

func TestCancelByCustomerGuards(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	// A seated reservation cannot be cancelled by the customer.
	seated := env.seedReservation(t, table.ID, "17:00", 120, models.ReservationSeated)
	_, err := env.reservations.CancelByCustomer(seated.ID, "budi@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// Neither can one whose start time has already passed.
	past := env.seedReservation(t, table.ID, "16:00", 60, models.ReservationConfirmed)
	_, err = env.reservations.CancelByCustomer(past.ID, "budi@example.com")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestUpdateReservationMovesTable(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedTable(t, 1, models.TableAvailable)
	second := env.seedTable(t, 2, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(first.ID, env.today(), "19:00", 120))
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, env.tableStatus(t, first.ID))

	moved, err := env.reservations.Update(res.ID, env.bookingInput(second.ID, env.today(), "19:00", 120))
	require.NoError(t, err)
	assert.Equal(t, second.ID, moved.TableID)

	// Both tables were reconciled: the old one released, the new one held.
	assert.Equal(t, models.TableAvailable, env.tableStatus(t, first.ID))
	assert.Equal(t, models.TableReserved, env.tableStatus(t, second.ID))
}

func TestUpdateReservationConflictExcludesSelf(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	// Shifting its own window may overlap itself.
	_, err = env.reservations.Update(res.ID, env.bookingInput(table.ID, env.today(), "19:30", 120))
	assert.NoError(t, err)

	// But not another booking.
	_, err = env.reservations.Create(env.bookingInput(table.ID, env.today(), "22:00", 60))
	require.NoError(t, err)
	_, err = env.reservations.Update(res.ID, env.bookingInput(table.ID, env.today(), "21:45", 60))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestDeleteReservationReleasesTable(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, env.tableStatus(t, table.ID))

	require.NoError(t, env.reservations.Delete(res.ID))
	assert.Equal(t, models.TableAvailable, env.tableStatus(t, table.ID))

	_, err = env.reservations.Get(res.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListFiltersAndOrders(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	tomorrow := env.clock.Now().AddDate(0, 0, 1).Format(models.DateLayout)
	_, err := env.reservations.Create(env.bookingInput(table.ID, tomorrow, "18:00", 60))
	require.NoError(t, err)
	_, err = env.reservations.Create(env.bookingInput(table.ID, env.today(), "20:00", 60))
	require.NoError(t, err)
	_, err = env.reservations.Create(env.bookingInput(table.ID, env.today(), "18:00", 60))
	require.NoError(t, err)

	all, err := env.reservations.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "18:00", all[0].Time)
	assert.Equal(t, "20:00", all[1].Time)
	assert.Equal(t, tomorrow, all[2].Date)

	todayOnly, err := env.reservations.List(env.today())
	require.NoError(t, err)
	assert.Len(t, todayOnly, 2)
}

func TestListByCustomer(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	_, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "18:00", 60))
	require.NoError(t, err)

	other := env.bookingInput(table.ID, env.today(), "20:00", 60)
	other.CustomerEmail = "citra@example.com"
	_, err = env.reservations.Create(other)
	require.NoError(t, err)

	mine, err := env.reservations.ListByCustomer("ana@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ana@example.com", mine[0].CustomerEmail)
}

func TestUpdateStatusRevalidatesUnderLock(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	// Park a confirm attempt at the table lock after its first read of
	// the row.
	require.NoError(t, env.reconciler.Locks.Acquire(table.ID, time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := env.reservations.UpdateStatus(res.ID, models.ReservationConfirmed)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// Cancel while the confirm is waiting, then let it proceed.
	require.NoError(t, env.db.Model(&models.Reservation{}).
		Where("id = ?", res.ID).
		Update("status", models.ReservationCancelled).Error)
	env.reconciler.Locks.Release(table.ID)

	// The confirm must see the cancel and refuse; a terminal status is
	// never overwritten.
	err = <-done
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "got %v", err)

	final, err := env.reservations.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, final.Status)
}

func TestCancelByCustomerRevalidatesUnderLock(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	res, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	require.NoError(t, err)

	require.NoError(t, env.reconciler.Locks.Acquire(table.ID, time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := env.reservations.CancelByCustomer(res.ID, "ana@example.com")
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// Staff seats the party while the cancel is waiting on the lock.
	require.NoError(t, env.db.Model(&models.Reservation{}).
		Where("id = ?", res.ID).
		Update("status", models.ReservationSeated).Error)
	env.reconciler.Locks.Release(table.ID)

	err = <-done
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	final, err := env.reservations.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationSeated, final.Status)
}

func TestLockedTableRejectsBookingWithConflict(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, 1, models.TableAvailable)

	env.reservations.LockWait = 50 * time.Millisecond
	require.NoError(t, env.reconciler.Locks.Acquire(table.ID, time.Second))
	defer env.reconciler.Locks.Release(table.ID)

	_, err := env.reservations.Create(env.bookingInput(table.ID, env.today(), "19:00", 120))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
