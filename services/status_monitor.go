package services

import (
	"time"

	"github.com/tableflow/reservation-app/utils"
)

// StatusMonitor runs the full table sweep on a fixed interval so statuses
// that depend on the passage of time (a reservation entering its reserved
// window, a stale reserved flag after a cancellation) converge without any
// request traffic. Suppressing overlapping runs across multiple instances
// is the scheduler's job, not handled here.
type StatusMonitor struct {
	Reconciler *Reconciler
	Interval   time.Duration
	StopChan   chan struct{}
}

func NewStatusMonitor(rec *Reconciler, interval time.Duration) *StatusMonitor {
	return &StatusMonitor{
		Reconciler: rec,
		Interval:   interval,
		StopChan:   make(chan struct{}),
	}
}

func (m *StatusMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.StopChan:
				return
			}
		}
	}()
}

func (m *StatusMonitor) Stop() {
	close(m.StopChan)
}

func (m *StatusMonitor) sweep() {
	summary, err := m.Reconciler.SyncAllTables()
	if err != nil {
		utils.ErrorLogger.Printf("Scheduled table sync failed: %v", err)
		return
	}
	if summary.SyncedCount > 0 {
		utils.InfoLogger.Printf("Scheduled table sync completed: %d of %d tables updated", summary.SyncedCount, summary.TotalTables)
	}
}
