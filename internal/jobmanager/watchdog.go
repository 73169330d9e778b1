package jobmanager

import (
	"context"
	"time"

	"github.com/allanyiin/slidemanager/internal/catalog"
	"github.com/allanyiin/slidemanager/internal/constants"
)

// watchdogLoop scans, at a fixed interval, every RUNNING task across every
// job (not scoped to one job) and fails any whose heartbeat has gone stale
// into ERROR/WATCHDOG_TIMEOUT, publishing a task_error event.
func (m *Manager) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(constants.WatchdogIntervalSec * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepStaleTasks(ctx)
		}
	}
}

func (m *Manager) sweepStaleTasks(ctx context.Context) {
	cutoff := time.Now().Unix() - constants.WatchdogStaleAfterSec
	stale, err := m.store.StaleRunningTasks(ctx, cutoff)
	if err != nil {
		m.log.Error("watchdog scan failed", "error", err)
		return
	}
	for _, t := range stale {
		if err := m.store.FinishTask(ctx, t.TaskID, catalog.TaskError, catalog.ErrWatchdogTimeout, "task heartbeat timeout"); err != nil {
			m.log.Error("watchdog finish task failed", "task_id", t.TaskID, "error", err)
			continue
		}
		m.bus.Publish(t.JobID, "task_error", map[string]any{
			"task_id": t.TaskID,
			"kind":    t.Kind,
			"code":    catalog.ErrWatchdogTimeout,
		})
	}
}
