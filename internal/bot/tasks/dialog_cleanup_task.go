package tasks

import (
	"context"
	"fmt"
	"time"
)

// newDialogCleanupTask deletes dialogs older than the configured retention.
// A zero retention keeps everything.
func newDialogCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "dialog_cleanup")

	return func(ctx context.Context) error {
		retention := deps.Config.Scheduler.DialogRetention
		if retention <= 0 {
			log.DebugContext(ctx, "Dialog retention disabled, nothing to clean")
			return nil
		}

		cutoff := time.Now().UTC().Add(-retention)
		deleted, err := deps.Store.DeleteDialogsBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Dialog cleanup failed", "error", err)
			return fmt.Errorf("dialog cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Old dialogs deleted", "count", deleted, "before", cutoff)
		return nil
	}
}
