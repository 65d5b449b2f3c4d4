package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
)

func newDeps(t *testing.T, retention time.Duration) TaskDeps {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return TaskDeps{
		Logger: log,
		Store:  database.NewStore(db, log),
		Config: &config.Config{
			Telegram:  config.TelegramConfig{AgentID: "alice"},
			Scheduler: config.SchedulerConfig{DialogRetention: retention},
		},
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()
	tasks := RegisterAllTasks(newDeps(t, 0))
	assert.Len(t, tasks, 3)
	for _, name := range []string{"sql_maintenance", "artwork_creation", "dialog_cleanup"} {
		assert.Contains(t, tasks, name)
	}
}

func TestDialogCleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := newDeps(t, 24*time.Hour)

	for _, created := range []time.Time{time.Now().Add(-48 * time.Hour), time.Now()} {
		require.NoError(t, deps.Store.SaveDialog(ctx, &database.Dialog{
			AgentID: "alice", ChatID: 5, UserID: 5, Role: database.RoleUser, Content: "hi", CreatedAt: created,
		}))
	}

	require.NoError(t, newDialogCleanupTask(deps)(ctx))

	left, err := deps.Store.GetDialogHistory(ctx, "alice", 5, 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestDialogCleanupDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := newDeps(t, 0)
	require.NoError(t, deps.Store.SaveDialog(ctx, &database.Dialog{
		AgentID: "alice", ChatID: 5, Role: database.RoleUser, Content: "old", CreatedAt: time.Now().Add(-1000 * time.Hour),
	}))

	require.NoError(t, newDialogCleanupTask(deps)(ctx))

	left, err := deps.Store.GetDialogHistory(ctx, "alice", 5, 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestSQLMaintenance(t *testing.T) {
	t.Parallel()
	assert.NoError(t, newSQLMaintenanceTask(newDeps(t, 0))(context.Background()))
}

func TestArtworkCreationWithoutService(t *testing.T) {
	t.Parallel()
	assert.Error(t, newArtworkCreationTask(newDeps(t, 0))(context.Background()))
}
