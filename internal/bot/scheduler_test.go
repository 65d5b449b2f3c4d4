package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleagent/teleagent/internal/bot/tasks"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/queue"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSchedulerRunsEnabledTasks(t *testing.T) {
	t.Parallel()

	var ran, skipped atomic.Int32
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"tick":     {Enabled: true, Schedule: "* * * * * *"},
		"disabled": {Enabled: false, Schedule: "* * * * * *"},
		"broken":   {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"tick":     func(context.Context) error { ran.Add(1); return nil },
		"disabled": func(context.Context) error { skipped.Add(1); return nil },
		"broken":   func(context.Context) error { skipped.Add(1); return nil },
	}

	s, err := NewScheduler(discard(), cfg, taskMap)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	require.Eventually(t, func() bool { return ran.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Zero(t, skipped.Load())
}

func TestSchedulerWithoutTasks(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler(discard(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}

func TestDeliverWithoutTargetIsDropped(t *testing.T) {
	t.Parallel()
	b := NewBot(discard(), &config.Config{}, nil, nil, nil, nil)
	assert.NoError(t, b.deliver(context.Background(), queue.Announcement{Text: "hello"}))
}
