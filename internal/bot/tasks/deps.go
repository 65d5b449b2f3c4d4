// Package tasks implements the scheduled tasks of teleagent.
package tasks

import (
	"log/slog"

	"github.com/teleagent/teleagent/internal/artwork"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Artwork *artwork.Service
	Config  *config.Config
}
