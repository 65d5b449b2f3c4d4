package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const artworkCreationTimeout = 15 * time.Minute

// newArtworkCreationTask lets the bot's agent create an artwork, collect
// critiques and announce it to the group.
func newArtworkCreationTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "artwork_creation")

	return func(ctx context.Context) error {
		if deps.Artwork == nil {
			return errors.New("artwork service not configured")
		}
		ctx, cancel := context.WithTimeout(ctx, artworkCreationTimeout)
		defer cancel()

		agentID := deps.Config.Telegram.AgentID
		c, err := deps.Artwork.CreateAndCritique(ctx, agentID)
		if err != nil {
			log.ErrorContext(ctx, "Scheduled artwork creation failed", "agent_id", agentID, "error", err)
			return fmt.Errorf("artwork creation for %s failed: %w", agentID, err)
		}

		log.InfoContext(ctx, "Scheduled artwork created", "agent_id", agentID, "token_id", c.NFT.TokenID, "critiques", len(c.Critiques))
		return nil
	}
}
