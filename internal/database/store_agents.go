package database

import (
	"context"
	"fmt"
	"time"
)

const agentColumns = `id, name, personality, painting_style, wallet_address, telegram_username, profile, active, created_at, updated_at`

// UpsertAgent inserts an agent or refreshes an existing one, keeping its
// original creation time.
func (s *sqlxStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	if agent == nil || agent.ID == "" {
		return fmt.Errorf("agent must have a non-empty id")
	}

	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	query := `
        INSERT INTO agents (` + agentColumns + `)
        VALUES (:id, :name, :personality, :painting_style, :wallet_address, :telegram_username, :profile, :active, :created_at, :updated_at)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            personality = excluded.personality,
            painting_style = excluded.painting_style,
            wallet_address = excluded.wallet_address,
            telegram_username = excluded.telegram_username,
            profile = excluded.profile,
            active = excluded.active,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, agent); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting agent", "agent_id", agent.ID, "error", err)
		return fmt.Errorf("failed to upsert agent %s: %w", agent.ID, err)
	}

	s.logger.DebugContext(ctx, "Agent upserted", "agent_id", agent.ID)
	return nil
}

// GetAgent returns one agent by id.
func (s *sqlxStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	err := s.db.GetContext(ctx, &agent, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "agent "+id)
	}
	return &agent, nil
}

// ListActiveAgents returns every active agent ordered by id.
func (s *sqlxStore) ListActiveAgents(ctx context.Context) ([]*Agent, error) {
	var agents []*Agent
	err := s.db.SelectContext(ctx, &agents, `SELECT `+agentColumns+` FROM agents WHERE active = 1 ORDER BY id`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing active agents", "error", err)
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}
	return agents, nil
}
