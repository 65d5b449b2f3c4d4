package database

import (
	"context"
	"fmt"
	"time"
)

const sessionColumns = `agent_id, user_id, round, bottom_price, ask_price, ceiling_price, last_bid, bid_confidence, buyer_emotion, nft_id, artwork_name, artwork_metadata, status, deal_price, expected_balance, created_at, updated_at`

// GetSession returns the bargain session of a buyer with an agent.
func (s *sqlxStore) GetSession(ctx context.Context, agentID string, userID int64) (*BargainSession, error) {
	var session BargainSession
	err := s.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM bargain_sessions WHERE agent_id = ? AND user_id = ?`, agentID, userID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("bargain session %s/%d", agentID, userID))
	}
	return &session, nil
}

// SaveSession inserts or updates a bargain session.
func (s *sqlxStore) SaveSession(ctx context.Context, session *BargainSession) error {
	if session == nil || session.AgentID == "" || session.UserID == 0 {
		return fmt.Errorf("session must have an agent id and a user id")
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = SessionOpen
	}

	query := `
        INSERT INTO bargain_sessions (` + sessionColumns + `)
        VALUES (:agent_id, :user_id, :round, :bottom_price, :ask_price, :ceiling_price, :last_bid, :bid_confidence, :buyer_emotion, :nft_id, :artwork_name, :artwork_metadata, :status, :deal_price, :expected_balance, :created_at, :updated_at)
        ON CONFLICT (agent_id, user_id) DO UPDATE SET
            round = excluded.round,
            bottom_price = excluded.bottom_price,
            ask_price = excluded.ask_price,
            ceiling_price = excluded.ceiling_price,
            last_bid = excluded.last_bid,
            bid_confidence = excluded.bid_confidence,
            buyer_emotion = excluded.buyer_emotion,
            nft_id = excluded.nft_id,
            artwork_name = excluded.artwork_name,
            artwork_metadata = excluded.artwork_metadata,
            status = excluded.status,
            deal_price = excluded.deal_price,
            expected_balance = excluded.expected_balance,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		s.logger.ErrorContext(ctx, "Error saving bargain session", "agent_id", session.AgentID, "user_id", session.UserID, "error", err)
		return fmt.Errorf("failed to save bargain session %s/%d: %w", session.AgentID, session.UserID, err)
	}
	return nil
}

// DeleteSession removes a bargain session. Deleting a missing session is not an error.
func (s *sqlxStore) DeleteSession(ctx context.Context, agentID string, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bargain_sessions WHERE agent_id = ? AND user_id = ?`, agentID, userID); err != nil {
		return fmt.Errorf("failed to delete bargain session %s/%d: %w", agentID, userID, err)
	}
	s.logger.DebugContext(ctx, "Bargain session deleted", "agent_id", agentID, "user_id", userID)
	return nil
}
