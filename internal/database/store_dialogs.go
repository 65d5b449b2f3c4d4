package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teleagent/teleagent/internal/text"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// SaveDialog inserts a dialog message. Content longer than MaxDialogContent
// characters is cut and ends with "...".
func (s *sqlxStore) SaveDialog(ctx context.Context, dialog *Dialog) error {
	if dialog == nil {
		return fmt.Errorf("cannot save nil dialog")
	}
	if dialog.AgentID == "" {
		return fmt.Errorf("dialog must have a non-empty agent_id")
	}
	if dialog.ChatID == 0 {
		return fmt.Errorf("dialog must have a non-zero chat_id")
	}
	if dialog.Content == "" {
		return fmt.Errorf("dialog must have non-empty content")
	}
	if dialog.Role != RoleUser && dialog.Role != RoleAssistant {
		return fmt.Errorf("invalid dialog role %q", dialog.Role)
	}

	dialog.Content = text.Truncate(dialog.Content, MaxDialogContent)
	if dialog.CreatedAt.IsZero() {
		dialog.CreatedAt = time.Now().UTC()
	} else {
		dialog.CreatedAt = dialog.CreatedAt.UTC()
	}

	query := `
        INSERT INTO dialogs (agent_id, chat_id, user_id, role, speaker_name, platform, content, created_at)
        VALUES (:agent_id, :chat_id, :user_id, :role, :speaker_name, :platform, :content, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, dialog)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving dialog", "agent_id", dialog.AgentID, "chat_id", dialog.ChatID, "error", err)
		return fmt.Errorf("failed to save dialog (agent %s, chat %d): %w", dialog.AgentID, dialog.ChatID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // ids are positive
		dialog.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving dialog", "error", err)
	}

	s.logger.DebugContext(ctx, "Dialog saved", "agent_id", dialog.AgentID, "chat_id", dialog.ChatID, "dialog_id", dialog.ID)
	return nil
}

// GetDialogHistory returns the most recent limit dialogs of a chat in
// chronological order.
func (s *sqlxStore) GetDialogHistory(ctx context.Context, agentID string, chatID int64, limit int) ([]*Dialog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var dialogs []*Dialog
	query := `
        SELECT id, agent_id, chat_id, user_id, role, speaker_name, platform, content, created_at
        FROM dialogs
        WHERE agent_id = ? AND chat_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?;
    `
	err := s.db.SelectContext(ctx, &dialogs, query, agentID, chatID, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching dialogs", "chat_id", chatID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting dialog history", "agent_id", agentID, "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get dialog history for chat %d: %w", chatID, err)
	}

	slices.Reverse(dialogs)
	return dialogs, nil
}

// DeleteDialogs removes the whole history of a chat with an agent.
func (s *sqlxStore) DeleteDialogs(ctx context.Context, agentID string, chatID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dialogs WHERE agent_id = ? AND chat_id = ?`, agentID, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting dialogs", "agent_id", agentID, "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to delete dialogs for chat %d: %w", chatID, err)
	}
	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted dialogs", "agent_id", agentID, "chat_id", chatID, "count", count)
	return count, nil
}

// DeleteDialogsBefore removes every dialog created before the given time.
func (s *sqlxStore) DeleteDialogsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dialogs WHERE created_at < ?`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old dialogs", "before", before, "error", err)
		return 0, fmt.Errorf("failed to delete dialogs before %s: %w", before.Format(time.RFC3339), err)
	}
	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted old dialogs", "before", before, "count", count)
	return count, nil
}
