package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOwnerChanged is returned when an NFT no longer belongs to the
	// owner a transfer was agreed with.
	ErrOwnerChanged = errors.New("nft owner changed")
)

// Store defines the data access operations used by teleagent.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// RunSQLMaintenance runs VACUUM and ANALYZE.
	RunSQLMaintenance(ctx context.Context) error

	UpsertAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListActiveAgents(ctx context.Context) ([]*Agent, error)

	// SaveDialog stores one message, truncating content to MaxDialogContent.
	SaveDialog(ctx context.Context, dialog *Dialog) error
	// GetDialogHistory returns the latest limit messages of a chat, oldest first.
	GetDialogHistory(ctx context.Context, agentID string, chatID int64, limit int) ([]*Dialog, error)
	DeleteDialogs(ctx context.Context, agentID string, chatID int64) (int64, error)
	DeleteDialogsBefore(ctx context.Context, before time.Time) (int64, error)

	CreateNFT(ctx context.Context, nft *NFT) error
	GetNFTByTokenID(ctx context.Context, tokenID string) (*NFT, error)
	GetNFTsByName(ctx context.Context, name string) ([]*NFT, error)
	ListNFTsByOwner(ctx context.Context, ownerID string) ([]*NFT, error)
	ListLatestNFTs(ctx context.Context, limit int) ([]*NFT, error)
	UpdateNFTOwner(ctx context.Context, tokenID, ownerID string) error
	// TransferNFT moves an NFT from fromOwner to toOwner and records the
	// sale atomically. It fails with ErrOwnerChanged when fromOwner no
	// longer owns the NFT.
	TransferNFT(ctx context.Context, tokenID, fromOwner, toOwner string, price float64) (*Transaction, error)

	// SaveCritique inserts or replaces the critique of one critic for one NFT.
	SaveCritique(ctx context.Context, critique *ArtworkCritique) error
	GetCritique(ctx context.Context, criticID, nftID string) (*ArtworkCritique, error)
	ListCritiques(ctx context.Context, nftID string) ([]*ArtworkCritique, error)

	RecordTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, nftID string) ([]*Transaction, error)

	GetSession(ctx context.Context, agentID string, userID int64) (*BargainSession, error)
	SaveSession(ctx context.Context, session *BargainSession) error
	DeleteSession(ctx context.Context, agentID string, userID int64) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes VACUUM and ANALYZE on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	for _, stmt := range []string{"VACUUM;", "ANALYZE;"} {
		_, err := s.db.ExecContext(ctx, stmt)
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "statement", stmt, "error", err)
			return fmt.Errorf("database maintenance (%s) timed out: %w", stmt, err)
		case err != nil:
			s.logger.ErrorContext(ctx, "Database maintenance failed", "statement", stmt, "error", err)
			return fmt.Errorf("failed to execute %s: %w", stmt, err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (s *sqlxStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
