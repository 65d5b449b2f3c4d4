package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const nftColumns = `id, token_id, name, description, art_style, image_path, image_prompt, poem, attributes, creator_id, owner_id, status, last_price, created_at, updated_at`

const critiqueColumns = `id, nft_id, critic_id, style_match, style_match_score, emotional_impact, emotional_impact_score, harmony, harmony_score, areas_for_improvement, overall_score, created_at`

// CreateNFT inserts a newly minted NFT.
func (s *sqlxStore) CreateNFT(ctx context.Context, nft *NFT) error {
	if nft == nil || nft.TokenID == "" || nft.Name == "" {
		return fmt.Errorf("nft must have a token id and a name")
	}
	if nft.OwnerID == "" {
		nft.OwnerID = nft.CreatorID
	}
	if nft.Status == "" {
		nft.Status = NFTStatusMinted
	}
	if nft.Attributes == "" {
		nft.Attributes = "{}"
	}
	now := time.Now().UTC()
	nft.CreatedAt = now
	nft.UpdatedAt = now

	query := `
        INSERT INTO nfts (token_id, name, description, art_style, image_path, image_prompt, poem, attributes, creator_id, owner_id, status, last_price, created_at, updated_at)
        VALUES (:token_id, :name, :description, :art_style, :image_path, :image_prompt, :poem, :attributes, :creator_id, :owner_id, :status, :last_price, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, nft)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating NFT", "token_id", nft.TokenID, "error", err)
		return fmt.Errorf("failed to create nft %s: %w", nft.TokenID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // ids are positive
		nft.ID = uint(id)
	}

	s.logger.InfoContext(ctx, "NFT created", "token_id", nft.TokenID, "name", nft.Name, "creator_id", nft.CreatorID)
	return nil
}

// GetNFTByTokenID returns one NFT.
func (s *sqlxStore) GetNFTByTokenID(ctx context.Context, tokenID string) (*NFT, error) {
	var nft NFT
	if err := s.db.GetContext(ctx, &nft, `SELECT `+nftColumns+` FROM nfts WHERE token_id = ?`, tokenID); err != nil {
		return nil, notFound(err, "nft "+tokenID)
	}
	return &nft, nil
}

// GetNFTsByName returns every NFT with exactly that name.
func (s *sqlxStore) GetNFTsByName(ctx context.Context, name string) ([]*NFT, error) {
	var nfts []*NFT
	if err := s.db.SelectContext(ctx, &nfts, `SELECT `+nftColumns+` FROM nfts WHERE name = ? ORDER BY id`, name); err != nil {
		return nil, fmt.Errorf("failed to get nfts named %q: %w", name, err)
	}
	return nfts, nil
}

// ListNFTsByOwner returns the NFTs held by an owner, newest first.
func (s *sqlxStore) ListNFTsByOwner(ctx context.Context, ownerID string) ([]*NFT, error) {
	var nfts []*NFT
	if err := s.db.SelectContext(ctx, &nfts, `SELECT `+nftColumns+` FROM nfts WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list nfts of %s: %w", ownerID, err)
	}
	return nfts, nil
}

// ListLatestNFTs returns the most recently minted NFTs.
func (s *sqlxStore) ListLatestNFTs(ctx context.Context, limit int) ([]*NFT, error) {
	if limit <= 0 {
		limit = 5
	}
	var nfts []*NFT
	if err := s.db.SelectContext(ctx, &nfts, `SELECT `+nftColumns+` FROM nfts ORDER BY created_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to list latest nfts: %w", err)
	}
	return nfts, nil
}

// UpdateNFTOwner changes the owner of an NFT.
func (s *sqlxStore) UpdateNFTOwner(ctx context.Context, tokenID, ownerID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE nfts SET owner_id = ?, updated_at = ? WHERE token_id = ?`,
		ownerID, time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to update owner of nft %s: %w", tokenID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("nft %s: %w", tokenID, ErrNotFound)
	}
	return nil
}

// TransferNFT moves an NFT from fromOwner to toOwner and records the sale.
func (s *sqlxStore) TransferNFT(ctx context.Context, tokenID, fromOwner, toOwner string, price float64) (*Transaction, error) {
	var record *Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, `SELECT owner_id FROM nfts WHERE token_id = ?`, tokenID); err != nil {
			return notFound(err, "nft "+tokenID)
		}
		if current != fromOwner {
			return fmt.Errorf("nft %s is owned by %s, not %s: %w", tokenID, current, fromOwner, ErrOwnerChanged)
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE nfts SET owner_id = ?, updated_at = ?, status = ?, last_price = ? WHERE token_id = ? AND owner_id = ?`,
			toOwner, time.Now().UTC(), NFTStatusSold, price, tokenID, fromOwner)
		if err != nil {
			return fmt.Errorf("failed to update owner of nft %s: %w", tokenID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("nft %s: %w", tokenID, ErrOwnerChanged)
		}
		record = &Transaction{NFTID: tokenID, FromOwner: fromOwner, ToOwner: toOwner, Price: price, Kind: TransactionSale}
		return insertTransaction(ctx, tx, record)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "NFT transfer failed", "token_id", tokenID, "from", fromOwner, "to", toOwner, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "NFT transferred", "token_id", tokenID, "from", fromOwner, "to", toOwner, "price", price)
	return record, nil
}

// SaveCritique stores a critique, replacing an earlier one by the same critic.
func (s *sqlxStore) SaveCritique(ctx context.Context, critique *ArtworkCritique) error {
	if critique == nil || critique.NFTID == "" || critique.CriticID == "" {
		return fmt.Errorf("critique must reference an nft and a critic")
	}
	critique.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO artwork_critiques (nft_id, critic_id, style_match, style_match_score, emotional_impact, emotional_impact_score, harmony, harmony_score, areas_for_improvement, overall_score, created_at)
        VALUES (:nft_id, :critic_id, :style_match, :style_match_score, :emotional_impact, :emotional_impact_score, :harmony, :harmony_score, :areas_for_improvement, :overall_score, :created_at)
        ON CONFLICT (nft_id, critic_id) DO UPDATE SET
            style_match = excluded.style_match,
            style_match_score = excluded.style_match_score,
            emotional_impact = excluded.emotional_impact,
            emotional_impact_score = excluded.emotional_impact_score,
            harmony = excluded.harmony,
            harmony_score = excluded.harmony_score,
            areas_for_improvement = excluded.areas_for_improvement,
            overall_score = excluded.overall_score,
            created_at = excluded.created_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, critique); err != nil {
		s.logger.ErrorContext(ctx, "Error saving critique", "nft_id", critique.NFTID, "critic_id", critique.CriticID, "error", err)
		return fmt.Errorf("failed to save critique of %s by %s: %w", critique.NFTID, critique.CriticID, err)
	}
	return nil
}

// GetCritique returns the critique one critic wrote for one NFT.
func (s *sqlxStore) GetCritique(ctx context.Context, criticID, nftID string) (*ArtworkCritique, error) {
	var c ArtworkCritique
	err := s.db.GetContext(ctx, &c, `SELECT `+critiqueColumns+` FROM artwork_critiques WHERE critic_id = ? AND nft_id = ?`, criticID, nftID)
	if err != nil {
		return nil, notFound(err, "critique of "+nftID+" by "+criticID)
	}
	return &c, nil
}

// ListCritiques returns every critique of an NFT.
func (s *sqlxStore) ListCritiques(ctx context.Context, nftID string) ([]*ArtworkCritique, error) {
	var critiques []*ArtworkCritique
	if err := s.db.SelectContext(ctx, &critiques, `SELECT `+critiqueColumns+` FROM artwork_critiques WHERE nft_id = ? ORDER BY critic_id`, nftID); err != nil {
		return nil, fmt.Errorf("failed to list critiques of %s: %w", nftID, err)
	}
	return critiques, nil
}

// RecordTransaction stores a transaction row.
func (s *sqlxStore) RecordTransaction(ctx context.Context, tx *Transaction) error {
	if err := insertTransaction(ctx, s.db, tx); err != nil {
		s.logger.ErrorContext(ctx, "Error recording transaction", "error", err)
		return err
	}
	return nil
}

func insertTransaction(ctx context.Context, db sqlx.ExtContext, t *Transaction) error {
	if t == nil || t.NFTID == "" {
		return fmt.Errorf("transaction must reference an nft")
	}
	if t.Kind == "" {
		t.Kind = TransactionSale
	}
	t.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO transactions (nft_id, from_owner, to_owner, price, kind, created_at)
        VALUES (:nft_id, :from_owner, :to_owner, :price, :kind, :created_at);
    `
	result, err := sqlx.NamedExecContext(ctx, db, query, t)
	if err != nil {
		return fmt.Errorf("failed to record transaction for %s: %w", t.NFTID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // ids are positive
		t.ID = uint(id)
	}
	return nil
}

// ListTransactions returns the transfer history of an NFT, oldest first.
func (s *sqlxStore) ListTransactions(ctx context.Context, nftID string) ([]*Transaction, error) {
	var txs []*Transaction
	query := `SELECT id, nft_id, from_owner, to_owner, price, kind, created_at FROM transactions WHERE nft_id = ? ORDER BY id`
	if err := s.db.SelectContext(ctx, &txs, query, nftID); err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s: %w", nftID, err)
	}
	return txs, nil
}
