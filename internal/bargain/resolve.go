package bargain

import (
	"context"
	"errors"
	"fmt"

	"github.com/teleagent/teleagent/internal/database"
)

// Artwork resolution failures. The error text is written for the buyer.
var (
	ErrArtworkNotFound  = errors.New("artwork not found")
	ErrAmbiguousArtwork = errors.New("ambiguous artwork name")
	ErrArtworkMismatch  = errors.New("artwork name and id mismatch")
	ErrNotForSale       = errors.New("artwork not for sale")
)

// ResolutionError carries a buyer-facing explanation for a failed lookup.
type ResolutionError struct {
	Kind    error
	Message string
}

func (e *ResolutionError) Error() string { return e.Message }
func (e *ResolutionError) Unwrap() error { return e.Kind }

func resolutionErr(kind error, format string, args ...any) error {
	return &ResolutionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ResolveArtwork finds the NFT a buyer refers to by id, name or both.
func ResolveArtwork(ctx context.Context, store database.Store, nftID, name string) (*database.NFT, error) {
	if nftID == "" && name == "" {
		return nil, errors.New("an artwork name or nft id is required")
	}

	if nftID != "" {
		nft, err := store.GetNFTByTokenID(ctx, nftID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, resolutionErr(ErrArtworkNotFound, msgIDNotFound, nftID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up nft %s: %w", nftID, err)
		}
		if name != "" && nft.Name != name {
			return nil, resolutionErr(ErrArtworkMismatch, msgNameMismatch, name, nftID, nft.Name)
		}
		return nft, nil
	}

	nfts, err := store.GetNFTsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nft named %q: %w", name, err)
	}
	switch len(nfts) {
	case 0:
		return nil, resolutionErr(ErrArtworkNotFound, msgNameNotFound, name)
	case 1:
		return nfts[0], nil
	default:
		return nil, resolutionErr(ErrAmbiguousArtwork, msgAmbiguousName)
	}
}
