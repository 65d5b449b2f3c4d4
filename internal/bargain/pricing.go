package bargain

import (
	"context"
	"errors"
	"fmt"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/persona"
)

// Pricer computes bottom prices and moves the ask price between rounds.
type Pricer struct {
	cfg   config.PricingConfig
	store database.Store
}

// NewPricer creates a Pricer reading critiques from store.
func NewPricer(cfg config.PricingConfig, store database.Store) *Pricer {
	return &Pricer{cfg: cfg, store: store}
}

// Formula returns critique*critique factor plus the agent's strongest
// emotion weighted by the positive or negative factor, floored at the
// minimum price.
func (p *Pricer) Formula(critiqueScore float64, emotion persona.Emotion) float64 {
	name, value := emotion.Extreme()
	factor := p.cfg.NegativeFactor
	if persona.IsPositive(name) {
		factor = p.cfg.PositiveFactor
	}
	return max(critiqueScore*p.cfg.CritiqueFactor+value*factor, p.cfg.MinPrice)
}

// BottomPrice prices an NFT for the seller. It uses the seller's own
// critique, then the mean of every critique of the NFT, then the
// configured default.
func (p *Pricer) BottomPrice(ctx context.Context, seller *persona.Persona, nftID string) (float64, error) {
	c, err := p.store.GetCritique(ctx, seller.ID, nftID)
	switch {
	case err == nil:
		return p.Formula(c.OverallScore, seller.Emotion), nil
	case !errors.Is(err, database.ErrNotFound):
		return 0, fmt.Errorf("failed to load critique: %w", err)
	}

	all, err := p.store.ListCritiques(ctx, nftID)
	if err != nil {
		return 0, fmt.Errorf("failed to list critiques: %w", err)
	}
	if len(all) == 0 {
		return max(p.cfg.DefaultBottomPrice, p.cfg.MinPrice), nil
	}
	var sum float64
	for _, c := range all {
		sum += c.OverallScore
	}
	return p.Formula(sum/float64(len(all)), seller.Emotion), nil
}

// Open sets the bottom, ask and ceiling prices of a session bound to a new
// artwork.
func (p *Pricer) Open(s *Session, bottom float64) {
	s.BottomPrice = bottom
	s.AskPrice = max(round6(bottom*p.cfg.OpeningMarkup), bottom)
	s.CeilingPrice = s.AskPrice
}

// Concede moves the ask toward a confident bid that is below it. The ask
// never leaves [bottom, ceiling].
func (p *Pricer) Concede(s *Session, bid float64) {
	if bid <= 0 || bid >= s.AskPrice {
		return
	}
	target := max(bid, s.BottomPrice)
	ask := round6(s.AskPrice - (s.AskPrice-target)*p.cfg.ConcessionRate)
	s.AskPrice = min(max(ask, s.BottomPrice), s.CeilingPrice)
}
