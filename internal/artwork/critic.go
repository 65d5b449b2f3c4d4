package artwork

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/persona"
)

type critiqueReply struct {
	StyleMatch           string `json:"style_match"`
	StyleMatchScore      int    `json:"style_match_score"`
	EmotionalImpact      string `json:"emotional_impact"`
	EmotionalImpactScore int    `json:"emotional_impact_score"`
	Harmony              string `json:"harmony"`
	HarmonyScore         int    `json:"harmony_score"`
	AreasForImprovement  string `json:"areas_for_improvement"`
}

var critiqueSchema = llm.Object(
	llm.Field("style_match", llm.String("How the style aligns with your preferences")),
	llm.Field("style_match_score", llm.Integer("Style match score").Range(0, 10)),
	llm.Field("emotional_impact", llm.String("Emotional impact and technical execution")),
	llm.Field("emotional_impact_score", llm.Integer("Emotional impact score").Range(0, 10)),
	llm.Field("harmony", llm.String("Harmony between visuals and poem")),
	llm.Field("harmony_score", llm.Integer("Harmony score").Range(0, 10)),
	llm.Field("areas_for_improvement", llm.String("Areas for improvement")),
)

// Critic judges artworks from a persona's point of view.
type Critic struct {
	llm llm.Client
	log *slog.Logger
}

// NewCritic creates a Critic.
func NewCritic(client llm.Client, log *slog.Logger) *Critic {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Critic{llm: client, log: log.With("component", "artwork_critic")}
}

// Critique asks critic to score the artwork. The overall score is the mean
// of the three partial scores, each clamped to 0..10.
func (c *Critic) Critique(ctx context.Context, critic *persona.Persona, nft *database.NFT) (*database.ArtworkCritique, error) {
	system := fmt.Sprintf(CritiqueInstruction, critic.Personality, critic.ArtPreference)
	prompt := fmt.Sprintf(CritiquePrompt, nft.Name, nft.Description, nft.ArtStyle, nft.Poem)

	var r critiqueReply
	if err := c.llm.CompleteJSON(ctx, llm.UserPrompt(system, prompt), critiqueSchema, &r); err != nil {
		return nil, fmt.Errorf("critique of %s by %s failed: %w", nft.TokenID, critic.ID, err)
	}

	out := &database.ArtworkCritique{
		NFTID:                nft.TokenID,
		CriticID:             critic.ID,
		StyleMatch:           r.StyleMatch,
		StyleMatchScore:      clampScore(r.StyleMatchScore),
		EmotionalImpact:      r.EmotionalImpact,
		EmotionalImpactScore: clampScore(r.EmotionalImpactScore),
		Harmony:              r.Harmony,
		HarmonyScore:         clampScore(r.HarmonyScore),
		AreasForImprovement:  r.AreasForImprovement,
	}
	out.OverallScore = OverallScore(out)
	c.log.DebugContext(ctx, "Artwork critiqued", "nft_id", nft.TokenID, "critic_id", critic.ID, "score", out.OverallScore)
	return out, nil
}

// OverallScore is the mean of the three partial scores, rounded to two
// decimals.
func OverallScore(c *database.ArtworkCritique) float64 {
	mean := float64(c.StyleMatchScore+c.EmotionalImpactScore+c.HarmonyScore) / 3
	return math.Round(mean*100) / 100
}

func clampScore(v int) int {
	return min(max(v, 0), 10)
}
