// Package artwork creates NFT artworks in a persona's style and collects
// critiques from the other personas.
package artwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/persona"
	"github.com/teleagent/teleagent/internal/text"
)

// Creation is a freshly minted artwork with the critiques it received.
type Creation struct {
	NFT        *database.NFT
	Attributes []Attribute
	Critiques  []*database.ArtworkCritique
	// Announcement is the group message presenting the artwork.
	Announcement string
}

// Attribute is one NFT trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type concept struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ArtStyle    string      `json:"art_style"`
	ImagePrompt string      `json:"image_prompt"`
	Poem        string      `json:"poem"`
	Attributes  []Attribute `json:"attributes"`
}

var conceptSchema = llm.Object(
	llm.Field("name", llm.String("Title of the artwork")),
	llm.Field("description", llm.String("Visual description, main character facing right")),
	llm.Field("art_style", llm.String("Artistic style")),
	llm.Field("image_prompt", llm.String("Prompt for the image generator")),
	llm.Field("poem", llm.String("Short accompanying poem")),
	llm.Field("attributes", llm.Array("NFT traits", llm.Object(
		llm.Field("trait_type", llm.String("Trait name")),
		llm.Field("value", llm.String("Trait value")),
	))),
)

// Creator turns a persona and recent chat into a minted NFT.
type Creator struct {
	llm    llm.Client
	images llm.ImageGenerator
	store  database.Store
	dir    string
	log    *slog.Logger
}

// NewCreator creates a Creator saving images under cfg.ImageDir.
func NewCreator(client llm.Client, images llm.ImageGenerator, store database.Store, cfg config.ArtworkConfig, log *slog.Logger) *Creator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Creator{
		llm:    client,
		images: images,
		store:  store,
		dir:    cfg.ImageDir,
		log:    log.With("component", "artwork_creator"),
	}
}

// Create designs an artwork for p, renders it and mints it as an NFT owned
// by p. recent is the conversation used as inspiration, oldest first.
func (c *Creator) Create(ctx context.Context, p *persona.Persona, recent []*database.Dialog) (*Creation, error) {
	log := c.log.With("agent_id", p.ID)

	var cc concept
	req := llm.UserPrompt(fmt.Sprintf(ConceptInstruction, p.ProfileMessage()), conversation(recent))
	if err := c.llm.CompleteJSON(ctx, req, conceptSchema, &cc); err != nil {
		return nil, fmt.Errorf("failed to design artwork: %w", err)
	}
	cc.Name = strings.TrimSpace(cc.Name)
	if cc.Name == "" || strings.TrimSpace(cc.Description) == "" {
		return nil, errors.New("artwork concept has no name or description")
	}
	if strings.TrimSpace(cc.ImagePrompt) == "" {
		cc.ImagePrompt = cc.Description
	}

	prompt := c.refinePrompt(ctx, log, p, &cc)

	img, err := c.images.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to render artwork %q: %w", cc.Name, err)
	}

	tokenID := uuid.NewString()
	path, err := c.saveImage(tokenID, img)
	if err != nil {
		return nil, err
	}

	attrs, err := json.Marshal(cc.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artwork attributes: %w", err)
	}
	nft := &database.NFT{
		TokenID:     tokenID,
		Name:        cc.Name,
		Description: cc.Description,
		ArtStyle:    cc.ArtStyle,
		ImagePath:   path,
		ImagePrompt: prompt,
		Poem:        cc.Poem,
		Attributes:  string(attrs),
		CreatorID:   p.ID,
		OwnerID:     p.ID,
		Status:      database.NFTStatusMinted,
	}
	if err := c.store.CreateNFT(ctx, nft); err != nil {
		return nil, fmt.Errorf("failed to store artwork %q: %w", cc.Name, err)
	}

	log.InfoContext(ctx, "Artwork minted", "token_id", tokenID, "name", nft.Name, "image", path)
	return &Creation{NFT: nft, Attributes: cc.Attributes}, nil
}

// refinePrompt runs the prompt critic once. The concept's own prompt is kept
// when the critic fails.
func (c *Creator) refinePrompt(ctx context.Context, log *slog.Logger, p *persona.Persona, cc *concept) string {
	instruction := fmt.Sprintf(PromptCriticInstruction, p.PaintingStyle, cc.Description, cc.ImagePrompt)
	improved, err := c.llm.Complete(ctx, llm.UserPrompt(instruction, "Improve the prompt."))
	if err != nil {
		log.WarnContext(ctx, "Prompt critic failed, using original prompt", "error", err)
		return cc.ImagePrompt
	}
	if improved = strings.TrimSpace(improved); improved == "" {
		return cc.ImagePrompt
	}
	return improved
}

func (c *Creator) saveImage(tokenID string, img []byte) (string, error) {
	if len(img) == 0 {
		return "", errors.New("image generator returned no data")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("artwork_%s.png", tokenID))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("failed to save artwork image: %w", err)
	}
	return path, nil
}

func conversation(recent []*database.Dialog) string {
	if len(recent) == 0 {
		return "The group has been quiet lately. Create something that reflects your own mood."
	}
	var b strings.Builder
	b.WriteString("Recent group conversation:\n")
	for _, d := range recent {
		name := d.SpeakerName
		if name == "" {
			name = d.Role
		}
		fmt.Fprintf(&b, "%s: %s\n", name, text.Truncate(text.NormalizeSpace(d.Content), 300))
	}
	return strings.TrimRight(b.String(), "\n")
}
