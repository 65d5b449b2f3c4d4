package artwork

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/persona"
	"github.com/teleagent/teleagent/internal/queue"
)

// ServiceOptions holds the collaborators of a Service. Queue is optional;
// without it or without a group chat nothing is announced.
type ServiceOptions struct {
	Creator      *Creator
	Critic       *Critic
	Store        database.Store
	Personas     *persona.Registry
	Queue        queue.Queue
	GroupChatID  int64
	HistoryLimit int
	// CritiqueWorkers bounds the critiques requested in parallel.
	CritiqueWorkers int
	Logger          *slog.Logger
}

// Service runs the full artwork cycle: creation, critiques, announcement.
type Service struct {
	creator      *Creator
	critic       *Critic
	store        database.Store
	personas     *persona.Registry
	queue        queue.Queue
	groupChatID  int64
	historyLimit int
	workers      int
	log          *slog.Logger
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := opts.CritiqueWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		creator:      opts.Creator,
		critic:       opts.Critic,
		store:        opts.Store,
		personas:     opts.Personas,
		queue:        opts.Queue,
		groupChatID:  opts.GroupChatID,
		historyLimit: opts.HistoryLimit,
		workers:      workers,
		log:          log.With("component", "artwork_service"),
	}
}

// CreateAndCritique lets creatorID create an artwork inspired by the group
// chat, has every persona critique it and announces it to the group.
// Failed critiques are logged and skipped.
func (s *Service) CreateAndCritique(ctx context.Context, creatorID string) (*Creation, error) {
	creator, err := s.personas.Get(creatorID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("agent_id", creatorID)

	var recent []*database.Dialog
	if s.groupChatID != 0 && s.historyLimit > 0 {
		recent, err = s.store.GetDialogHistory(ctx, creatorID, s.groupChatID, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load group history: %w", err)
		}
	}

	c, err := s.creator.Create(ctx, creator, recent)
	if err != nil {
		return nil, err
	}

	critiques, err := s.critiques(ctx, log, c.NFT)
	if err != nil {
		return nil, err
	}
	for _, crit := range critiques {
		if err := s.store.SaveCritique(ctx, crit); err != nil {
			log.ErrorContext(ctx, "Failed to store critique", "critic_id", crit.CriticID, "error", err)
			continue
		}
		c.Critiques = append(c.Critiques, crit)
	}

	c.Announcement = fmt.Sprintf(CreationTemplate, c.NFT.Name, c.NFT.Description)
	s.announce(ctx, log, creator, c)

	log.InfoContext(ctx, "Artwork cycle finished", "token_id", c.NFT.TokenID, "critiques", len(c.Critiques))
	return c, nil
}

// critiques asks every persona for a critique on a bounded worker pool and
// returns the successful ones in persona order.
func (s *Service) critiques(ctx context.Context, log *slog.Logger, nft *database.NFT) ([]*database.ArtworkCritique, error) {
	critics := s.personas.All()
	results := make([]*database.ArtworkCritique, len(critics))

	pool, err := ants.NewPool(s.workers, ants.WithPanicHandler(func(p any) {
		log.ErrorContext(ctx, "Critique worker panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create critique pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, critic := range critics {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			crit, err := s.critic.Critique(ctx, critic, nft)
			if err != nil {
				log.WarnContext(ctx, "Skipping failed critique", "critic_id", critic.ID, "error", err)
				return
			}
			results[i] = crit
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			log.WarnContext(ctx, "Failed to schedule critique", "critic_id", critic.ID, "error", err)
		}
	}
	wg.Wait()

	out := make([]*database.ArtworkCritique, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) announce(ctx context.Context, log *slog.Logger, creator *persona.Persona, c *Creation) {
	if s.groupChatID == 0 {
		return
	}
	if err := s.store.SaveDialog(ctx, &database.Dialog{
		AgentID:     creator.ID,
		ChatID:      s.groupChatID,
		Role:        database.RoleAssistant,
		SpeakerName: creator.Name,
		Platform:    database.PlatformTelegramGroup,
		Content:     c.Announcement,
	}); err != nil {
		log.ErrorContext(ctx, "Failed to store artwork announcement", "error", err)
	}
	if s.queue == nil {
		return
	}
	a := queue.Announcement{
		ChatID:    s.groupChatID,
		Text:      c.Announcement,
		ImagePath: c.NFT.ImagePath,
		Caption:   c.NFT.Name,
	}
	if err := s.queue.Publish(ctx, a); err != nil {
		log.ErrorContext(ctx, "Failed to publish artwork announcement", "error", err)
	}
}
