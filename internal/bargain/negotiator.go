// Package bargain negotiates NFT sales between a seller persona and a human
// buyer. Every buyer message runs through a fixed sequence of LLM stages
// around a small persisted state tracker.
package bargain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/persona"
	"github.com/teleagent/teleagent/internal/queue"
	"github.com/teleagent/teleagent/internal/wallet"
)

// Session is the negotiation state between one seller and one buyer.
type Session = database.BargainSession

// Stage names the pipeline step that produced a reply.
type Stage string

// Pipeline stages.
const (
	StageHacking Stage = "hacking_checker"
	StageConfirm Stage = "deal_confirm"
	StageDeal    Stage = "deal_maker"
	StageBargain Stage = "bargainer"
	StageExpired Stage = "expired"
)

// Turn is one buyer message addressed to a seller agent.
type Turn struct {
	AgentID   string
	UserID    int64
	BuyerName string
	Text      string
	// Platform is stored on the dialog rows of the turn.
	Platform string
}

// Result is the outcome of one turn.
type Result struct {
	Reply string
	Stage Stage
	// Terminated is set when the turn ended before the bargainer stage.
	Terminated bool
	Session    *Session
}

// Transferer moves NFT ownership after a confirmed payment.
type Transferer interface {
	TransferNFT(ctx context.Context, nftID, fromOwner, toOwner string, price float64) (*database.Transaction, error)
}

// Options holds the collaborators of a Negotiator. Queue is optional.
type Options struct {
	Bargain     config.BargainConfig
	Pricing     config.PricingConfig
	LLM         llm.Client
	Store       database.Store
	Personas    *persona.Registry
	Wallet      wallet.BalanceReader
	Ledger      Transferer
	Queue       queue.Queue
	GroupChatID int64
	Logger      *slog.Logger
}

// Negotiator runs bargaining turns. It is safe for concurrent use; turns of
// the same buyer with the same agent are serialized.
type Negotiator struct {
	cfg         config.BargainConfig
	llm         llm.Client
	store       database.Store
	personas    *persona.Registry
	wallet      wallet.BalanceReader
	ledger      Transferer
	queue       queue.Queue
	groupChatID int64
	pricer      *Pricer
	log         *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock serializes the turns of one buyer with one agent. refs counts
// holders and waiters; the entry is dropped when it reaches zero.
type sessionLock struct {
	sync.Mutex
	refs int
}

// NewNegotiator creates a Negotiator.
func NewNegotiator(opts Options) *Negotiator {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Negotiator{
		cfg:         opts.Bargain,
		llm:         opts.LLM,
		store:       opts.Store,
		personas:    opts.Personas,
		wallet:      opts.Wallet,
		ledger:      opts.Ledger,
		queue:       opts.Queue,
		groupChatID: opts.GroupChatID,
		pricer:      NewPricer(opts.Pricing, opts.Store),
		log:         log.With("component", "negotiator"),
		locks:       make(map[string]*sessionLock),
	}
}

func (n *Negotiator) lock(agentID string, userID int64) func() {
	key := fmt.Sprintf("%s/%d", agentID, userID)
	n.locksMu.Lock()
	l, ok := n.locks[key]
	if !ok {
		l = &sessionLock{}
		n.locks[key] = l
	}
	l.refs++
	n.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		n.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(n.locks, key)
		}
		n.locksMu.Unlock()
	}
}

// Respond runs the pipeline for one buyer message and returns at most one
// reply. The buyer message and the reply are stored as dialogs.
func (n *Negotiator) Respond(ctx context.Context, turn Turn) (*Result, error) {
	turn.Text = strings.TrimSpace(turn.Text)
	if turn.Text == "" {
		return nil, errors.New("empty buyer message")
	}
	if turn.UserID == 0 {
		return nil, errors.New("buyer user id is required")
	}
	if turn.Platform == "" {
		turn.Platform = database.PlatformAPI
	}
	seller, err := n.personas.Get(turn.AgentID)
	if err != nil {
		return nil, err
	}

	defer n.lock(turn.AgentID, turn.UserID)()
	if n.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.TurnTimeout)
		defer cancel()
	}

	log := n.log.With("agent_id", turn.AgentID, "user_id", turn.UserID)

	history, err := n.history(ctx, turn)
	if err != nil {
		return nil, err
	}
	session, err := n.loadSession(ctx, turn)
	if err != nil {
		return nil, err
	}

	t := &turnState{
		Negotiator: n,
		log:        log,
		seller:     seller,
		session:    session,
		turn:       turn,
		messages:   append(history, llm.Message{Role: llm.RoleUser, Name: turn.BuyerName, Content: turn.Text}),
	}
	res, err := t.run(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Bargaining turn failed", "error", err)
		return nil, err
	}

	n.saveDialogs(ctx, log, seller, turn, res.Reply)
	log.InfoContext(ctx, "Bargaining turn finished", "stage", res.Stage, "status", session.Status, "round", session.Round)
	return res, nil
}

// Session returns the current session of a buyer with an agent.
func (n *Negotiator) Session(ctx context.Context, agentID string, userID int64) (*Session, error) {
	return n.store.GetSession(ctx, agentID, userID)
}

// Reset forgets the negotiation of a buyer with an agent.
func (n *Negotiator) Reset(ctx context.Context, agentID string, userID int64) error {
	defer n.lock(agentID, userID)()
	if err := n.store.DeleteSession(ctx, agentID, userID); err != nil {
		return fmt.Errorf("failed to reset bargain session: %w", err)
	}
	n.log.InfoContext(ctx, "Bargain session reset", "agent_id", agentID, "user_id", userID)
	return nil
}

func (n *Negotiator) history(ctx context.Context, turn Turn) ([]llm.Message, error) {
	dialogs, err := n.store.GetDialogHistory(ctx, turn.AgentID, turn.UserID, n.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load dialog history: %w", err)
	}
	msgs := make([]llm.Message, 0, len(dialogs)+1)
	for _, d := range dialogs {
		role := llm.RoleUser
		if d.Role == database.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Name: d.SpeakerName, Content: d.Content})
	}
	return msgs, nil
}

// loadSession returns the stored session, or a fresh one when none exists
// or the previous deal was completed.
func (n *Negotiator) loadSession(ctx context.Context, turn Turn) (*Session, error) {
	s, err := n.store.GetSession(ctx, turn.AgentID, turn.UserID)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load bargain session: %w", err)
	case s.Status != database.SessionClosed:
		return s, nil
	}
	return &Session{AgentID: turn.AgentID, UserID: turn.UserID, Status: database.SessionOpen}, nil
}

func (n *Negotiator) saveDialogs(ctx context.Context, log *slog.Logger, seller *persona.Persona, turn Turn, reply string) {
	for _, d := range []*database.Dialog{
		{AgentID: turn.AgentID, ChatID: turn.UserID, UserID: turn.UserID, Role: database.RoleUser, SpeakerName: turn.BuyerName, Platform: turn.Platform, Content: turn.Text},
		{AgentID: turn.AgentID, ChatID: turn.UserID, UserID: turn.UserID, Role: database.RoleAssistant, SpeakerName: seller.Name, Platform: turn.Platform, Content: reply},
	} {
		if err := n.store.SaveDialog(ctx, d); err != nil {
			log.ErrorContext(ctx, "Failed to save bargaining dialog", "role", d.Role, "error", err)
		}
	}
}

func (n *Negotiator) announceDeal(ctx context.Context, log *slog.Logger, buyer, seller string, price float64) {
	if n.queue == nil || n.groupChatID == 0 {
		return
	}
	if buyer == "" {
		buyer = "A collector"
	}
	a := queue.Announcement{ChatID: n.groupChatID, Text: fmt.Sprintf(DealMadeTemplate, buyer, seller, formatAmount(price))}
	if err := n.queue.Publish(ctx, a); err != nil {
		log.ErrorContext(ctx, "Failed to publish deal announcement", "error", err)
	}
}
