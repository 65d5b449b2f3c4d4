package bargain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/persona"
)

// Buyer emotion labels.
const (
	EmotionPositive = "positive"
	EmotionNegative = "negative"
	EmotionNeutral  = "neutral"
)

var (
	hackingSchema = llm.Object(
		llm.Field("is_hacking", llm.Boolean("true when the message is a hacking attempt")),
		llm.Field("reply", llm.String("mocking reply, empty when not hacking")),
	)
	dealSchema = llm.Object(
		llm.Field("agreed", llm.Boolean("true when the buyer explicitly agrees to a price")),
		llm.Field("price", llm.Number("agreed price in sol, 0 when not agreed")),
	)
	emotionSchema = llm.Object(
		llm.Field("emotion", llm.Enum("buyer emotion", EmotionPositive, EmotionNegative, EmotionNeutral)),
	)
	bidSchema = llm.Object(
		llm.Field("bid", llm.Number("estimated bid in sol")),
		llm.Field("confidence", llm.Number("confidence of the estimation").Range(0, 1)),
	)
	artworkSchema = llm.Object(
		llm.Field("artwork_name", llm.String("artwork name, empty when not mentioned")),
		llm.Field("nft_id", llm.String("nft id, empty when not mentioned")),
	)
)

// turnState carries one turn through the pipeline.
type turnState struct {
	*Negotiator
	log      *slog.Logger
	seller   *persona.Persona
	session  *Session
	turn     Turn
	messages []llm.Message
}

func (t *turnState) result(reply string, stage Stage, terminated bool) *Result {
	return &Result{Reply: reply, Stage: stage, Terminated: terminated, Session: t.session}
}

func (t *turnState) saveSession(ctx context.Context) error {
	if err := t.store.SaveSession(ctx, t.session); err != nil {
		return fmt.Errorf("failed to save bargain session: %w", err)
	}
	return nil
}

func (t *turnState) run(ctx context.Context) (*Result, error) {
	if IsCommand(t.turn.Text) {
		return t.confirmDeal(ctx)
	}

	if reply, hacking := t.checkHacking(ctx); hacking {
		return t.result(reply, StageHacking, true), nil
	}

	s := t.session
	if s.Status == database.SessionExpired {
		return t.result(ExpiredReply, StageExpired, true), nil
	}
	if s.Status == database.SessionDealReached {
		return t.bargain(ctx, fmt.Sprintf(DealPendingNote, formatAmount(s.DealPrice)), "")
	}

	if s.HasArtwork() && s.AskPrice > 0 {
		if res, ok, err := t.makeDeal(ctx); err != nil || ok {
			return res, err
		}
		if s.Round >= t.cfg.MaxRounds {
			s.Status = database.SessionExpired
			if err := t.saveSession(ctx); err != nil {
				return nil, err
			}
			t.log.InfoContext(ctx, "Bargain session expired", "rounds", s.Round)
			return t.result(ExpiredReply, StageExpired, true), nil
		}
	}

	est, err := t.estimate(ctx)
	if err != nil {
		return nil, err
	}
	note, err := t.applyEstimates(ctx, est)
	if err != nil {
		return nil, err
	}

	var roundNote string
	if s.HasArtwork() {
		if s.Round+1 >= t.cfg.MaxRounds {
			roundNote = FinalRoundNote
		}
		s.Round++
	}
	res, err := t.bargain(ctx, roundNote, note)
	if err != nil {
		return nil, err
	}
	if err := t.saveSession(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// checkHacking returns a mocking reply when the message is an attack.
// A failing checker lets the message through.
func (t *turnState) checkHacking(ctx context.Context) (string, bool) {
	var verdict struct {
		IsHacking bool   `json:"is_hacking"`
		Reply     string `json:"reply"`
	}
	req := llm.Request{System: HackingCheckerInstruction, Messages: t.messages}
	if err := t.llm.CompleteJSON(ctx, req, hackingSchema, &verdict); err != nil {
		t.log.WarnContext(ctx, "Hacking checker failed, continuing", "stage", StageHacking, "error", err)
		return "", false
	}
	if !verdict.IsHacking {
		return "", false
	}
	t.log.WarnContext(ctx, "Hacking attempt detected", "stage", StageHacking)
	if strings.TrimSpace(verdict.Reply) == "" {
		return DefaultMockReply, true
	}
	return strings.TrimSpace(verdict.Reply), true
}

// confirmDeal verifies a #CONFIRM command against the seller wallet and
// transfers the NFT when the payment arrived.
func (t *turnState) confirmDeal(ctx context.Context) (*Result, error) {
	s := t.session
	cmd := ParseTransactionCommand(t.turn.Text)
	switch {
	case !cmd.Complete():
		return t.result(InvalidCommandReply, StageConfirm, true), nil
	case s.Status != database.SessionDealReached:
		return t.result(NoDealReply, StageConfirm, true), nil
	case cmd.NFTID != s.NFTID:
		return t.result(fmt.Sprintf(NFTMismatchReply, s.NFTID), StageConfirm, true), nil
	case math.Abs(*cmd.Balance-s.ExpectedBalance) > 1e-6:
		return t.result(BalanceMismatchReply, StageConfirm, true), nil
	}

	actual, err := t.wallet.Balance(ctx, t.seller.WalletAddress)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to read seller balance", "stage", StageConfirm, "error", err)
		return t.result(ServiceErrorReply, StageConfirm, true), nil
	}
	if !BalanceMatches(actual, *cmd.Balance, t.cfg.BalanceTolerance) {
		t.log.InfoContext(ctx, "Payment not found in seller wallet", "expected", *cmd.Balance, "actual", actual)
		return t.result(fmt.Sprintf(TransferFailedReply, formatAmount(actual)), StageConfirm, true), nil
	}

	_, err = t.ledger.TransferNFT(ctx, cmd.NFTID, t.seller.ID, cmd.Address, s.DealPrice)
	switch {
	case errors.Is(err, database.ErrOwnerChanged):
		t.log.InfoContext(ctx, "Artwork sold to another buyer", "stage", StageConfirm, "nft_id", cmd.NFTID)
		t.unbindArtwork()
		if err := t.saveSession(ctx); err != nil {
			return nil, err
		}
		return t.result(fmt.Sprintf(TransferFailedReply, formatAmount(actual)), StageConfirm, true), nil
	case err != nil:
		t.log.ErrorContext(ctx, "Failed to transfer NFT", "stage", StageConfirm, "nft_id", cmd.NFTID, "error", err)
		return t.result(ServiceErrorReply, StageConfirm, true), nil
	}

	s.Status = database.SessionClosed
	if err := t.saveSession(ctx); err != nil {
		return nil, err
	}
	t.announceDeal(ctx, t.log, t.turn.BuyerName, t.seller.Name, s.DealPrice)
	return t.result(TransferredReply, StageConfirm, true), nil
}

// makeDeal checks whether the buyer accepted a price. ok is false when
// negotiation should continue.
func (t *turnState) makeDeal(ctx context.Context) (res *Result, ok bool, err error) {
	s := t.session
	var verdict struct {
		Agreed bool    `json:"agreed"`
		Price  float64 `json:"price"`
	}
	req := llm.Request{System: fmt.Sprintf(DealMakerInstruction, formatAmount(s.AskPrice)), Messages: t.messages}
	if err := t.llm.CompleteJSON(ctx, req, dealSchema, &verdict); err != nil {
		t.log.WarnContext(ctx, "Deal maker failed, continuing", "stage", StageDeal, "error", err)
		return nil, false, nil
	}
	if !verdict.Agreed || verdict.Price <= 0 {
		return nil, false, nil
	}
	price := round6(verdict.Price)
	if price < s.BottomPrice {
		t.log.InfoContext(ctx, "Ignoring agreement below bottom price", "stage", StageDeal, "price", price)
		return nil, false, nil
	}

	nft, err := t.store.GetNFTByTokenID(ctx, s.NFTID)
	switch {
	case errors.Is(err, database.ErrNotFound) || (err == nil && nft.OwnerID != t.seller.ID):
		t.log.InfoContext(ctx, "Artwork no longer owned by seller", "stage", StageDeal, "nft_id", s.NFTID)
		reply := fmt.Sprintf(SoldOutReply, s.ArtworkName)
		t.unbindArtwork()
		if err := t.saveSession(ctx); err != nil {
			return nil, false, err
		}
		return t.result(reply, StageDeal, true), true, nil
	case err != nil:
		t.log.ErrorContext(ctx, "Failed to look up artwork", "stage", StageDeal, "error", err)
		return t.result(ServiceErrorReply, StageDeal, true), true, nil
	}

	balance, err := t.wallet.Balance(ctx, t.seller.WalletAddress)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to read seller balance", "stage", StageDeal, "error", err)
		return t.result(ServiceErrorReply, StageDeal, true), true, nil
	}

	s.Status = database.SessionDealReached
	s.DealPrice = price
	s.ExpectedBalance = ExpectedBalance(balance, price)
	if err := t.saveSession(ctx); err != nil {
		return nil, false, err
	}
	t.log.InfoContext(ctx, "Deal reached", "stage", StageDeal, "price", price, "nft_id", s.NFTID)

	confirm := ConfirmCommand(s.ExpectedBalance, s.NFTID)
	return t.result(PaymentInstructions(price, t.seller.WalletAddress, confirm), StageDeal, true), true, nil
}

type estimates struct {
	emotion     string
	bid         float64
	confidence  float64
	artworkName string
	nftID       string
}

// estimate runs the emotion, bid and artwork estimators concurrently. A
// failing estimator leaves its defaults in place.
func (t *turnState) estimate(ctx context.Context) (*estimates, error) {
	est := &estimates{emotion: EmotionNeutral}
	collection := t.collectionListing(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var out struct {
			Emotion string `json:"emotion"`
		}
		if err := t.llm.CompleteJSON(gctx, llm.Request{System: EmotionEstimatorInstruction, Messages: t.messages}, emotionSchema, &out); err != nil {
			t.log.WarnContext(gctx, "Emotion estimator failed", "error", err)
			return gctx.Err()
		}
		switch out.Emotion {
		case EmotionPositive, EmotionNegative, EmotionNeutral:
			est.emotion = out.Emotion
		}
		return nil
	})
	g.Go(func() error {
		var out struct {
			Bid        float64 `json:"bid"`
			Confidence float64 `json:"confidence"`
		}
		if err := t.llm.CompleteJSON(gctx, llm.Request{System: BidEstimatorInstruction, Messages: t.messages}, bidSchema, &out); err != nil {
			t.log.WarnContext(gctx, "Bid estimator failed", "error", err)
			return gctx.Err()
		}
		est.bid = max(out.Bid, 0)
		est.confidence = min(max(out.Confidence, 0), 1)
		return nil
	})
	g.Go(func() error {
		var out struct {
			ArtworkName string `json:"artwork_name"`
			NFTID       string `json:"nft_id"`
		}
		req := llm.Request{System: fmt.Sprintf(ArtworkExtractorInstruction, collection), Messages: t.messages}
		if err := t.llm.CompleteJSON(gctx, req, artworkSchema, &out); err != nil {
			t.log.WarnContext(gctx, "Artwork extractor failed", "error", err)
			return gctx.Err()
		}
		est.artworkName = strings.TrimSpace(out.ArtworkName)
		est.nftID = strings.TrimSpace(out.NFTID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("estimators cancelled: %w", err)
	}
	t.log.DebugContext(ctx, "Estimated buyer state", "emotion", est.emotion, "bid", est.bid, "confidence", est.confidence, "artwork", est.artworkName, "nft_id", est.nftID)
	return est, nil
}

// applyEstimates resolves the artwork and moves the ask price. It returns
// a note for the bargainer when the artwork lookup failed.
func (t *turnState) applyEstimates(ctx context.Context, est *estimates) (string, error) {
	s := t.session
	s.BuyerEmotion = est.emotion
	s.BidConfidence = est.confidence

	var note string
	if est.artworkName != "" || est.nftID != "" {
		nft, err := ResolveArtwork(ctx, t.store, est.nftID, est.artworkName)
		var rerr *ResolutionError
		switch {
		case errors.As(err, &rerr):
			note = rerr.Message
		case err != nil:
			t.log.WarnContext(ctx, "Artwork lookup failed", "error", err)
		case nft.OwnerID != t.seller.ID:
			note = fmt.Sprintf(msgNotForSale, nft.Name)
		case nft.TokenID != s.NFTID:
			if err := t.bindArtwork(ctx, nft); err != nil {
				return "", err
			}
		}
	}

	if s.HasArtwork() && est.bid > 0 && est.confidence >= t.cfg.BidConfidenceMin {
		s.LastBid = est.bid
		t.pricer.Concede(s, est.bid)
	}
	return note, nil
}

type artworkMetadata struct {
	NFTID       string `json:"nft_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ArtStyle    string `json:"art_style"`
	Attributes  string `json:"attributes,omitempty"`
	Poem        string `json:"poem,omitempty"`
}

func (t *turnState) bindArtwork(ctx context.Context, nft *database.NFT) error {
	bottom, err := t.pricer.BottomPrice(ctx, t.seller, nft.TokenID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(artworkMetadata{
		NFTID:       nft.TokenID,
		Name:        nft.Name,
		Description: nft.Description,
		ArtStyle:    nft.ArtStyle,
		Attributes:  nft.Attributes,
		Poem:        nft.Poem,
	})
	if err != nil {
		return fmt.Errorf("failed to encode artwork metadata: %w", err)
	}

	s := t.session
	s.NFTID = nft.TokenID
	s.ArtworkName = nft.Name
	s.ArtworkMetadata = string(meta)
	s.Round = 0
	s.LastBid = 0
	t.pricer.Open(s, bottom)
	t.log.InfoContext(ctx, "Negotiating artwork", "nft_id", nft.TokenID, "ask", s.AskPrice)
	return nil
}

// unbindArtwork drops the artwork and prices of the session so the buyer
// can pick another artwork.
func (t *turnState) unbindArtwork() {
	s := t.session
	s.Status = database.SessionOpen
	s.NFTID = ""
	s.ArtworkName = ""
	s.ArtworkMetadata = ""
	s.BottomPrice = 0
	s.AskPrice = 0
	s.CeilingPrice = 0
	s.LastBid = 0
	s.Round = 0
	s.DealPrice = 0
	s.ExpectedBalance = 0
}

func (t *turnState) collectionListing(ctx context.Context) string {
	nfts, err := t.store.ListNFTsByOwner(ctx, t.seller.ID)
	if err != nil {
		t.log.WarnContext(ctx, "Failed to list collection", "error", err)
		return "(unavailable)"
	}
	if len(nfts) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for _, nft := range nfts {
		fmt.Fprintf(&b, "- %s (NFT id: %s)\n", nft.Name, nft.TokenID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// bargain asks the seller persona for the reply of this turn.
func (t *turnState) bargain(ctx context.Context, roundNote, artworkNote string) (*Result, error) {
	s := t.session

	metadata := "none"
	if s.ArtworkMetadata != "" {
		metadata = s.ArtworkMetadata
	}

	var situation strings.Builder
	if artworkNote != "" {
		fmt.Fprintf(&situation, "Note from your artwork lookup, tell the buyer about it: %s\n", artworkNote)
	}
	if s.HasArtwork() {
		fmt.Fprintf(&situation, "Your current asking price is %s sol. Never quote a lower price in this reply.\n", formatAmount(s.AskPrice))
	} else {
		situation.WriteString("No artwork has been chosen yet, so do not quote any price.\n")
	}
	if s.LastBid > 0 {
		fmt.Fprintf(&situation, "Your estimation of the buyer's bid is %s sol (confidence %.1f).\n", formatAmount(s.LastBid), s.BidConfidence)
	} else {
		situation.WriteString("You have no estimation of the buyer's bid yet.\n")
	}
	if s.BuyerEmotion != "" {
		fmt.Fprintf(&situation, "Your estimation of the buyer's emotion is %s.\n", s.BuyerEmotion)
	}
	if roundNote != "" {
		situation.WriteString(roundNote + "\n")
	}

	system := fmt.Sprintf(BargainerInstruction,
		t.seller.ProfileMessage(), t.collectionListing(ctx), metadata, strings.TrimRight(situation.String(), "\n"))
	reply, err := t.llm.Complete(ctx, llm.Request{System: system, Messages: t.messages})
	if err != nil {
		return nil, fmt.Errorf("bargainer failed: %w", err)
	}

	return t.result(t.guardBottomPrice(ctx, reply), StageBargain, false), nil
}

// guardBottomPrice keeps the bottom price out of the reply. A leaking
// reply is rewritten once by the refiner; if it still leaks, the amount is
// replaced by the ask price.
func (t *turnState) guardBottomPrice(ctx context.Context, reply string) string {
	s := t.session
	if !s.HasArtwork() || s.BottomPrice == s.AskPrice {
		return reply
	}
	leak := priceLeak(s.BottomPrice)
	if !leak.in(reply) {
		return reply
	}
	t.log.WarnContext(ctx, "Bargainer reply leaked the bottom price")

	ask := formatAmount(s.AskPrice)
	if t.cfg.RefineLeakedReplies {
		req := llm.Request{
			System:   fmt.Sprintf(RefinerInstruction, formatAmount(s.BottomPrice), ask),
			Messages: []llm.Message{{Role: llm.RoleUser, Content: reply}},
		}
		refined, err := t.llm.Complete(ctx, req)
		switch {
		case err != nil:
			t.log.WarnContext(ctx, "Refiner failed", "error", err)
		case !leak.in(refined):
			return refined
		}
	}
	return leak.mask(reply, ask)
}

// amountPattern matches whole decimal numbers. Matches never overlap and
// consume no delimiter, so adjacent amounts are found separately.
var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// priceLeak finds amounts in a text equal to a price, in any notation that
// parses to it ("1.1", "1.10") or to its 6-decimal rounding.
type priceLeak float64

func (p priceLeak) is(amount string) bool {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return false
	}
	return v == float64(p) || v == round6(float64(p))
}

func (p priceLeak) in(text string) bool {
	for _, m := range amountPattern.FindAllString(text, -1) {
		if p.is(m) {
			return true
		}
	}
	return false
}

func (p priceLeak) mask(text, with string) string {
	return amountPattern.ReplaceAllStringFunc(text, func(m string) string {
		if p.is(m) {
			return with
		}
		return m
	})
}
