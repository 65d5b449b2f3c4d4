package database

import (
	"time"
)

// Dialog roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Dialog platforms.
const (
	PlatformTelegramPrivate = "telegram_private"
	PlatformTelegramGroup   = "telegram_group"
	PlatformAPI             = "api"
)

// NFT statuses.
const (
	NFTStatusMinted = "minted"
	NFTStatusSold   = "sold"
)

// Transaction kinds.
const (
	TransactionSale = "sale"
)

// Bargain session statuses.
const (
	SessionOpen        = "open"
	SessionDealReached = "deal_reached"
	SessionClosed      = "closed"
	SessionExpired     = "expired"
)

// MaxDialogContent is the longest dialog content stored, in characters.
const MaxDialogContent = 1000

// Agent is the persisted view of a persona that runs on the platform.
type Agent struct {
	ID               string    `db:"id"                json:"id"`
	Name             string    `db:"name"              json:"name"`
	Personality      string    `db:"personality"       json:"personality"`
	PaintingStyle    string    `db:"painting_style"    json:"painting_style"`
	WalletAddress    string    `db:"wallet_address"    json:"wallet_address"`
	TelegramUsername string    `db:"telegram_username" json:"telegram_username,omitempty"`
	Profile          string    `db:"profile"           json:"profile"`
	Active           bool      `db:"active"            json:"active"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"        json:"updated_at"`
}

// Dialog is one message exchanged between an agent and a chat.
// In private chats ChatID equals the user's id.
type Dialog struct {
	ID          uint      `db:"id"           json:"id"`
	AgentID     string    `db:"agent_id"     json:"agent_id"`
	ChatID      int64     `db:"chat_id"      json:"chat_id"`
	UserID      int64     `db:"user_id"      json:"user_id"`
	Role        string    `db:"role"         json:"role"`
	SpeakerName string    `db:"speaker_name" json:"speaker_name,omitempty"`
	Platform    string    `db:"platform"     json:"platform"`
	Content     string    `db:"content"      json:"content"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// NFT is an artwork minted by an agent. TokenID is the public identifier
// buyers quote in commands.
type NFT struct {
	ID          uint      `db:"id"           json:"-"`
	TokenID     string    `db:"token_id"     json:"token_id"`
	Name        string    `db:"name"         json:"name"`
	Description string    `db:"description"  json:"description"`
	ArtStyle    string    `db:"art_style"    json:"art_style"`
	ImagePath   string    `db:"image_path"   json:"image_path"`
	ImagePrompt string    `db:"image_prompt" json:"-"`
	Poem        string    `db:"poem"         json:"poem,omitempty"`
	Attributes  string    `db:"attributes"   json:"attributes"`
	CreatorID   string    `db:"creator_id"   json:"creator_id"`
	OwnerID     string    `db:"owner_id"     json:"owner_id"`
	Status      string    `db:"status"       json:"status"`
	LastPrice   float64   `db:"last_price"   json:"last_price"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// ArtworkCritique is one agent's judgement of an NFT. Scores are 0..10.
type ArtworkCritique struct {
	ID                   uint      `db:"id"                     json:"-"`
	NFTID                string    `db:"nft_id"                 json:"nft_id"`
	CriticID             string    `db:"critic_id"              json:"critic_id"`
	StyleMatch           string    `db:"style_match"            json:"style_match"`
	StyleMatchScore      int       `db:"style_match_score"      json:"style_match_score"`
	EmotionalImpact      string    `db:"emotional_impact"       json:"emotional_impact"`
	EmotionalImpactScore int       `db:"emotional_impact_score" json:"emotional_impact_score"`
	Harmony              string    `db:"harmony"                json:"harmony"`
	HarmonyScore         int       `db:"harmony_score"          json:"harmony_score"`
	AreasForImprovement  string    `db:"areas_for_improvement"  json:"areas_for_improvement"`
	OverallScore         float64   `db:"overall_score"          json:"overall_score"`
	CreatedAt            time.Time `db:"created_at"             json:"created_at"`
}

// Transaction records an NFT changing hands.
type Transaction struct {
	ID        uint      `db:"id"         json:"id"`
	NFTID     string    `db:"nft_id"     json:"nft_id"`
	FromOwner string    `db:"from_owner" json:"from_owner"`
	ToOwner   string    `db:"to_owner"   json:"to_owner"`
	Price     float64   `db:"price"      json:"price"`
	Kind      string    `db:"kind"       json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BargainSession is the negotiation state between one seller agent and one
// buyer.
type BargainSession struct {
	AgentID         string    `db:"agent_id"         json:"agent_id"`
	UserID          int64     `db:"user_id"          json:"user_id"`
	Round           int       `db:"round"            json:"round"`
	BottomPrice     float64   `db:"bottom_price"     json:"-"`
	AskPrice        float64   `db:"ask_price"        json:"ask_price"`
	CeilingPrice    float64   `db:"ceiling_price"    json:"ceiling_price"`
	LastBid         float64   `db:"last_bid"         json:"last_bid"`
	BidConfidence   float64   `db:"bid_confidence"   json:"bid_confidence"`
	BuyerEmotion    string    `db:"buyer_emotion"    json:"buyer_emotion"`
	NFTID           string    `db:"nft_id"           json:"nft_id"`
	ArtworkName     string    `db:"artwork_name"     json:"artwork_name"`
	ArtworkMetadata string    `db:"artwork_metadata" json:"artwork_metadata,omitempty"`
	Status          string    `db:"status"           json:"status"`
	DealPrice       float64   `db:"deal_price"       json:"deal_price"`
	ExpectedBalance float64   `db:"expected_balance" json:"expected_balance"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// HasArtwork reports whether the session is bound to an artwork.
func (s *BargainSession) HasArtwork() bool {
	return s.NFTID != ""
}

// Terminal reports whether the session accepts no more negotiation.
func (s *BargainSession) Terminal() bool {
	return s.Status == SessionClosed || s.Status == SessionExpired
}
