// Package config provides configuration loading, validation, and management
// for teleagent. It reads a YAML file, overlays TELEAGENT_* environment
// variables, applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration for all teleagent components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Bargain   BargainConfig   `mapstructure:"bargain"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Artwork   ArtworkConfig   `mapstructure:"artwork"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Queue     QueueConfig     `mapstructure:"queue"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Personas  PersonasConfig  `mapstructure:"personas"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path               string `mapstructure:"path"                 validate:"required"`
	MaxHistoryMessages int    `mapstructure:"max_history_messages" validate:"min=1,max=500"`
}

// TelegramConfig holds bot credentials and the agent the bot speaks for.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
	// AgentID selects the persona this bot impersonates.
	AgentID string `mapstructure:"agent_id" validate:"required"`
	// GroupChatID receives announcements. Zero disables them.
	GroupChatID int64         `mapstructure:"group_chat_id"`
	ReplyDelay  time.Duration `mapstructure:"reply_delay" validate:"min=0,max=10s"`

	BotInfo *models.User `mapstructure:"-"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"     validate:"oneof=gemini openai"`
	APIKey      string        `mapstructure:"api_key"      validate:"required"`
	BaseURL     string        `mapstructure:"base_url"     validate:"omitempty,url"`
	Model       string        `mapstructure:"model"        validate:"required"`
	ImageModel  string        `mapstructure:"image_model"`
	Temperature float32       `mapstructure:"temperature"  validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries"  validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0,max=1m"`
	// CircuitFailures consecutive failures open the circuit. Zero disables it.
	CircuitFailures int           `mapstructure:"circuit_failures" validate:"min=0,max=100"`
	CircuitCooldown time.Duration `mapstructure:"circuit_cooldown" validate:"min=0,max=1h"`
}

// BargainConfig tunes the negotiation pipeline.
type BargainConfig struct {
	MaxRounds           int           `mapstructure:"max_rounds"            validate:"min=1,max=200"`
	BidConfidenceMin    float64       `mapstructure:"bid_confidence_min"    validate:"min=0,max=1"`
	BalanceTolerance    float64       `mapstructure:"balance_tolerance"     validate:"gt=0,max=1"`
	HistoryLimit        int           `mapstructure:"history_limit"         validate:"min=1,max=500"`
	RefineLeakedReplies bool          `mapstructure:"refine_leaked_replies"`
	TurnTimeout         time.Duration `mapstructure:"turn_timeout"          validate:"min=1s,max=10m"`
}

// PricingConfig holds the bottom price formula and the ask adjustment.
type PricingConfig struct {
	CritiqueFactor     float64 `mapstructure:"critique_factor"`
	PositiveFactor     float64 `mapstructure:"positive_emotion_factor"`
	NegativeFactor     float64 `mapstructure:"negative_emotion_factor"`
	MinPrice           float64 `mapstructure:"min_price"            validate:"gt=0"`
	DefaultBottomPrice float64 `mapstructure:"default_bottom_price" validate:"gt=0"`
	OpeningMarkup      float64 `mapstructure:"opening_markup"       validate:"min=1"`
	ConcessionRate     float64 `mapstructure:"concession_rate"      validate:"min=0,max=1"`
}

// ArtworkConfig controls artwork generation.
type ArtworkConfig struct {
	ImageDir string `mapstructure:"image_dir" validate:"required"`
	// HistoryLimit is the number of recent group messages used as inspiration.
	HistoryLimit int `mapstructure:"history_limit" validate:"min=0,max=500"`
	// CritiqueWorkers is the number of critiques requested in parallel.
	CritiqueWorkers int `mapstructure:"critique_workers" validate:"min=1,max=64"`
}

// WalletConfig selects the balance reader.
type WalletConfig struct {
	Driver         string             `mapstructure:"driver"          validate:"oneof=rpc static"`
	RPCURL         string             `mapstructure:"rpc_url"         validate:"required_if=Driver rpc,omitempty,url"`
	StaticBalances map[string]float64 `mapstructure:"static_balances"`
}

// QueueConfig selects the announcement queue.
type QueueConfig struct {
	Driver    string        `mapstructure:"driver"       validate:"oneof=memory redis rabbitmq"`
	RedisAddr string        `mapstructure:"redis_addr"   validate:"required_if=Driver redis"`
	RedisPass string        `mapstructure:"redis_password"`
	RedisDB   int           `mapstructure:"redis_db"     validate:"min=0"`
	RabbitURL string        `mapstructure:"rabbitmq_url" validate:"required_if=Driver rabbitmq"`
	Name      string        `mapstructure:"name"         validate:"required"`
	BlockWait time.Duration `mapstructure:"block_wait"   validate:"min=0"`
	Buffer    int           `mapstructure:"buffer"       validate:"min=1"`
}

// HTTPConfig configures the REST API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

// SchedulerConfig lists cron tasks.
type SchedulerConfig struct {
	Tasks           map[string]TaskConfig `mapstructure:"tasks"            validate:"dive"`
	DialogRetention time.Duration         `mapstructure:"dialog_retention" validate:"min=0"`
}

// TaskConfig defines one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// PersonasConfig points at the directory of persona YAML files.
type PersonasConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// MessagesConfig holds every user-facing fixed message.
type MessagesConfig struct {
	Welcome              string `mapstructure:"welcome"                validate:"required"`
	Help                 string `mapstructure:"help"                   validate:"required"`
	ErrorGeneralMsg      string `mapstructure:"error_general"          validate:"required"`
	ErrorUnauthorizedMsg string `mapstructure:"error_unauthorized"     validate:"required"`
	HistoryCleanedMsg    string `mapstructure:"history_cleaned"        validate:"required"`
	NoNFTsMsg            string `mapstructure:"no_nfts"                validate:"required"`
	NoMintsMsg           string `mapstructure:"no_mints"               validate:"required"`
	ArtworkErrorMsg      string `mapstructure:"artwork_error"          validate:"required"`
	EmptyReplyFallback   string `mapstructure:"empty_reply_fallback"   validate:"required"`
	AnnouncementDisabled string `mapstructure:"announcement_disabled"  validate:"required"`
}

// Load reads configuration from path, overlays TELEAGENT_* environment
// variables and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("TELEAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags on the whole tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}
