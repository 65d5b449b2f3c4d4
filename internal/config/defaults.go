package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBPath             = "teleagent.db"
	DefaultMaxHistoryMessages = 100

	DefaultLLMProvider    = "openai"
	DefaultLLMModel       = "gpt-4o"
	DefaultLLMImageModel  = "dall-e-3"
	DefaultLLMTemperature = 0.7
	DefaultLLMTimeout     = 2 * time.Minute
	DefaultLLMMaxRetries  = 2
	DefaultLLMRetryDelay  = 2 * time.Second
	DefaultLLMCircuitFail = 5
	DefaultLLMCooldown    = 30 * time.Second

	DefaultBargainMaxRounds        = 20
	DefaultBargainBidConfidenceMin = 0.5
	DefaultBargainBalanceTolerance = 0.1
	DefaultBargainHistoryLimit     = 50
	DefaultBargainTurnTimeout      = 3 * time.Minute

	DefaultCritiqueFactor     = 0.0001
	DefaultPositiveFactor     = 0.00002
	DefaultNegativeFactor     = -0.00001
	DefaultMinPrice           = 0.0001
	DefaultBottomPrice        = 1.0
	DefaultOpeningMarkup      = 2.0
	DefaultConcessionRate     = 0.25
	DefaultReplyDelay         = 400 * time.Millisecond
	DefaultArtworkImageDir    = "data/artworks"
	DefaultArtworkHistory     = 30
	DefaultCritiqueWorkers    = 4
	DefaultQueueName          = "teleagent:announcements"
	DefaultQueueBlockWait     = 5 * time.Second
	DefaultQueueBuffer        = 64
	DefaultHTTPMode           = "release"
	DefaultDialogRetention    = 30 * 24 * time.Hour
	DefaultPersonasDir        = "personas"
	DefaultSQLMaintenanceCron = "0 0 4 * * *"
	DefaultArtworkCron        = "0 0 */6 * * *"
	DefaultDialogCleanupCron  = "0 30 3 * * *"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.max_history_messages", DefaultMaxHistoryMessages)

	v.SetDefault("telegram.reply_delay", DefaultReplyDelay)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.image_model", DefaultLLMImageModel)
	v.SetDefault("llm.temperature", DefaultLLMTemperature)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.max_retries", DefaultLLMMaxRetries)
	v.SetDefault("llm.retry_delay", DefaultLLMRetryDelay)
	v.SetDefault("llm.circuit_failures", DefaultLLMCircuitFail)
	v.SetDefault("llm.circuit_cooldown", DefaultLLMCooldown)

	v.SetDefault("bargain.max_rounds", DefaultBargainMaxRounds)
	v.SetDefault("bargain.bid_confidence_min", DefaultBargainBidConfidenceMin)
	v.SetDefault("bargain.balance_tolerance", DefaultBargainBalanceTolerance)
	v.SetDefault("bargain.history_limit", DefaultBargainHistoryLimit)
	v.SetDefault("bargain.refine_leaked_replies", true)
	v.SetDefault("bargain.turn_timeout", DefaultBargainTurnTimeout)

	v.SetDefault("pricing.critique_factor", DefaultCritiqueFactor)
	v.SetDefault("pricing.positive_emotion_factor", DefaultPositiveFactor)
	v.SetDefault("pricing.negative_emotion_factor", DefaultNegativeFactor)
	v.SetDefault("pricing.min_price", DefaultMinPrice)
	v.SetDefault("pricing.default_bottom_price", DefaultBottomPrice)
	v.SetDefault("pricing.opening_markup", DefaultOpeningMarkup)
	v.SetDefault("pricing.concession_rate", DefaultConcessionRate)

	v.SetDefault("artwork.image_dir", DefaultArtworkImageDir)
	v.SetDefault("artwork.history_limit", DefaultArtworkHistory)
	v.SetDefault("artwork.critique_workers", DefaultCritiqueWorkers)

	v.SetDefault("wallet.driver", "static")

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.name", DefaultQueueName)
	v.SetDefault("queue.block_wait", DefaultQueueBlockWait)
	v.SetDefault("queue.buffer", DefaultQueueBuffer)

	v.SetDefault("http.mode", DefaultHTTPMode)

	v.SetDefault("scheduler.dialog_retention", DefaultDialogRetention)
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance":  map[string]any{"enabled": true, "schedule": DefaultSQLMaintenanceCron},
		"artwork_creation": map[string]any{"enabled": false, "schedule": DefaultArtworkCron},
		"dialog_cleanup":   map[string]any{"enabled": true, "schedule": DefaultDialogCleanupCron},
	})

	v.SetDefault("personas.dir", DefaultPersonasDir)

	v.SetDefault("messages.welcome", "Hello! I'm @botname, an artist trading my NFT artworks. Ask me about my collection or make me an offer.")
	v.SetDefault("messages.help", "Available commands:\n/start - Start interaction\n/help - Show this help message\n/profile - View agent profile & style\n/mint - Check latest minted NFTs\n/nfts - View agent's NFT collection\n/balance - Check token balance\n/clean_history - Clean chat history with the bot")
	v.SetDefault("messages.error_general", "Sorry, I encountered an error processing your message. Please try again later.")
	v.SetDefault("messages.error_unauthorized", "You are not authorized to use this command.")
	v.SetDefault("messages.history_cleaned", "Our chat history has been cleaned. Let's start over.")
	v.SetDefault("messages.no_nfts", "I don't have any NFTs in my collection yet.")
	v.SetDefault("messages.no_mints", "No recent NFTs have been minted.")
	v.SetDefault("messages.artwork_error", "Sorry, I encountered an error while creating artwork. Let's continue our conversation.")
	v.SetDefault("messages.empty_reply_fallback", "Hmm, let me think about that for a moment.")
	v.SetDefault("messages.announcement_disabled", "No group chat is configured for announcements.")
}

// bindSecrets registers keys without defaults so that Unmarshal sees them
// when they only come from the environment.
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"telegram.token",
		"telegram.admin_user_id",
		"telegram.agent_id",
		"telegram.group_chat_id",
		"llm.api_key",
		"llm.base_url",
		"wallet.rpc_url",
		"queue.redis_addr",
		"queue.redis_password",
		"queue.rabbitmq_url",
		"http.addr",
	} {
		_ = v.BindEnv(key)
	}
}
