// Package config provides configuration loading, validation, and management
// for the AMA bot. It reads a YAML file, applies BOT_* environment overrides
// and defaults, and validates the result.
package config

import (
	"slices"
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the full application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Winners   WinnersConfig   `mapstructure:"winners"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite file location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and the chats the bot works with.
type TelegramConfig struct {
	Token         string  `mapstructure:"token"          validate:"required"`
	AdminUserIDs  []int64 `mapstructure:"admin_user_ids" validate:"required,min=1,dive,gt=0"`
	StaffChatID   int64   `mapstructure:"staff_chat_id"  validate:"required"`
	HashtagPrefix string  `mapstructure:"hashtag_prefix" validate:"required,alphanum"`
	ReactionEmoji string  `mapstructure:"reaction_emoji" validate:"required"`

	// CommunityChats maps a two-letter language code to its community chat.
	CommunityChats map[string]int64 `mapstructure:"community_chats" validate:"required,min=1,dive,keys,len=2,endkeys,ne=0"`

	BotInfo *models.User `mapstructure:"-"`
}

// IsAdmin reports whether userID is one of the configured operators.
func (c *TelegramConfig) IsAdmin(userID int64) bool {
	return slices.Contains(c.AdminUserIDs, userID)
}

// ChatLanguage returns the language whose community chat is chatID.
func (c *TelegramConfig) ChatLanguage(chatID int64) (string, bool) {
	for lang, id := range c.CommunityChats {
		if id == chatID {
			return lang, true
		}
	}
	return "", false
}

// GeminiConfig configures the scoring oracle.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"             validate:"required"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
	BreakerFailures   int           `mapstructure:"breaker_failures"    validate:"min=1"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"    validate:"min=1s"`
}

// PipelineConfig tunes the ingestion queue, the retry queue and reconciliation.
type PipelineConfig struct {
	DrainInterval     time.Duration `mapstructure:"drain_interval"      validate:"min=10ms"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"      validate:"min=10ms"`
	RateLimit         int           `mapstructure:"rate_limit"          validate:"min=1"`
	ItemDelay         time.Duration `mapstructure:"item_delay"          validate:"min=0"`
	InitialRetryDelay time.Duration `mapstructure:"initial_retry_delay" validate:"min=1ms"`
	MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"     validate:"gtefield=InitialRetryDelay"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0"`
	ReconcileAfter    time.Duration `mapstructure:"reconcile_after"     validate:"min=1s"`
	ReconcileWindow   time.Duration `mapstructure:"reconcile_window"    validate:"gtfield=ReconcileAfter"`
	ReconcileBatch    int           `mapstructure:"reconcile_batch"     validate:"min=1"`
}

// WinnersConfig configures the shortlist and the announcement.
type WinnersConfig struct {
	DisplayCount   int    `mapstructure:"display_count"   validate:"min=1"`
	ScheduleLayout string `mapstructure:"schedule_layout" validate:"required"`
	Timezone       string `mapstructure:"timezone"        validate:"required"`
	BannerURL      string `mapstructure:"banner_url"      validate:"omitempty,url"`

	Location *time.Location `mapstructure:"-"`
}

// SchedulerConfig lists the periodic tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-facing text. Entries ending in Fmt are
// fmt templates.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"       validate:"required"`
	Help         string `mapstructure:"help"          validate:"required"`
	Unauthorized string `mapstructure:"unauthorized"  validate:"required"`
	GeneralError string `mapstructure:"general_error" validate:"required"`

	AMAUsage       string `mapstructure:"ama_usage"        validate:"required"`
	AMACreatedFmt  string `mapstructure:"ama_created_fmt"  validate:"required"`
	AMANotFoundFmt string `mapstructure:"ama_not_found_fmt" validate:"required"`
	AMAStatusFmt   string `mapstructure:"ama_status_fmt"   validate:"required"`
	AMARegression  string `mapstructure:"ama_regression"   validate:"required"`
	AMAListHeader  string `mapstructure:"ama_list_header"  validate:"required"`
	AMAListEmpty   string `mapstructure:"ama_list_empty"   validate:"required"`

	WinnersUsage       string `mapstructure:"winners_usage"        validate:"required"`
	NoScores           string `mapstructure:"no_scores"            validate:"required"`
	ShortlistHeaderFmt string `mapstructure:"shortlist_header_fmt" validate:"required"`
	Discarded          string `mapstructure:"discarded"            validate:"required"`
	AlreadyDiscarded   string `mapstructure:"already_discarded"    validate:"required"`
	UnknownParticipant string `mapstructure:"unknown_participant"  validate:"required"`
	SelectionReset     string `mapstructure:"selection_reset"      validate:"required"`
	NoEligible         string `mapstructure:"no_eligible"          validate:"required"`
	ConfirmedFmt       string `mapstructure:"confirmed_fmt"        validate:"required"`
	Cancelled          string `mapstructure:"cancelled"            validate:"required"`
	InvalidAction      string `mapstructure:"invalid_action"       validate:"required"`

	ScheduleAskFmt    string `mapstructure:"schedule_ask_fmt"    validate:"required"`
	ScheduleInvalid   string `mapstructure:"schedule_invalid"    validate:"required"`
	ScheduleNotFuture string `mapstructure:"schedule_not_future" validate:"required"`
	ScheduledFmt      string `mapstructure:"scheduled_fmt"       validate:"required"`
	BroadcastSentFmt  string `mapstructure:"broadcast_sent_fmt"  validate:"required"`
	BroadcastFailed   string `mapstructure:"broadcast_failed"    validate:"required"`

	AnnouncementHeaderFmt string `mapstructure:"announcement_header_fmt" validate:"required"`
	AnnouncementLineFmt   string `mapstructure:"announcement_line_fmt"   validate:"required"`
	AnalysisFmt           string `mapstructure:"analysis_fmt"            validate:"required"`
}
