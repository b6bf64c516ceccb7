package config

import "time"

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path": "storage.db",

	"telegram.token":          "",
	"telegram.admin_user_ids": []int64{},
	"telegram.staff_chat_id":  0,
	"telegram.hashtag_prefix": "ama",
	"telegram.reaction_emoji": "👍",

	"gemini.api_key":             "",
	"gemini.model_name":          "gemini-2.0-flash",
	"gemini.temperature":         0.2,
	"gemini.system_instruction":  "",
	"gemini.max_retries":         2,
	"gemini.retry_delay_seconds": 2,
	"gemini.timeout":             60 * time.Second,
	"gemini.breaker_failures":    5,
	"gemini.breaker_cooldown":    30 * time.Second,

	"pipeline.drain_interval":      time.Second,
	"pipeline.retry_interval":      2 * time.Second,
	"pipeline.rate_limit":          5,
	"pipeline.item_delay":          100 * time.Millisecond,
	"pipeline.initial_retry_delay": time.Second,
	"pipeline.max_retry_delay":     5 * time.Minute,
	"pipeline.max_retries":         5,
	"pipeline.reconcile_after":     5 * time.Minute,
	"pipeline.reconcile_window":    24 * time.Hour,
	"pipeline.reconcile_batch":     50,

	"winners.display_count":   10,
	"winners.schedule_layout": "2006-01-02 15:04",
	"winners.timezone":        "UTC",
	"winners.banner_url":      "",

	"scheduler.tasks.sql_maintenance.enabled":       true,
	"scheduler.tasks.sql_maintenance.schedule":      "0 3 * * *",
	"scheduler.tasks.submission_reconcile.enabled":  true,
	"scheduler.tasks.submission_reconcile.schedule": "*/5 * * * *",
	"scheduler.tasks.winner_dispatch.enabled":       true,
	"scheduler.tasks.winner_dispatch.schedule":      "* * * * *",

	"messages.welcome":       "👋 Hi! Post your question in the community chat with the AMA hashtag, e.g. #ama12.",
	"messages.help":          "Admin commands:\n/ama_new <number> <lang> <winners> [topic]\n/ama_start <id>\n/ama_end <id>\n/ama_list\n/winners <id>\n/cancel",
	"messages.unauthorized":  "🚫 You are not authorized to use this command.",
	"messages.general_error": "❌ Something went wrong. Please try again later.",

	"messages.ama_usage":         "Usage: /ama_new <number> <lang> <winners> [topic]",
	"messages.ama_created_fmt":   "AMA #%d (%s) created with id %d.",
	"messages.ama_not_found_fmt": "AMA %d not found.",
	"messages.ama_status_fmt":    "AMA %d is now %s.",
	"messages.ama_regression":    "That status change would move the AMA backwards.",
	"messages.ama_list_header":   "Recent AMAs:",
	"messages.ama_list_empty":    "No AMAs yet.",

	"messages.winners_usage":        "Usage: /winners <ama id>",
	"messages.no_scores":            "No scores found for this AMA.",
	"messages.shortlist_header_fmt": "🏆 AMA #%d (%s): top %d of %d participants, %d winner(s) to pick.",
	"messages.discarded":            "Participant discarded.",
	"messages.already_discarded":    "Participant was already discarded.",
	"messages.unknown_participant":  "That participant is not on the list.",
	"messages.selection_reset":      "Selection reset.",
	"messages.no_eligible":          "No eligible participants left to confirm.",
	"messages.confirmed_fmt":        "✅ %d winner(s) saved for AMA #%d. Announce now or schedule?",
	"messages.cancelled":            "Selection cancelled.",
	"messages.invalid_action":       "Unknown or expired action.",

	"messages.schedule_ask_fmt":    "Send the announcement time for AMA #%d as %s (%s).",
	"messages.schedule_invalid":    "Could not read that time, please use the requested format.",
	"messages.schedule_not_future": "That time is not in the future.",
	"messages.scheduled_fmt":       "Announcement for AMA #%d scheduled at %s.",
	"messages.broadcast_sent_fmt":  "Winners of AMA #%d announced.",
	"messages.broadcast_failed":    "Could not announce the winners, please retry.",

	"messages.announcement_header_fmt": "🎉 AMA #%d winners",
	"messages.announcement_line_fmt":   "%d. %s (%d pts)",
	"messages.analysis_fmt":            "📊 **Score: %d/100**\n\n%s",
}
