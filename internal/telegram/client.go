package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/errs"
)

// Messenger is the subset of the Bot API the AMA flows use. *bot.Bot and
// *Client both satisfy it.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	ForwardMessage(ctx context.Context, params *bot.ForwardMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	SetMessageReaction(ctx context.Context, params *bot.SetMessageReactionParams) (bool, error)
	PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	CreateForumTopic(ctx context.Context, params *bot.CreateForumTopicParams) (*models.ForumTopic, error)
}

// Client forwards every call to the Bot API and tags "429 Too Many Requests"
// answers as errs.KindRateLimited with the server's retry hint.
type Client struct {
	api Messenger
}

// NewClient wraps api, normally a *bot.Bot.
func NewClient(api Messenger) *Client {
	return &Client{api: api}
}

func (c *Client) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	msg, err := c.api.SendMessage(ctx, params)
	return msg, errs.FromTelegram(err)
}

func (c *Client) SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	msg, err := c.api.SendPhoto(ctx, params)
	return msg, errs.FromTelegram(err)
}

func (c *Client) ForwardMessage(ctx context.Context, params *bot.ForwardMessageParams) (*models.Message, error) {
	msg, err := c.api.ForwardMessage(ctx, params)
	return msg, errs.FromTelegram(err)
}

func (c *Client) EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	msg, err := c.api.EditMessageText(ctx, params)
	return msg, errs.FromTelegram(err)
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error) {
	msg, err := c.api.EditMessageReplyMarkup(ctx, params)
	return msg, errs.FromTelegram(err)
}

func (c *Client) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error) {
	ok, err := c.api.DeleteMessage(ctx, params)
	return ok, errs.FromTelegram(err)
}

func (c *Client) SetMessageReaction(ctx context.Context, params *bot.SetMessageReactionParams) (bool, error) {
	ok, err := c.api.SetMessageReaction(ctx, params)
	return ok, errs.FromTelegram(err)
}

func (c *Client) PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error) {
	ok, err := c.api.PinChatMessage(ctx, params)
	return ok, errs.FromTelegram(err)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	ok, err := c.api.AnswerCallbackQuery(ctx, params)
	return ok, errs.FromTelegram(err)
}

func (c *Client) CreateForumTopic(ctx context.Context, params *bot.CreateForumTopicParams) (*models.ForumTopic, error) {
	topic, err := c.api.CreateForumTopic(ctx, params)
	return topic, errs.FromTelegram(err)
}

// Reaction builds the reaction list for a single emoji.
func Reaction(emoji string) []models.ReactionType {
	return []models.ReactionType{{
		Type: models.ReactionTypeTypeEmoji,
		ReactionTypeEmoji: &models.ReactionTypeEmoji{
			Type:  models.ReactionTypeTypeEmoji,
			Emoji: emoji,
		},
	}}
}
