// Package telegramtest provides an in-memory telegram.Messenger for tests.
package telegramtest

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Method names accepted by Fail.
const (
	MethodSendMessage            = "SendMessage"
	MethodSendPhoto              = "SendPhoto"
	MethodForwardMessage         = "ForwardMessage"
	MethodEditMessageText        = "EditMessageText"
	MethodEditMessageReplyMarkup = "EditMessageReplyMarkup"
	MethodDeleteMessage          = "DeleteMessage"
	MethodSetMessageReaction     = "SetMessageReaction"
	MethodPinChatMessage         = "PinChatMessage"
	MethodAnswerCallbackQuery    = "AnswerCallbackQuery"
	MethodCreateForumTopic       = "CreateForumTopic"
)

// Messenger records every call and answers with increasing message IDs.
// Errors queued with Fail are returned, in order, by the named method.
type Messenger struct {
	mu     sync.Mutex
	nextID int
	fails  map[string][]error

	Sent      []*bot.SendMessageParams
	Photos    []*bot.SendPhotoParams
	Forwarded []*bot.ForwardMessageParams
	Texts     []*bot.EditMessageTextParams
	Edited    []*bot.EditMessageReplyMarkupParams
	Deleted   []*bot.DeleteMessageParams
	Reactions []*bot.SetMessageReactionParams
	Pinned    []*bot.PinChatMessageParams
	Answers   []*bot.AnswerCallbackQueryParams
	Topics    []*bot.CreateForumTopicParams
}

// NewMessenger returns an empty fake whose first message ID is 1000.
func NewMessenger() *Messenger {
	return &Messenger{nextID: 1000, fails: make(map[string][]error)}
}

// Fail queues errors for the next calls of method.
func (m *Messenger) Fail(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[method] = append(m.fails[method], errs...)
}

// Calls returns how many times method was called, failed calls included.
func (m *Messenger) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case MethodSendMessage:
		return len(m.Sent)
	case MethodSendPhoto:
		return len(m.Photos)
	case MethodForwardMessage:
		return len(m.Forwarded)
	case MethodEditMessageText:
		return len(m.Texts)
	case MethodEditMessageReplyMarkup:
		return len(m.Edited)
	case MethodDeleteMessage:
		return len(m.Deleted)
	case MethodSetMessageReaction:
		return len(m.Reactions)
	case MethodPinChatMessage:
		return len(m.Pinned)
	case MethodAnswerCallbackQuery:
		return len(m.Answers)
	case MethodCreateForumTopic:
		return len(m.Topics)
	}
	return 0
}

// LastText returns the text of the last sent message, or "".
func (m *Messenger) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1].Text
}

// LastAnswer returns the text of the last callback answer, or "".
func (m *Messenger) LastAnswer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Answers) == 0 {
		return ""
	}
	return m.Answers[len(m.Answers)-1].Text
}

func (m *Messenger) next(method string) (int, error) {
	if q := m.fails[method]; len(q) > 0 {
		m.fails[method] = q[1:]
		if q[0] != nil {
			return 0, q[0]
		}
	}
	m.nextID++
	return m.nextID, nil
}

func chatID(v any) int64 {
	switch id := v.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	}
	return 0
}

func (m *Messenger) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, p)
	id, err := m.next(MethodSendMessage)
	if err != nil {
		return nil, err
	}
	return &models.Message{ID: id, Chat: models.Chat{ID: chatID(p.ChatID)}, Text: p.Text}, nil
}

func (m *Messenger) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Photos = append(m.Photos, p)
	id, err := m.next(MethodSendPhoto)
	if err != nil {
		return nil, err
	}
	return &models.Message{ID: id, Chat: models.Chat{ID: chatID(p.ChatID)}}, nil
}

func (m *Messenger) ForwardMessage(_ context.Context, p *bot.ForwardMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Forwarded = append(m.Forwarded, p)
	id, err := m.next(MethodForwardMessage)
	if err != nil {
		return nil, err
	}
	return &models.Message{ID: id, Chat: models.Chat{ID: chatID(p.ChatID)}}, nil
}

func (m *Messenger) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, p)
	if _, err := m.next(MethodEditMessageText); err != nil {
		return nil, err
	}
	return &models.Message{ID: p.MessageID, Chat: models.Chat{ID: chatID(p.ChatID)}, Text: p.Text}, nil
}

func (m *Messenger) EditMessageReplyMarkup(_ context.Context, p *bot.EditMessageReplyMarkupParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, p)
	if _, err := m.next(MethodEditMessageReplyMarkup); err != nil {
		return nil, err
	}
	return &models.Message{ID: p.MessageID, Chat: models.Chat{ID: chatID(p.ChatID)}}, nil
}

func (m *Messenger) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, p)
	_, err := m.next(MethodDeleteMessage)
	return err == nil, err
}

func (m *Messenger) SetMessageReaction(_ context.Context, p *bot.SetMessageReactionParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reactions = append(m.Reactions, p)
	_, err := m.next(MethodSetMessageReaction)
	return err == nil, err
}

func (m *Messenger) PinChatMessage(_ context.Context, p *bot.PinChatMessageParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pinned = append(m.Pinned, p)
	_, err := m.next(MethodPinChatMessage)
	return err == nil, err
}

func (m *Messenger) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers = append(m.Answers, p)
	_, err := m.next(MethodAnswerCallbackQuery)
	return err == nil, err
}

func (m *Messenger) CreateForumTopic(_ context.Context, p *bot.CreateForumTopicParams) (*models.ForumTopic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Topics = append(m.Topics, p)
	id, err := m.next(MethodCreateForumTopic)
	if err != nil {
		return nil, err
	}
	return &models.ForumTopic{MessageThreadID: id, Name: p.Name}, nil
}
