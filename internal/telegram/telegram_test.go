package telegram_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/errs"
	"github.com/edgard/amabot/internal/telegram"
	"github.com/edgard/amabot/internal/telegram/telegramtest"
)

func TestClientTagsTooManyRequests(t *testing.T) {
	t.Parallel()

	fake := telegramtest.NewMessenger()
	tooMany := &bot.TooManyRequestsError{Message: "Too Many Requests: retry after 5", RetryAfter: 5}
	plain := errors.New("bad request: message to forward not found")
	fake.Fail(telegramtest.MethodForwardMessage, tooMany, plain)

	c := telegram.NewClient(fake)
	ctx := context.Background()

	_, err := c.ForwardMessage(ctx, &bot.ForwardMessageParams{ChatID: int64(1), FromChatID: int64(2), MessageID: 3})
	if !errs.IsRateLimited(err) {
		t.Fatalf("ForwardMessage() error = %v, want rate limited", err)
	}
	if got := errs.RetryAfter(err); got != 5 {
		t.Errorf("RetryAfter() = %d, want 5", got)
	}
	if !errors.As(err, &tooMany) {
		t.Errorf("tagged error lost the original *bot.TooManyRequestsError")
	}

	_, err = c.ForwardMessage(ctx, &bot.ForwardMessageParams{ChatID: int64(1), FromChatID: int64(2), MessageID: 3})
	if !errors.Is(err, plain) || errs.KindOf(err) != errs.KindOther {
		t.Errorf("ForwardMessage() error = %v, want the untagged original", err)
	}

	msg, err := c.ForwardMessage(ctx, &bot.ForwardMessageParams{ChatID: int64(1), FromChatID: int64(2), MessageID: 3})
	if err != nil || msg == nil {
		t.Fatalf("ForwardMessage() = %v, %v, want a message", msg, err)
	}
}

type recordingRegistrar struct {
	patterns []string
	handlers []bot.HandlerFunc
}

func (r *recordingRegistrar) RegisterHandler(_ bot.HandlerType, pattern string, _ bot.MatchType, f bot.HandlerFunc, _ ...bot.Middleware) string {
	r.patterns = append(r.patterns, pattern)
	r.handlers = append(r.handlers, f)
	return pattern
}

func TestRegisterHandlersAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	mark := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				trace = append(trace, name)
				next(ctx, b, u)
			}
		}
	}

	reg := &recordingRegistrar{}
	err := telegram.RegisterHandlers(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), map[string]telegram.RegisteredHandler{
		"/winners": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "winners",
			MatchType:   bot.MatchTypeCommandStartOnly,
			Handler:     func(context.Context, *bot.Bot, *models.Update) { trace = append(trace, "handler") },
			Middleware:  []bot.Middleware{mark("outer"), mark("inner")},
		},
		"/nil": {Pattern: "nil"},
	})
	if err != nil {
		t.Fatalf("RegisterHandlers() error = %v", err)
	}
	if len(reg.handlers) != 1 || reg.patterns[0] != "winners" {
		t.Fatalf("registered %v, want only winners", reg.patterns)
	}

	reg.handlers[0](context.Background(), nil, &models.Update{})
	want := []string{"outer", "inner", "handler"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestReaction(t *testing.T) {
	t.Parallel()

	r := telegram.Reaction("👍")
	if len(r) != 1 || r[0].ReactionTypeEmoji == nil || r[0].ReactionTypeEmoji.Emoji != "👍" {
		t.Errorf("Reaction() = %+v, want one 👍 emoji reaction", r)
	}
}

func TestNewTelegramBotRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	if _, err := telegram.NewTelegramBot("", nil); err == nil {
		t.Error("NewTelegramBot(\"\") error = nil, want error")
	}
}
