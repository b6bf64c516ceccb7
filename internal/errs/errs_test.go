package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot"

	"github.com/edgard/amabot/internal/errs"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	tests := []struct {
		name      string
		err       error
		wantKind  errs.Kind
		wantAfter int
	}{
		{"plain error", base, errs.KindOther, 0},
		{"nil", nil, errs.KindOther, 0},
		{"rate limited", errs.RateLimited(5, base), errs.KindRateLimited, 5},
		{"wrapped rate limited", fmt.Errorf("oracle: %w", errs.RateLimited(7, base)), errs.KindRateLimited, 7},
		{"negative hint", errs.RateLimited(-3, base), errs.KindRateLimited, 0},
		{"malformed", errs.Malformed(base), errs.KindMalformed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := errs.KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if got := errs.RetryAfter(tt.err); got != tt.wantAfter {
				t.Errorf("RetryAfter() = %d, want %d", got, tt.wantAfter)
			}
		})
	}
}

func TestTaggedErrorUnwraps(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := errs.Malformed(base)
	if !errors.Is(err, base) {
		t.Errorf("errors.Is(Malformed(base), base) = false, want true")
	}
}

func TestFromTelegram(t *testing.T) {
	t.Parallel()

	tooMany := &bot.TooManyRequestsError{Message: "too many requests", RetryAfter: 12}
	err := errs.FromTelegram(fmt.Errorf("send: %w", tooMany))
	if !errs.IsRateLimited(err) {
		t.Fatalf("FromTelegram(429) kind = %v, want rate_limited", errs.KindOf(err))
	}
	if got := errs.RetryAfter(err); got != 12 {
		t.Errorf("RetryAfter() = %d, want 12", got)
	}

	plain := errors.New("bad request")
	if got := errs.FromTelegram(plain); got != plain {
		t.Errorf("FromTelegram(plain) = %v, want the same error", got)
	}
	if errs.FromTelegram(nil) != nil {
		t.Errorf("FromTelegram(nil) != nil")
	}
}
