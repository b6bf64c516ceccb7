// Package errs tags upstream failures with the kind the ingestion pipeline
// branches on: rate limited (retry later), malformed (never retry) or other.
package errs

import (
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindOther is any failure that is neither rate limiting nor malformed output.
	KindOther Kind = iota
	// KindRateLimited means the upstream asked us to slow down.
	KindRateLimited
	// KindMalformed means the upstream answered with data that violates its contract.
	KindMalformed
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "other"
	}
}

// Error is a failure tagged with a Kind. RetryAfter is the upstream hint in
// seconds and is only meaningful for KindRateLimited.
type Error struct {
	Kind       Kind
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %ds): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RateLimited tags err as rate limited with a retry hint in seconds.
func RateLimited(retryAfter int, err error) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter, Err: err}
}

// Malformed tags err as a contract violation.
func Malformed(err error) error {
	return &Error{Kind: KindMalformed, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindOther
}

// IsRateLimited reports whether err is tagged as rate limited.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// RetryAfter returns the retry hint in seconds, or 0 when none was given.
func RetryAfter(err error) int {
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Kind == KindRateLimited {
		return tagged.RetryAfter
	}
	return 0
}

// FromTelegram tags Telegram "429 Too Many Requests" responses as rate limited
// and returns every other error unchanged.
func FromTelegram(err error) error {
	if err == nil {
		return nil
	}
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return RateLimited(tooMany.RetryAfter, err)
	}
	return err
}
