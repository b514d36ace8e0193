package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI marks provider errors that retrying cannot fix: bad
// credentials, exhausted billing or quota.
var ErrFatalAPI = errors.New("fatal API error")

var fatalPatterns = []string{
	"credit balance",
	"quota exceeded",
	"insufficient_quota",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"incorrect api key",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like a non-retryable provider
// error. Rate limits and timeouts are transient and do not match.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalAPI) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return false
	}
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal errors with ErrFatalAPI and passes others through.
func wrapFatalError(err error) error {
	if err == nil || errors.Is(err, ErrFatalAPI) {
		return err
	}
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}

// IsRetryable reports whether an operation failing with err may succeed
// when attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !isFatalAPIError(err)
}
