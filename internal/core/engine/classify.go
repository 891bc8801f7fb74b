package engine

import (
	"strings"

	"github.com/feedlens/feedlens/internal/core/feed"
)

// FailureClass is the engine's view of an upstream failure.
type FailureClass string

const (
	// FailureNone means the request succeeded.
	FailureNone FailureClass = "none"
	// FailureUpstream is a non-throttling upstream error. It counts toward
	// consecutive failures but does not advance backoff.
	FailureUpstream FailureClass = "upstream"
	// FailureRateLimit is a throttling signal. It advances backoff and can
	// trip the circuit breaker.
	FailureRateLimit FailureClass = "rate_limit"
)

// rateLimitCodes are response codes treated as throttling signals. 401/403
// are included because upstream suspensions surface as auth failures.
var rateLimitCodes = map[int]struct{}{
	429: {},
	503: {},
	401: {},
	403: {},
}

// rateLimitPhrases is the fixed vocabulary matched case-insensitively
// against failure messages.
var rateLimitPhrases = []string{
	"rate limit",
	"too many requests",
	"temporarily locked",
	"try again later",
	"quota exceeded",
	"slow down",
	"suspended",
}

// Classify maps an upstream failure to its class. Only the tagged feed.Error
// shape carries enough structure to be rate-limit-classified; anything else
// is a plain upstream failure.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}

	fe, ok := feed.AsError(err)
	if !ok {
		return FailureUpstream
	}

	if IsRateLimitCode(fe.StatusCode) {
		return FailureRateLimit
	}

	message := strings.ToLower(fe.Message)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(message, phrase) {
			return FailureRateLimit
		}
	}

	return FailureUpstream
}

// IsRateLimitCode reports whether a response code is in the throttling set.
func IsRateLimitCode(code int) bool {
	_, ok := rateLimitCodes[code]
	return ok
}
