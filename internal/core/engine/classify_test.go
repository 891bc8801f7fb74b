package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core/feed"
)

func TestClassifyByCode(t *testing.T) {
	for _, code := range []int{429, 503, 401, 403} {
		err := &feed.Error{StatusCode: code, Message: "nope"}
		require.Equal(t, FailureRateLimit, Classify(err), "code %d", code)
	}

	require.Equal(t, FailureUpstream, Classify(&feed.Error{StatusCode: 500, Message: "internal"}))
	require.Equal(t, FailureUpstream, Classify(&feed.Error{StatusCode: 404, Message: "gone"}))
}

func TestClassifyByPhrase(t *testing.T) {
	cases := []string{
		"Rate limit exceeded",
		"TOO MANY REQUESTS from this client",
		"account temporarily locked",
		"please try again later",
	}
	for _, message := range cases {
		err := &feed.Error{StatusCode: 500, Message: message}
		require.Equal(t, FailureRateLimit, Classify(err), "message %q", message)
	}
}

func TestClassifyUntagged(t *testing.T) {
	require.Equal(t, FailureNone, Classify(nil))
	// Untagged errors carry no structure and are never rate-limit-classified,
	// even when the text matches the vocabulary.
	require.Equal(t, FailureUpstream, Classify(errors.New("rate limit exceeded")))
}

func TestClassifyWrapped(t *testing.T) {
	inner := &feed.Error{StatusCode: 429, Message: "slow down"}
	wrapped := errors.Join(errors.New("fetch page"), inner)
	require.Equal(t, FailureRateLimit, Classify(wrapped))
}
