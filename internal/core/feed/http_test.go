package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientPagesThroughFeed(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/feed", r.URL.Path)
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.Equal(t, "gopher.example", r.URL.Query().Get("subject"))

		cursor := r.URL.Query().Get("cursor")
		requests = append(requests, cursor)

		w.Header().Set("Content-Type", "application/json")
		switch cursor {
		case "":
			fmt.Fprint(w, `{"items":[{"id":"a","text":"first"},{"id":"b","text":"second"}],"next_cursor":"page-2"}`)
		case "page-2":
			fmt.Fprint(w, `{"items":[{"id":"c","text":"third","is_reply":true,"likes":4}],"next_cursor":""}`)
		default:
			t.Fatalf("unexpected cursor %q", cursor)
		}
	}))
	defer srv.Close()

	client := &HTTPClient{
		BaseURL:  srv.URL,
		Token:    "token-123",
		Subject:  "gopher.example",
		PageSize: 2,
		Client:   srv.Client(),
	}

	var ids []string
	for {
		item, err := client.Next(context.Background())
		if err == ErrEndOfFeed {
			break
		}
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Equal(t, []string{"", "page-2"}, requests, "second page fetched with the returned cursor")

	// Exhausted clients keep reporting end of feed without new requests.
	_, err := client.Next(context.Background())
	require.ErrorIs(t, err, ErrEndOfFeed)
	require.Len(t, requests, 2)
}

func TestHTTPClientPropagatesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer srv.Close()

	client := &HTTPClient{BaseURL: srv.URL, Token: "t", Subject: "s", Client: srv.Client()}

	_, err := client.Next(context.Background())
	require.Error(t, err)

	fe, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	require.Contains(t, fe.Message, "slow down")
}

func TestHTTPClientRequiresCredentials(t *testing.T) {
	client := &HTTPClient{BaseURL: "https://feeds.example.com", Subject: "s"}

	_, err := client.Next(context.Background())
	fe, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, fe.StatusCode)
}

func TestHTTPClientRejectsBadBaseURL(t *testing.T) {
	client := &HTTPClient{BaseURL: "not a url", Token: "t", Subject: "s"}

	_, err := client.Next(context.Background())
	fe, ok := AsError(err)
	require.True(t, ok)
	require.Zero(t, fe.StatusCode)
}

func TestHTTPClientRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer srv.Close()

	client := &HTTPClient{BaseURL: srv.URL, Token: "t", Subject: "s", Client: srv.Client()}

	_, err := client.Next(context.Background())
	fe, ok := AsError(err)
	require.True(t, ok)
	require.Contains(t, fe.Message, "decode feed response")
}

func TestHTTPClientEmptyFirstPageEndsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(feedPage{}))
	}))
	defer srv.Close()

	client := &HTTPClient{BaseURL: srv.URL, Token: "t", Subject: "s", Client: srv.Client()}

	_, err := client.Next(context.Background())
	require.ErrorIs(t, err, ErrEndOfFeed)
}
