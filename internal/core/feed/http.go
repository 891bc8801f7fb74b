package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient pulls a subject's feed page by page from a JSON endpoint and
// yields items one at a time. It authenticates with a bearer token supplied
// out of band and converts every failure into the tagged *Error shape.
type HTTPClient struct {
	BaseURL  string
	Token    string
	Subject  string
	PageSize int
	Client   *http.Client

	cursor string
	buffer []Item
	done   bool
}

const defaultPageSize = 50

type feedPage struct {
	Items []struct {
		ID        string         `json:"id"`
		Text      string         `json:"text"`
		CreatedAt time.Time      `json:"created_at"`
		IsReshare bool           `json:"is_reshare"`
		IsReply   bool           `json:"is_reply"`
		Likes     int            `json:"likes"`
		Reposts   int            `json:"reposts"`
		Replies   int            `json:"replies"`
		Author    string         `json:"author"`
		Raw       map[string]any `json:"raw,omitempty"`
	} `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// Next returns the next buffered item, fetching the next page when the
// buffer is empty. It returns ErrEndOfFeed once the upstream cursor runs out.
func (c *HTTPClient) Next(ctx context.Context) (*Item, error) {
	if c == nil {
		return nil, &Error{Message: "feed client is not configured"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if len(c.buffer) == 0 {
		if c.done {
			return nil, ErrEndOfFeed
		}
		if err := c.fetchPage(ctx); err != nil {
			return nil, err
		}
		if len(c.buffer) == 0 {
			return nil, ErrEndOfFeed
		}
	}

	item := c.buffer[0]
	c.buffer = c.buffer[1:]
	return &item, nil
}

func (c *HTTPClient) fetchPage(ctx context.Context) error {
	if strings.TrimSpace(c.Token) == "" {
		return &Error{StatusCode: http.StatusUnauthorized, Message: "missing feed credentials"}
	}

	base, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || base.Host == "" {
		return &Error{Message: fmt.Sprintf("invalid feed base url %q", c.BaseURL), Err: err}
	}

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := url.Values{}
	query.Set("subject", c.Subject)
	query.Set("limit", fmt.Sprint(pageSize))
	if c.cursor != "" {
		query.Set("cursor", c.cursor)
	}

	endpoint := base.ResolveReference(&url.URL{Path: "/v1/feed", RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return &Error{Message: "build feed request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.Token))
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &Error{Message: "feed request failed", Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "read feed response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(truncate(string(body), 200))}
	}

	var page feedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "decode feed response", Err: err}
	}

	for _, raw := range page.Items {
		c.buffer = append(c.buffer, Item{
			ID:         raw.ID,
			Text:       raw.Text,
			CreatedAt:  raw.CreatedAt,
			IsReshare:  raw.IsReshare,
			IsReply:    raw.IsReply,
			Likes:      raw.Likes,
			Reposts:    raw.Reposts,
			Replies:    raw.Replies,
			AuthorName: raw.Author,
			Raw:        raw.Raw,
		})
	}

	c.cursor = page.NextCursor
	if c.cursor == "" {
		c.done = true
	}

	return nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
