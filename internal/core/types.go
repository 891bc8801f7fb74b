package core

import "time"

// SessionStatus tracks the lifecycle of one collection run.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// ContentTypeFilter selects which kinds of feed items a session keeps.
type ContentTypeFilter string

const (
	ContentAll       ContentTypeFilter = "all"
	ContentOriginals ContentTypeFilter = "originals"
	ContentNoReplies ContentTypeFilter = "no-replies"
)

// TimeRange selects a relative collection window.
type TimeRange string

const (
	RangeAll    TimeRange = "all"
	RangeDay    TimeRange = "day"
	RangeWeek   TimeRange = "week"
	RangeMonth  TimeRange = "month"
	RangeCustom TimeRange = "custom"
)

// DateRange is an explicit window used when TimeRange is RangeCustom.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Engagement carries upstream interaction counts for an item.
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// CollectedItem is one normalized feed item produced by a collection run.
// Ownership transfers to the store on insert.
type CollectedItem struct {
	ID         string         `json:"id"`
	SubjectID  int64          `json:"subject_id"`
	Text       string         `json:"text"`
	CreatedAt  time.Time      `json:"created_at"`
	IsReshare  bool           `json:"is_reshare"`
	IsReply    bool           `json:"is_reply"`
	Engagement Engagement     `json:"engagement"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SessionCounters accumulates per-category outcomes for a run.
// Updated by a single writer (the collector loop).
type SessionCounters struct {
	Collected       int `json:"collected"`
	TotalProcessed  int `json:"total_processed"`
	ContentFiltered int `json:"content_filtered"`
	DateFiltered    int `json:"date_filtered"`
	KeywordFiltered int `json:"keyword_filtered"`
	Duplicates      int `json:"duplicates"`
}

// CollectionSession is the auditable record of one collection run.
type CollectionSession struct {
	ID            string            `json:"id"`
	SubjectID     int64             `json:"subject_id"`
	Subject       string            `json:"subject"`
	ContentFilter ContentTypeFilter `json:"content_filter"`
	Keywords      []string          `json:"keywords,omitempty"`
	TimeRange     TimeRange         `json:"time_range"`
	CustomRange   *DateRange        `json:"custom_range,omitempty"`
	MaxItems      int               `json:"max_items"`
	Counters      SessionCounters   `json:"counters"`
	Status        SessionStatus     `json:"status"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// SubjectRecord identifies a feed subject in the store.
type SubjectRecord struct {
	ID          int64     `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// RequestLog is one entry in the controller's bounded request history.
// It feeds status reporting only, never admission decisions.
type RequestLog struct {
	At           time.Time `json:"at"`
	Success      bool      `json:"success"`
	ResponseCode int       `json:"response_code,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
}

// RateLimitStatus is a read-only snapshot of the admission controller.
type RateLimitStatus struct {
	Profile             string     `json:"profile"`
	Tokens              float64    `json:"tokens"`
	BurstCapacity       float64    `json:"burst_capacity"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	BackoffAttempts     int        `json:"backoff_attempts"`
	CircuitBreakerOpen  bool       `json:"circuit_breaker_open"`
	BreakerResetAt      *time.Time `json:"breaker_reset_at,omitempty"`
	RecentRequests      int        `json:"recent_requests"`
	RecentFailures      int        `json:"recent_failures"`
}

// SessionUpdate carries the fields a status transition may set.
type SessionUpdate struct {
	Counters     *SessionCounters
	ErrorMessage string
	CompletedAt  *time.Time
}

// PacingState is the persisted per-scope politeness marker. A 429 observed in
// one run sets BackoffUntil so the next process invocation waits it out.
type PacingState struct {
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}
