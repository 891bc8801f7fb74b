package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/feed"
)

// defaultChunkSize bounds the in-memory batch between persistence handoffs.
const defaultChunkSize = 50

// CollectorStore is the persistence surface the collector needs. Duplicate
// inserts are not errors: InsertItems reports how many rows actually landed.
type CollectorStore interface {
	UpsertSubject(ctx context.Context, handle, displayName string) (*core.SubjectRecord, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	InsertItems(ctx context.Context, items []core.CollectedItem) (int, error)
	CreateSession(ctx context.Context, session *core.CollectionSession) error
	UpdateSessionStatus(ctx context.Context, id string, status core.SessionStatus, update core.SessionUpdate) error
	LatestRunningSession(ctx context.Context, subjectID int64) (*core.CollectionSession, error)
}

// CollectionRequest configures one collection run.
type CollectionRequest struct {
	Subject       string
	ContentFilter core.ContentTypeFilter
	Keywords      []string
	TimeRange     core.TimeRange
	CustomRange   *core.DateRange
	MaxItems      int
}

// CollectionResult is the upward-facing outcome of a run.
type CollectionResult struct {
	SessionID string               `json:"session_id"`
	Counters  core.SessionCounters `json:"counters"`
}

// Collector drives one bounded, filtered, resumable pull from the upstream
// feed: a single sequential pull-filter-store loop paced by the admission
// controller. Counters have a single writer (the loop); progress observers
// get read-only snapshots.
type Collector struct {
	Feed       feed.Client
	Store      CollectorStore
	Controller *AdmissionController
	Clock      func() time.Time
	ChunkSize  int
	// OnProgress, when set, receives a counter snapshot after every
	// processed item.
	OnProgress func(core.SessionCounters)
	// OnWait, when set, receives the time spent waiting for each
	// admission grant.
	OnWait func(time.Duration)
}

// Run executes a collection session. The session record is finalized exactly
// once even on error or cancellation paths; pre-loop failures after the
// record exists finalize it as failed, so every run with a resolvable
// subject leaves a terminal audit record. Errors escaping the loop are
// returned to the caller after best-effort finalization.
func (c *Collector) Run(ctx context.Context, req CollectionRequest) (*CollectionResult, error) {
	if c == nil || c.Feed == nil || c.Store == nil || c.Controller == nil {
		return nil, errors.New("collector is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		// No subject means no row to hang an audit record on.
		return nil, errors.New("subject is required")
	}
	if req.ContentFilter == "" {
		req.ContentFilter = core.ContentAll
	}
	if req.TimeRange == "" {
		req.TimeRange = core.RangeAll
	}

	subject, err := c.Store.UpsertSubject(ctx, req.Subject, "")
	if err != nil {
		return nil, fmt.Errorf("upsert subject: %w", err)
	}

	session := &core.CollectionSession{
		ID:            uuid.New().String(),
		SubjectID:     subject.ID,
		Subject:       subject.Handle,
		ContentFilter: req.ContentFilter,
		Keywords:      req.Keywords,
		TimeRange:     req.TimeRange,
		CustomRange:   req.CustomRange,
		MaxItems:      req.MaxItems,
		Status:        core.SessionPending,
		StartedAt:     c.now(),
	}

	if err := c.Store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := validateRequest(&req); err != nil {
		c.finalize(session, core.SessionCounters{}, err)
		return nil, err
	}

	if err := c.Store.UpdateSessionStatus(ctx, session.ID, core.SessionRunning, core.SessionUpdate{}); err != nil {
		err = fmt.Errorf("mark session running: %w", err)
		c.finalize(session, core.SessionCounters{}, err)
		return nil, err
	}
	session.Status = core.SessionRunning

	counters, displayName, runErr := c.loop(ctx, req, subject.ID)

	if displayName != "" {
		// Subject metadata refresh is best-effort; the run outcome wins.
		_, _ = c.Store.UpsertSubject(ctx, subject.Handle, displayName)
	}

	c.finalize(session, counters, runErr)

	if runErr != nil {
		return nil, runErr
	}

	return &CollectionResult{SessionID: session.ID, Counters: counters}, nil
}

// loop is the sequential pull-filter-store cycle. It returns the final
// counters, the subject display name if the feed revealed one, and the error
// that ended the run (nil on normal termination).
func (c *Collector) loop(ctx context.Context, req CollectionRequest, subjectID int64) (core.SessionCounters, string, error) {
	var (
		counters    core.SessionCounters
		batch       []core.CollectedItem
		displayName string
	)

	keywords := lowerKeywords(req.Keywords)
	window, hasWindow := c.dateWindow(req)
	chunkSize := c.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		duplicates, err := c.persist(ctx, batch)
		counters.Duplicates += duplicates
		batch = batch[:0]
		return err
	}

	for counters.Collected < req.MaxItems {
		waited, err := c.Controller.WaitForPermission(ctx)
		if err != nil {
			_ = flush()
			return counters, displayName, fmt.Errorf("collection canceled: %w", err)
		}
		if c.OnWait != nil {
			c.OnWait(waited)
		}

		item, err := c.Feed.Next(ctx)
		if err != nil {
			if errors.Is(err, feed.ErrEndOfFeed) {
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				_ = flush()
				return counters, displayName, fmt.Errorf("collection canceled: %w", err)
			}

			// Recorded failures do not abort the run; the controller's
			// backoff and breaker absorb the pressure on the next wait.
			code := 0
			if fe, ok := feed.AsError(err); ok {
				code = fe.StatusCode
			}
			c.Controller.RecordRequest(false, code, err)
			continue
		}

		c.Controller.RecordRequest(true, 200, nil)
		counters.TotalProcessed++

		if displayName == "" && item.AuthorName != "" {
			displayName = item.AuthorName
		}

		switch {
		case rejectedByContentFilter(req.ContentFilter, item):
			counters.ContentFiltered++
		case hasWindow && !inWindow(item.CreatedAt, window):
			counters.DateFiltered++
		case len(keywords) > 0 && !matchesKeywords(item.Text, keywords):
			counters.KeywordFiltered++
		default:
			batch = append(batch, c.normalize(item, subjectID))
			counters.Collected++
		}

		if c.OnProgress != nil {
			c.OnProgress(counters)
		}

		if len(batch) >= chunkSize {
			if err := flush(); err != nil {
				return counters, displayName, err
			}
		}
	}

	if err := flush(); err != nil {
		return counters, displayName, err
	}

	return counters, displayName, nil
}

// persist hands a batch to the store: existence-check first, then insert.
// Rows skipped either way count as duplicates, never as errors.
func (c *Collector) persist(ctx context.Context, batch []core.CollectedItem) (int, error) {
	fresh := make([]core.CollectedItem, 0, len(batch))
	duplicates := 0

	for _, item := range batch {
		exists, err := c.Store.ExistsByID(ctx, item.ID)
		if err != nil {
			return duplicates, fmt.Errorf("existence check: %w", err)
		}
		if exists {
			duplicates++
			continue
		}
		fresh = append(fresh, item)
	}

	if len(fresh) == 0 {
		return duplicates, nil
	}

	inserted, err := c.Store.InsertItems(ctx, fresh)
	if err != nil {
		return duplicates, fmt.Errorf("insert items: %w", err)
	}

	// Rows the insert skipped raced an earlier run; count them as duplicates.
	duplicates += len(fresh) - inserted
	return duplicates, nil
}

// finalize writes the terminal session record exactly once. If the direct
// update fails after a run error, it falls back to marking the most recent
// running session for the subject (best-effort, not transactional).
func (c *Collector) finalize(session *core.CollectionSession, counters core.SessionCounters, runErr error) {
	if session.Status.Terminal() {
		return
	}

	// The run itself may have been canceled; finalization gets its own
	// short-lived context so the record still lands.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := core.SessionCompleted
	message := ""
	if runErr != nil {
		status = core.SessionFailed
		message = runErr.Error()
	}

	completedAt := c.now()
	update := core.SessionUpdate{
		Counters:     &counters,
		ErrorMessage: message,
		CompletedAt:  &completedAt,
	}

	if err := c.Store.UpdateSessionStatus(ctx, session.ID, status, update); err != nil {
		if latest, lookupErr := c.Store.LatestRunningSession(ctx, session.SubjectID); lookupErr == nil && latest != nil {
			_ = c.Store.UpdateSessionStatus(ctx, latest.ID, core.SessionFailed, update)
		}
		return
	}

	session.Status = status
	session.Counters = counters
	session.CompletedAt = &completedAt
	session.ErrorMessage = message
}

// normalize collapses whitespace and fixes the metadata shape before the
// item enters the batch.
func (c *Collector) normalize(item *feed.Item, subjectID int64) core.CollectedItem {
	return core.CollectedItem{
		ID:        item.ID,
		SubjectID: subjectID,
		Text:      strings.Join(strings.Fields(item.Text), " "),
		CreatedAt: item.CreatedAt.UTC(),
		IsReshare: item.IsReshare,
		IsReply:   item.IsReply,
		Engagement: core.Engagement{
			Likes:   item.Likes,
			Reposts: item.Reposts,
			Replies: item.Replies,
		},
		Metadata: item.Raw,
	}
}

func (c *Collector) dateWindow(req CollectionRequest) (core.DateRange, bool) {
	now := c.now()
	switch req.TimeRange {
	case core.RangeDay:
		return core.DateRange{From: now.Add(-24 * time.Hour), To: now}, true
	case core.RangeWeek:
		return core.DateRange{From: now.Add(-7 * 24 * time.Hour), To: now}, true
	case core.RangeMonth:
		return core.DateRange{From: now.Add(-30 * 24 * time.Hour), To: now}, true
	case core.RangeCustom:
		if req.CustomRange != nil {
			return *req.CustomRange, true
		}
		return core.DateRange{}, false
	default:
		return core.DateRange{}, false
	}
}

func (c *Collector) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func validateRequest(req *CollectionRequest) error {
	if req.MaxItems <= 0 {
		return errors.New("max items must be positive")
	}
	if req.TimeRange == core.RangeCustom {
		if req.CustomRange == nil {
			return errors.New("custom time range requires an explicit date range")
		}
		if !req.CustomRange.To.After(req.CustomRange.From) {
			return errors.New("custom date range end must be after start")
		}
	}
	return nil
}

func rejectedByContentFilter(filter core.ContentTypeFilter, item *feed.Item) bool {
	switch filter {
	case core.ContentOriginals:
		return item.IsReshare || item.IsReply
	case core.ContentNoReplies:
		return item.IsReply
	default:
		return false
	}
}

func inWindow(t time.Time, window core.DateRange) bool {
	return !t.Before(window.From) && !t.After(window.To)
}

func lowerKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			out = append(out, keyword)
		}
	}
	return out
}

func matchesKeywords(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
