package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/ailink"
	"github.com/feedlens/feedlens/internal/config"
	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/engine"
	"github.com/feedlens/feedlens/internal/core/feed"
	"github.com/feedlens/feedlens/internal/core/store"
	"github.com/feedlens/feedlens/internal/metrics"
	"github.com/feedlens/feedlens/internal/observability"
	"github.com/feedlens/feedlens/internal/output"
)

var (
	collectProfile  string
	collectMaxItems int
	collectContent  string
	collectKeywords []string
	collectRange    string
	collectFrom     string
	collectTo       string
	collectEmbed    bool
	collectOutput   string
)

var collectCmd = &cobra.Command{
	Use:   "collect <subject>",
	Short: "Collect items from a subject's feed",
	Long: `Collect items from a subject's feed under a pacing profile.

The run is paced by a token bucket with jittered delays, backs off on
upstream failures, and trips a circuit breaker on repeated rate limiting.
Every run is recorded as a session; re-running is safe because items
dedupe by id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := output.ParseFormat(collectOutput)
		if err != nil {
			return err
		}

		cfg, db, err := loadConfigAndStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if strings.TrimSpace(cfg.Feed.BaseURL) == "" || strings.TrimSpace(cfg.Feed.Token) == "" {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid,
				"Feed credentials are not configured (set feed.base_url and feed.token)", nil)
		}

		profile, err := resolveProfile(collectProfile, cfg.Collector.Profile)
		if err != nil {
			return err
		}

		maxItems := collectMaxItems
		if maxItems <= 0 {
			maxItems = cfg.Collector.MaxItems
		}
		if maxItems <= 0 {
			maxItems = engine.RecommendedMaxItems(*profile)
		}
		if profile.MaxItemsCeiling > 0 && maxItems > profile.MaxItemsCeiling {
			observability.CLILogger.Warn("Clamping max items to profile ceiling",
				zap.Int("requested", maxItems),
				zap.Int("ceiling", profile.MaxItemsCeiling))
			maxItems = profile.MaxItemsCeiling
		}

		request := engine.CollectionRequest{
			Subject:       strings.TrimSpace(args[0]),
			ContentFilter: core.ContentTypeFilter(strings.TrimSpace(collectContent)),
			Keywords:      collectKeywords,
			MaxItems:      maxItems,
		}
		request.TimeRange, request.CustomRange, err = resolveTimeRange(collectRange, collectFrom, collectTo)
		if err != nil {
			return err
		}

		scope := pacingScope(cfg.Feed)

		// Honor any backoff a previous run recorded before touching upstream.
		pacing, err := db.GetPacingState(ctx, scope)
		if err != nil {
			return err
		}
		if err := waitOutPersistedBackoff(ctx, pacing); err != nil {
			return err
		}

		controller := engine.NewAdmissionController(*profile)
		controller.ConfigureBreaker(cfg.Collector.BreakerThreshold, cfg.Collector.BreakerResetWindow)
		if pacing != nil {
			// Requests earlier runs already spent in this hour count against
			// the budget.
			controller.SeedWindow(pacing.WindowStart, pacing.RequestCount)
		}

		collector := &engine.Collector{
			Feed: &feed.HTTPClient{
				BaseURL:  cfg.Feed.BaseURL,
				Token:    cfg.Feed.Token,
				Subject:  request.Subject,
				PageSize: cfg.Feed.PageSize,
				Client:   &http.Client{Timeout: cfg.Feed.Timeout},
			},
			Store:      db,
			Controller: controller,
			ChunkSize:  cfg.Collector.ChunkSize,
			OnWait: func(waited time.Duration) {
				metrics.RecordAdmissionWait(profile.Name, waited)
			},
			OnProgress: func(counters core.SessionCounters) {
				if counters.TotalProcessed%25 == 0 {
					observability.CLILogger.Debug("Collection progress",
						zap.Int("collected", counters.Collected),
						zap.Int("processed", counters.TotalProcessed))
				}
			},
		}

		observability.CLILogger.Info("Starting collection",
			zap.String("subject", request.Subject),
			zap.String("profile", profile.Name),
			zap.Int("max_items", maxItems))

		result, runErr := collector.Run(ctx, request)

		// Persist pacing state even when the run failed; the next invocation
		// inherits the backoff.
		if err := recordPacingState(ctx, db, scope, pacing, controller); err != nil {
			observability.CLILogger.Warn("Failed to persist pacing state", zap.Error(err))
		}

		session, sessionErr := latestSessionFor(ctx, db, request.Subject)
		if sessionErr != nil {
			observability.CLILogger.Warn("Failed to load session record", zap.Error(sessionErr))
		}
		if session != nil {
			metrics.RecordSession(session.Subject, session.Status == core.SessionCompleted)
			metrics.RecordItemsCollected(session.Subject, session.Counters.Collected)
		}

		if runErr != nil {
			if session != nil && format == output.FormatTable {
				fmt.Println(output.FormatRunSummary(session))
			}
			return runErr
		}

		if collectEmbed || cfg.Collector.EmbedItems {
			if err := embedCollectedItems(ctx, cfg, db, request.Subject, result.Counters.Collected); err != nil {
				observability.CLILogger.Warn("Embedding pass failed", zap.Error(err))
			}
		}

		if format == output.FormatJSON {
			rendered, err := output.FormatSession(format, session)
			if err != nil {
				return err
			}
			fmt.Println(rendered)
			return nil
		}

		fmt.Println(output.FormatRunSummary(session))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&collectProfile, "profile", "", "pacing profile: conservative|moderate|aggressive")
	collectCmd.Flags().IntVar(&collectMaxItems, "max-items", 0, "maximum items to collect (default from profile)")
	collectCmd.Flags().StringVar(&collectContent, "content", string(core.ContentAll), "content filter: all|originals|no-replies")
	collectCmd.Flags().StringSliceVar(&collectKeywords, "keyword", nil, "keep only items containing a keyword (repeatable)")
	collectCmd.Flags().StringVar(&collectRange, "range", string(core.RangeAll), "time range: all|day|week|month|custom")
	collectCmd.Flags().StringVar(&collectFrom, "from", "", "custom range start (YYYY-MM-DD)")
	collectCmd.Flags().StringVar(&collectTo, "to", "", "custom range end (YYYY-MM-DD)")
	collectCmd.Flags().BoolVar(&collectEmbed, "embed", false, "embed collected items for the ask command")
	collectCmd.Flags().StringVar(&collectOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}

func resolveProfile(flagValue, configValue string) (*core.RateLimitProfile, error) {
	name := strings.TrimSpace(flagValue)
	if name == "" {
		name = strings.TrimSpace(configValue)
	}
	if name == "" {
		name = core.DefaultProfile
	}

	profile, ok := core.FindProfile(name)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(core.ProfileNames(), ", "))
	}
	return profile, nil
}

func resolveTimeRange(rangeValue, fromValue, toValue string) (core.TimeRange, *core.DateRange, error) {
	timeRange := core.TimeRange(strings.TrimSpace(rangeValue))
	if timeRange == "" {
		timeRange = core.RangeAll
	}

	switch timeRange {
	case core.RangeAll, core.RangeDay, core.RangeWeek, core.RangeMonth:
		return timeRange, nil, nil
	case core.RangeCustom:
		from, err := time.Parse("2006-01-02", strings.TrimSpace(fromValue))
		if err != nil {
			return "", nil, fmt.Errorf("invalid --from date: %w", err)
		}
		to, err := time.Parse("2006-01-02", strings.TrimSpace(toValue))
		if err != nil {
			return "", nil, fmt.Errorf("invalid --to date: %w", err)
		}
		// Make the end date inclusive.
		to = to.Add(24*time.Hour - time.Nanosecond)
		return timeRange, &core.DateRange{From: from, To: to}, nil
	default:
		return "", nil, fmt.Errorf("unknown time range %q", rangeValue)
	}
}

// pacingScope keys the persisted pacing state: explicit config wins, then the
// feed host.
func pacingScope(cfg config.FeedConfig) string {
	if scope := strings.TrimSpace(cfg.Scope); scope != "" {
		return scope
	}
	if parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL)); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return "default"
}

// waitOutPersistedBackoff sleeps through a backoff window a previous run
// recorded after a 429.
func waitOutPersistedBackoff(ctx context.Context, pacing *core.PacingState) error {
	if pacing == nil || pacing.BackoffUntil == nil {
		return nil
	}

	remaining := time.Until(*pacing.BackoffUntil)
	if remaining <= 0 {
		return nil
	}

	observability.CLILogger.Info("Honoring backoff recorded by a previous run",
		zap.Duration("remaining", remaining))

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recordPacingState merges this run's controller outcome into the persisted
// per-scope state.
func recordPacingState(ctx context.Context, db *store.Store, scope string, previous *core.PacingState, controller *engine.AdmissionController) error {
	now := time.Now().UTC()

	// The controller owns the budget window (seeded from the previous state
	// before the run); markers carry over from the prior record.
	windowStart, windowCount := controller.Window()
	if windowStart.IsZero() {
		windowStart = now
	}
	state := core.PacingState{WindowStart: windowStart, RequestCount: windowCount}
	if previous != nil {
		state.Last429At = previous.Last429At
		state.BackoffUntil = previous.BackoffUntil
	}

	for _, entry := range controller.History() {
		metrics.RecordFeedRequest(entry.Success)
		if entry.ResponseCode == http.StatusTooManyRequests {
			at := entry.At
			state.Last429At = &at
		}
	}

	status := controller.Status()
	if status.CircuitBreakerOpen && status.BreakerResetAt != nil {
		metrics.RecordBreakerOpen(status.Profile)
		state.BackoffUntil = status.BreakerResetAt
	} else if state.BackoffUntil != nil && !state.BackoffUntil.After(now) {
		state.BackoffUntil = nil
	}

	return db.UpdatePacingState(ctx, scope, &state)
}

func latestSessionFor(ctx context.Context, db *store.Store, subject string) (*core.CollectionSession, error) {
	sessions, err := db.ListSessions(ctx, store.SessionQuery{Subject: subject, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// embedCollectedItems backfills embeddings for the subject's most recent
// unembedded items, covering at least everything this run stored.
func embedCollectedItems(ctx context.Context, cfg *config.Config, db *store.Store, subject string, collected int) error {
	if collected <= 0 {
		return nil
	}

	record, err := db.GetSubject(ctx, subject)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("subject %q not found", subject)
	}

	items, err := db.ItemsMissingEmbedding(ctx, record.ID, collected)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	registry := ailink.NewRegistry(cfg.AILink)
	vectors, err := registry.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d items", len(vectors), len(items))
	}

	for i, item := range items {
		if err := db.SetEmbedding(ctx, item.ID, vectors[i]); err != nil {
			return err
		}
	}

	observability.CLILogger.Info("Embedded collected items", zap.Int("count", len(items)))
	return nil
}
