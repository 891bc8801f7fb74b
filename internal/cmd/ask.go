package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/ailink"
	"github.com/feedlens/feedlens/internal/core/store"
	"github.com/feedlens/feedlens/internal/output"
)

var (
	askSubject string
	askTopK    int
	askOutput  string
)

// storeRetriever adapts the item store's cosine ranking to the answerer's
// retrieval contract.
type storeRetriever struct {
	db        *store.Store
	subjectID int64
}

func (r *storeRetriever) Retrieve(ctx context.Context, vector []float64, limit int) ([]ailink.Passage, error) {
	scored, err := r.db.NearestItems(ctx, r.subjectID, vector, limit)
	if err != nil {
		return nil, err
	}

	passages := make([]ailink.Passage, 0, len(scored))
	for _, hit := range scored {
		passages = append(passages, ailink.Passage{
			ID:    hit.Item.ID,
			Text:  hit.Item.Text,
			Score: hit.Score,
		})
	}
	return passages, nil
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from a subject's collected items",
	Long: `Answer a question grounded on a subject's collected items.

The question is embedded, the nearest stored items are retrieved by cosine
similarity, and the answer is generated from those passages only. Items
must have been collected with embedding enabled (collect --embed).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.TrimSpace(strings.Join(args, " "))

		format, err := output.ParseFormat(askOutput)
		if err != nil {
			return err
		}

		subject := strings.TrimSpace(askSubject)
		if subject == "" {
			return fmt.Errorf("--subject is required")
		}

		cfg, db, err := loadConfigAndStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		record, err := db.GetSubject(ctx, subject)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("subject %q not found; collect it first", subject)
		}

		answerer := &ailink.Answerer{
			Registry:  ailink.NewRegistry(cfg.AILink),
			Retriever: &storeRetriever{db: db, subjectID: record.ID},
			TopK:      askTopK,
		}

		answer, err := answerer.Answer(ctx, question)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(answer, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		fmt.Println(answer.Text)
		if verbose {
			fmt.Println()
			fmt.Printf("Grounded on %d passages:\n", len(answer.Passages))
			for i, passage := range answer.Passages {
				fmt.Printf("%d. [%.2f] %s\n", i+1, passage.Score, passage.Text)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askSubject, "subject", "", "Subject whose items to answer from (required)")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "Number of passages to retrieve (default 8)")
	askCmd.Flags().StringVar(&askOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
