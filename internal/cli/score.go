package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"speak-assessment-service/internal/scoring"

	"github.com/spf13/cobra"
)

// NewScoreCmd scores a transcript against a reference sentence offline.
func NewScoreCmd() *cobra.Command {
	var (
		reference string
		spoken    string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a spoken transcript against a reference sentence",
		Example: `  speak-assessment score --reference "The quick brown fox" --spoken "the quick brown dog"
  speak-assessment score --reference "Hello, world." --spoken "hello world" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc := scoring.Accuracy(reference, spoken)
			words := scoring.WordDiff(reference, spoken)
			out := cmd.OutOrStdout()

			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"accuracyPercent": acc,
					"level":           scoring.Level(acc),
					"words":           words,
				})
			}

			marked := make([]string, len(words))
			for i, w := range words {
				if w.Matched {
					marked[i] = w.Word
				} else {
					marked[i] = "[" + w.Word + "]"
				}
			}
			fmt.Fprintf(out, "accuracy: %d%% (%s)\n", acc, scoring.Level(acc))
			fmt.Fprintf(out, "words:    %s\n", strings.Join(marked, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "reference sentence")
	cmd.Flags().StringVar(&spoken, "spoken", "", "recognized transcript")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}
