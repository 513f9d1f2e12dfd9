package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"recall/internal/domain"
)

var (
	feedbackCorrectness float64
	feedbackPin         bool
	feedbackUnpin       bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <target-id>",
	Short: "Record feedback for a document or chunk",
	Long: `Record a correctness score or pin state for a document or chunk.
Feedback adjusts future rankings; pinned targets always lead results.

Examples:
  recall feedback doc-123 --correctness 1.0
  recall feedback chunk-abc --pin
  recall feedback chunk-abc --unpin`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().Float64Var(&feedbackCorrectness, "correctness", 0, "correctness score in [-1, 1]")
	feedbackCmd.Flags().BoolVar(&feedbackPin, "pin", false, "pin the target to the top of results")
	feedbackCmd.Flags().BoolVar(&feedbackUnpin, "unpin", false, "remove the pin")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	if feedbackPin && feedbackUnpin {
		return fmt.Errorf("--pin and --unpin are mutually exclusive")
	}
	if feedbackCorrectness < -1 || feedbackCorrectness > 1 {
		return fmt.Errorf("correctness must be in [-1, 1]")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	targetID := args[0]
	fb, exists := a.store.Lookup(targetID)
	if !exists {
		fb = domain.Feedback{TargetID: targetID}
	}
	fb.ReviewCount++

	if cmd.Flags().Changed("correctness") {
		v := feedbackCorrectness
		fb.Correctness = &v
	}
	if feedbackPin {
		fb.Pinned = true
	}
	if feedbackUnpin {
		fb.Pinned = false
	}

	if err := a.store.PutFeedback(fb); err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	fmt.Printf("Recorded feedback for %s\n", targetID)
	return nil
}
