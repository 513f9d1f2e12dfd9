package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	held, err := a.store.ListHeld()
	if err != nil {
		return fmt.Errorf("failed to list held documents: %w", err)
	}

	fmt.Printf("Corpus statistics:\n")
	fmt.Printf("  Documents:       %d\n", stats.TotalDocs)
	fmt.Printf("  Chunks:          %d\n", stats.TotalChunks)
	fmt.Printf("  Avg chunk terms: %.1f\n", stats.AvgChunkLen)
	fmt.Printf("  Held documents:  %d\n", len(held))
	fmt.Printf("  Index writes:    %d\n", stats.IndexGen)
	return nil
}
