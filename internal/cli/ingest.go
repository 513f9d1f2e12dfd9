package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a file or directory into the corpus",
	Long: `Ingest documents through the chunking and quality-gate pipeline.
Passing documents are indexed; low-signal ones are held for review.

Examples:
  recall ingest ./notes          # Ingest a directory
  recall ingest meeting.md       # Ingest a single file`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if !info.IsDir() {
		receipt, err := a.ingester.IngestFile(ctx, path, info.ModTime())
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		switch {
		case receipt.Held:
			fmt.Printf("Held for review: %s (doc %s)\n", path, receipt.DocID)
		default:
			fmt.Printf("Indexed %s: doc %s, %d chunks\n", path, receipt.DocID, len(receipt.ChunkIDs))
		}
		return nil
	}

	total, err := a.ingester.NumFiles(path)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if total == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	fmt.Printf("Ingesting %d files from %s...\n", total, path)
	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	start := time.Now()
	result, err := a.ingester.IngestDir(ctx, path, func() { bar.Add(1) })
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("\nIngestion complete in %s:\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Indexed: %d\n", result.Indexed)
	fmt.Printf("  Held:    %d\n", result.Held)
	fmt.Printf("  Failed:  %d\n", result.Failed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
