package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var heldCmd = &cobra.Command{
	Use:   "held",
	Short: "Manage documents held by the quality gate",
}

var heldListCmd = &cobra.Command{
	Use:   "list",
	Short: "List held documents",
	RunE:  runHeldList,
}

var heldPromoteCmd = &cobra.Command{
	Use:   "promote <doc-id>",
	Short: "Promote a held document into the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeldPromote,
}

func init() {
	rootCmd.AddCommand(heldCmd)
	heldCmd.AddCommand(heldListCmd)
	heldCmd.AddCommand(heldPromoteCmd)
}

func runHeldList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.store.ListHeld()
	if err != nil {
		return fmt.Errorf("failed to list held documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No held documents.")
		return nil
	}

	fmt.Printf("%d held documents:\n\n", len(docs))
	for _, doc := range docs {
		scores, err := a.store.GetQuality(doc.ID)
		flags := ""
		if err == nil && scores.NeedsReview {
			flags = " [needs review]"
		}
		preview := doc.Text
		if i := strings.IndexByte(preview, '\n'); i >= 0 {
			preview = preview[:i]
		}
		if len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		if err == nil {
			fmt.Printf("  %s  %-8s signalness=%.2f%s\n      %s\n", doc.ID, doc.Type, scores.Signalness, flags, preview)
		} else {
			fmt.Printf("  %s  %-8s\n      %s\n", doc.ID, doc.Type, preview)
		}
	}
	return nil
}

func runHeldPromote(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	receipt, err := a.ingester.PromoteHeld(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("promotion failed: %w", err)
	}

	fmt.Printf("Promoted %s: %d chunks indexed\n", receipt.DocID, len(receipt.ChunkIDs))
	return nil
}
