package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchQuery   string
	searchTopK    int
	searchJSON    bool
	searchFilters []string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the indexed corpus",
	Long: `Search with hybrid lexical/semantic retrieval, MMR diversification
and optional cross-encoder reranking.

Examples:
  recall search -q "kitchen remodel quote"
  recall search -q "budget approval" --filter email --top-k 5 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().StringSliceVar(&searchFilters, "filter", nil, "restrict to document types (repeatable)")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := a.searcher.Search(cmd.Context(), searchQuery, topK, searchFilters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), searchQuery)
	for i, r := range results {
		marker := ""
		if r.Pinned {
			marker = " [pinned]"
		}
		title := r.SectionTitle
		if title == "" {
			title = string(r.Type)
		}
		fmt.Printf("--- [%d] %s (doc %s, score %.3f)%s ---\n", i+1, title, r.DocID, r.Score, marker)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
