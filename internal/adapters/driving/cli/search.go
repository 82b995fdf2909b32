package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

var (
	filterCase   string
	filterStatus string
	filterJob    string
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search documents by source identifier or keyword",
	Long: `Search matches the query against document source identifiers and linked
keywords, case-insensitively. Filters narrow the result set further.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&filterCase, "case", "", "Filter by parse case name")
	searchCmd.Flags().StringVar(&filterStatus, "status", "", "Filter by document status (complete, partial)")
	searchCmd.Flags().StringVar(&filterJob, "job", "", "Filter by ingesting job id")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results")

	rootCmd.AddCommand(searchCmd)
}

// searchFilter builds a store filter from the shared flag values.
func searchFilter(limit int) driven.SearchFilter {
	return driven.SearchFilter{
		CaseName: filterCase,
		Status:   domain.DocumentStatus(filterStatus),
		JobID:    filterJob,
		Limit:    limit,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	docs, err := services.Documents.Search(cmd.Context(), args[0], searchFilter(searchLimit))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No matches.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("%s  %-20s %-10s %s\n", doc.ID, doc.CaseName, doc.Status, doc.SourceIdentifier)
	}
	cmd.Printf("\n%d match(es)\n", len(docs))
	return nil
}
