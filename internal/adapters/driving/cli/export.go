package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

var (
	exportCase string
	exportJob  string
	exportFrom string
	exportTo   string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export documents with content and keywords as JSON",
	Long: `Export writes every matching document, joined with its content payload and
keyword links, as a JSON array. Downstream report renderers consume this
format directly.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportCase, "case", "", "Only documents of this parse case")
	exportCmd.Flags().StringVar(&exportJob, "job", "", "Only documents from this job")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Only documents created on or after this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Only documents created before this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if services == nil || services.Export == nil {
		return errors.New("export service not configured")
	}

	filter := driven.SearchFilter{CaseName: exportCase, JobID: exportJob}
	var err error
	if filter.From, err = parseDateFlag(exportFrom); err != nil {
		return err
	}
	if filter.To, err = parseDateFlag(exportTo); err != nil {
		return err
	}

	records, err := services.Export.Export(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	data, err := json.MarshalIndent(exportPayload(records), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if exportOut == "" {
		cmd.Print(string(data))
		return nil
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	cmd.Printf("Wrote %d record(s) to %s\n", len(records), exportOut)
	return nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t, nil
}

// exportRow is the serialised form of one export record.
type exportRow struct {
	ID               string         `json:"id"`
	SourceIdentifier string         `json:"source_identifier"`
	CaseName         string         `json:"case_name"`
	Confidence       float64        `json:"confidence"`
	Status           string         `json:"status"`
	ContentHash      string         `json:"content_hash"`
	JobID            string         `json:"job_id,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
	Content          map[string]any `json:"content"`
	Keywords         []exportTerm   `json:"keywords"`
}

type exportTerm struct {
	Text      string  `json:"text"`
	Category  string  `json:"category,omitempty"`
	Relevance float64 `json:"relevance"`
}

func exportPayload(records []driven.ExportRecord) []exportRow {
	rows := make([]exportRow, 0, len(records))
	for _, rec := range records {
		content := make(map[string]any, len(rec.Content.Payload))
		for name, value := range rec.Content.Payload {
			content[name] = value
		}

		terms := make([]exportTerm, 0, len(rec.Keywords))
		for _, link := range rec.Keywords {
			terms = append(terms, exportTerm{
				Text:      link.Keyword.Text,
				Category:  link.Keyword.Category,
				Relevance: link.Relevance,
			})
		}

		doc := rec.Document
		rows = append(rows, exportRow{
			ID:               doc.ID,
			SourceIdentifier: doc.SourceIdentifier,
			CaseName:         doc.CaseName,
			Confidence:       doc.Confidence,
			Status:           string(doc.Status),
			ContentHash:      doc.ContentHash,
			JobID:            doc.JobID,
			CreatedAt:        doc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt:        doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Content:          content,
			Keywords:         terms,
		})
	}
	return rows
}
