package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect and manage stored documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one document's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [id]",
	Short: "Print a document's canonical fields as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentKeywordsCmd = &cobra.Command{
	Use:   "keywords [id]",
	Short: "List a document's keywords, strongest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentKeywords,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document with its content and keywords",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentListLimit int

func init() {
	documentListCmd.Flags().IntVar(&documentListLimit, "limit", 50, "Maximum documents to list")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentKeywordsCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	docs, err := services.Documents.Search(cmd.Context(), "", searchFilter(documentListLimit))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents stored.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("%s  %-20s %-10s %s\n", doc.ID, doc.CaseName, doc.Status, doc.SourceIdentifier)
	}
	cmd.Printf("\n%d document(s)\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	doc, err := services.Documents.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("ID:        %s\n", doc.ID)
	cmd.Printf("Source:    %s\n", doc.SourceIdentifier)
	cmd.Printf("Case:      %s\n", doc.CaseName)
	cmd.Printf("Status:    %s\n", doc.Status)
	cmd.Printf("Hash:      %s\n", doc.ContentHash)
	cmd.Printf("Job:       %s\n", doc.JobID)
	cmd.Printf("Created:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Updated:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	content, err := services.Documents.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	data, err := json.MarshalIndent(content.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runDocumentKeywords(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	links, err := services.Documents.GetKeywords(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get keywords: %w", err)
	}
	if len(links) == 0 {
		cmd.Println("No keywords recorded.")
		return nil
	}

	for _, link := range links {
		category := link.Keyword.Category
		if category == "" {
			category = "-"
		}
		cmd.Printf("%-30s %.4f  %s\n", link.Keyword.Text, link.Relevance, category)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	if err := services.Documents.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
