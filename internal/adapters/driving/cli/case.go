package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/radnorm/radnorm/internal/core/domain"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Manage parse case definitions",
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered parse cases",
	RunE:  runCaseList,
}

var caseShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one parse case in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

var caseDetectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Preview which case a file would match, without persisting",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseDetect,
}

var caseRegisterCmd = &cobra.Command{
	Use:   "register [path]",
	Short: "Register case definitions from a YAML file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseRegister,
}

func init() {
	caseCmd.AddCommand(caseListCmd)
	caseCmd.AddCommand(caseShowCmd)
	caseCmd.AddCommand(caseDetectCmd)
	caseCmd.AddCommand(caseRegisterCmd)
	rootCmd.AddCommand(caseCmd)
}

func runCaseList(cmd *cobra.Command, args []string) error {
	if services == nil || services.Cases == nil {
		return errors.New("case service not configured")
	}

	for _, c := range services.Cases.List() {
		kind := fmt.Sprintf("%d reference tokens", len(c.Reference.Tokens))
		if c.IsFallback() {
			kind = "fallback"
		}
		cmd.Printf("%-24s %-24s %s\n", c.Name, kind, c.Description)
	}
	return nil
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Cases == nil {
		return errors.New("case service not configured")
	}

	c, err := services.Cases.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get case: %w", err)
	}

	cmd.Printf("Name:        %s\n", c.Name)
	cmd.Printf("Description: %s\n", c.Description)
	if c.IsFallback() {
		cmd.Println("Reference:   (fallback, matches anything)")
	} else {
		cmd.Printf("Reference:   %d tokens\n", len(c.Reference.Tokens))
		for _, token := range c.Reference.Tokens {
			cmd.Printf("  %s\n", token)
		}
	}
	if len(c.Mappings) > 0 {
		cmd.Println("Mappings:")
		for _, m := range c.Mappings {
			required := ""
			if m.Required {
				required = "  (required)"
			}
			cmd.Printf("  %-28s <- %-40s %s%s\n", m.Field, m.Source, m.Kind, required)
		}
	}
	if len(c.KeywordFields) > 0 {
		cmd.Printf("Keyword fields: %s\n", strings.Join(c.KeywordFields, ", "))
	}
	return nil
}

func runCaseDetect(cmd *cobra.Command, args []string) error {
	if services == nil || services.Cases == nil {
		return errors.New("case service not configured")
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	detection, err := services.Cases.Detect(cmd.Context(),
		&domain.RawInput{SourceIdentifier: args[0], Content: content})
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	cmd.Printf("Case:       %s\n", detection.Case.Name)
	cmd.Printf("Confidence: %.3f\n", detection.Confidence)
	if detection.LowConfidence {
		cmd.Println("Warning:    no registered case met the threshold, fallback chosen")
	}
	if len(detection.MissingTokens) > 0 {
		cmd.Println("Missing tokens:")
		for _, token := range detection.MissingTokens {
			cmd.Printf("  %s\n", token)
		}
	}
	if len(detection.Scores) > 0 {
		cmd.Println("Scores:")
		for _, score := range detection.Scores {
			cmd.Printf("  %-24s %.3f\n", score.CaseName, score.Score)
		}
	}
	return nil
}

func runCaseRegister(cmd *cobra.Command, args []string) error {
	if services == nil || services.Cases == nil || services.Loader == nil {
		return errors.New("case service not configured")
	}

	cases, err := services.Loader.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load case definitions: %w", err)
	}

	for _, c := range cases {
		if err := services.Cases.Register(c); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.Name, err)
		}
		cmd.Printf("Registered %s\n", c.Name)
	}
	return nil
}
