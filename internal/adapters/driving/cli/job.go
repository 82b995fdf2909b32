package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect batch jobs",
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batch jobs, newest first",
	RunE:  runJobList,
}

var jobStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show one batch job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Request cancellation of a running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobCancel,
}

var jobListLimit int

func init() {
	jobListCmd.Flags().IntVar(&jobListLimit, "limit", 20, "Maximum jobs to list")

	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobCancelCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJobList(cmd *cobra.Command, args []string) error {
	if services == nil || services.Jobs == nil {
		return errors.New("job store not configured")
	}

	jobs, err := services.Jobs.ListJobs(cmd.Context(), jobListLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No jobs recorded.")
		return nil
	}

	for _, job := range jobs {
		cmd.Printf("%s  %-11s %4d/%-4d errors %-3d %s\n",
			job.ID, job.Status, job.ProcessedCount, job.TotalItems,
			job.ErrorCount, job.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestor == nil {
		return errors.New("ingestor not configured")
	}

	job, err := services.Ingestor.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	cmd.Printf("ID:        %s\n", job.ID)
	cmd.Printf("Status:    %s\n", job.Status)
	cmd.Printf("Progress:  %d/%d (%.1f%%)\n", job.ProcessedCount, job.TotalItems, job.Percentage())
	cmd.Printf("Errors:    %d\n", job.ErrorCount)
	cmd.Printf("Created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if !job.CompletedAt.IsZero() {
		cmd.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobCancel(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestor == nil {
		return errors.New("ingestor not configured")
	}

	if err := services.Ingestor.Cancel(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	cmd.Printf("Cancellation requested for %s\n", args[0])
	return nil
}
