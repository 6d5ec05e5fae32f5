package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/api"
	"reframe/internal/registry"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var style string
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload a video and queue it for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := cli.submit(cmd.Context(), args[0], style)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued (style: %s)\n", resp.JobID, resp.Style)
			if !wait {
				fmt.Fprintf(cmd.OutOrStdout(), "Track it with: reframe status %s\n", resp.JobID)
				return nil
			}
			return waitForJob(cmd, cli, resp.JobID)
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "Motion style to apply (default from daemon config)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the job reaches a terminal status")
	return cmd
}

func waitForJob(cmd *cobra.Command, cli *client, id string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastStatus string
	for {
		doc, err := cli.status(cmd.Context(), id)
		if err != nil {
			return err
		}
		if doc.Status != lastStatus {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", humanizeStatus(doc.Status))
			lastStatus = doc.Status
		}
		switch doc.Status {
		case string(registry.StatusCompleted):
			fmt.Fprintf(cmd.OutOrStdout(), "Processed video: %s\n", doc.ProcessedVideo)
			return nil
		case string(registry.StatusFailed):
			return fmt.Errorf("job failed: %s", doc.Message)
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := cli.status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatusDocument(cmd, doc)
			return nil
		},
	}
}

func printStatusDocument(cmd *cobra.Command, doc api.StatusDocument) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", doc.JobID)
	fmt.Fprintf(out, "Status:   %s\n", humanizeStatus(doc.Status))
	fmt.Fprintf(out, "Original: %s\n", doc.OriginalVideo)
	if doc.ProcessedVideo != "" {
		fmt.Fprintf(out, "Output:   %s\n", doc.ProcessedVideo)
	}
	if doc.Message != "" {
		fmt.Fprintf(out, "Error:    %s\n", doc.Message)
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs known to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctx.client()
			if err != nil {
				return err
			}
			docs, err := cli.list(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
				return nil
			}
			rows := make([][]string, 0, len(docs))
			for _, doc := range docs {
				detail := doc.ProcessedVideo
				if doc.Message != "" {
					detail = doc.Message
				}
				rows = append(rows, []string{doc.JobID, humanizeStatus(doc.Status), detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"JOB", "STATUS", "DETAIL"}, rows))
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon and pipeline health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := cli.health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:    %s\n", doc.Status)
			fmt.Fprintf(out, "In flight: %d/%d\n", doc.InFlight, doc.Capacity)
			for _, name := range doc.Stages {
				fmt.Fprintf(out, "Degraded:  %s\n", name)
			}
			if !doc.Ready {
				return errors.New("daemon is not ready")
			}
			return nil
		},
	}
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Show daemon runtime information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := cli.daemonStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:   %v\n", doc.Running)
			fmt.Fprintf(out, "Registry:  %s\n", doc.RegistryPath)
			fmt.Fprintf(out, "Lock file: %s\n", doc.LockFilePath)
			fmt.Fprintf(out, "In flight: %d/%d\n", doc.InFlight, doc.Capacity)
			fmt.Fprintf(out, "Jobs:      %d total (%d queued, %d processing, %d completed, %d failed)\n",
				doc.Jobs.Total, doc.Jobs.Queued, doc.Jobs.Processing, doc.Jobs.Completed, doc.Jobs.Failed)
			return nil
		},
	}
}
