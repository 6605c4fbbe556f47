package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "vidgrab",
		Short: "Vidgrab CLI - inspect and feed the download queue",
		Long:  `A command-line interface for the vidgrab server's job API.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	submitCmd.Flags().Int64("chat", 0, "Chat ID to report into")
	submitCmd.Flags().Int("message", 0, "Message ID whose caption is updated")
	_ = submitCmd.MarkFlagRequired("chat")

	listCmd.Flags().StringP("status", "s", "", "Filter by status (queued, processing, completed, failed)")
	listCmd.Flags().Int64("chat", 0, "Filter by chat ID")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of jobs")

	rootCmd.AddCommand(submitCmd, listCmd, getCmd, statsCmd, healthCmd)
}

// job mirrors the journal record returned by the API
type job struct {
	ID           string `json:"id"`
	LocatorKey   string `json:"locator_key"`
	ChatID       int64  `json:"chat_id"`
	MessageID    int    `json:"message_id"`
	Status       string `json:"status"`
	ArtifactPath string `json:"artifact_path"`
	Error        string `json:"error_message"`
	CreatedAt    string `json:"created_at"`
}

var submitCmd = &cobra.Command{
	Use:   "submit [locator-key]",
	Short: "Queue a download for a cached locator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, _ := cmd.Flags().GetInt64("chat")
		message, _ := cmd.Flags().GetInt("message")

		var task struct {
			ID string `json:"id"`
		}
		err := newAPIClient(serverURL).post("/api/v1/jobs", map[string]interface{}{
			"locator_key": args[0],
			"chat_id":     chat,
			"message_id":  message,
		}, &task)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task queued: %s\n", task.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			query.Set("status", status)
		}
		if chat, _ := cmd.Flags().GetInt64("chat"); chat != 0 {
			query.Set("chat_id", strconv.FormatInt(chat, 10))
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}

		var jobs []job
		if err := newAPIClient(serverURL).get("/api/v1/jobs", query, &jobs); err != nil {
			return err
		}
		printJobs(cmd.OutOrStdout(), jobs)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a journaled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var j job
		if err := newAPIClient(serverURL).get("/api/v1/jobs/"+url.PathEscape(args[0]), nil, &j); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Job Details:\n")
		fmt.Fprintf(out, "  ID:       %s\n", j.ID)
		fmt.Fprintf(out, "  Locator:  %s\n", j.LocatorKey)
		fmt.Fprintf(out, "  Target:   %d/%d\n", j.ChatID, j.MessageID)
		fmt.Fprintf(out, "  Status:   %s\n", j.Status)
		fmt.Fprintf(out, "  Created:  %s\n", j.CreatedAt)
		if j.ArtifactPath != "" {
			fmt.Fprintf(out, "  File:     %s\n", j.ArtifactPath)
		}
		if j.Error != "" {
			fmt.Fprintf(out, "  Error:    %s\n", j.Error)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats struct {
			QueueDepth       int `json:"queue_depth"`
			Workers          int `json:"workers"`
			PendingDeletions int `json:"pending_deletions"`
			Journal          *struct {
				Total      int64 `json:"total"`
				Queued     int64 `json:"queued"`
				Processing int64 `json:"processing"`
				Completed  int64 `json:"completed"`
				Failed     int64 `json:"failed"`
			} `json:"journal"`
		}
		if err := newAPIClient(serverURL).get("/api/v1/jobs/stats", nil, &stats); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Queue Statistics:")
		fmt.Fprintf(out, "  Queued:            %d\n", stats.QueueDepth)
		fmt.Fprintf(out, "  Workers:           %d\n", stats.Workers)
		fmt.Fprintf(out, "  Pending deletions: %d\n", stats.PendingDeletions)
		if j := stats.Journal; j != nil {
			fmt.Fprintln(out, "Journal:")
			fmt.Fprintf(out, "  Total:      %d\n", j.Total)
			fmt.Fprintf(out, "  Queued:     %d\n", j.Queued)
			fmt.Fprintf(out, "  Processing: %d\n", j.Processing)
			fmt.Fprintf(out, "  Completed:  %d\n", j.Completed)
			fmt.Fprintf(out, "  Failed:     %d\n", j.Failed)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient(serverURL).get("/ready", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ready")
		return nil
	},
}

func printJobs(out io.Writer, jobs []job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOCATOR\tTARGET\tSTATUS\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			truncate(j.ID, 8),
			truncate(j.LocatorKey, 12),
			j.ChatID, j.MessageID,
			j.Status,
			j.CreatedAt)
	}
	w.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
