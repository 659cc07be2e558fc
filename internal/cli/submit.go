package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/vidscribe/internal/queue"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

var (
	submitWait     bool
	submitInterval time.Duration
	submitMaxWait  time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Start a transcription job",
	Long: `Start a transcription job for a video URL and print the job id.

Examples:
  vidscribe submit https://www.youtube.com/watch?v=abc
  vidscribe submit https://example.com/talk.mp4 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Show a job's status or transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := client.Result(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printSnapshot(cmd.OutOrStdout(), snap)
	},
}

func init() {
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "poll until the job finishes and print the transcript")
	submitCmd.Flags().DurationVar(&submitInterval, "interval", 5*time.Second, "poll interval with --wait")
	submitCmd.Flags().DurationVar(&submitMaxWait, "max-wait", 30*time.Minute, "give up waiting after this long")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	jobID, err := client.Submit(ctx, args[0])
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if !submitWait {
		fmt.Fprintln(cmd.OutOrStdout(), jobID)
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "job %s started, waiting...\n", jobID)

	ctx, cancel := context.WithTimeout(ctx, submitMaxWait)
	defer cancel()
	snap, err := client.Wait(ctx, jobID, submitInterval)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", jobID, err)
	}
	return printSnapshot(cmd.OutOrStdout(), snap)
}

func printSnapshot(w io.Writer, snap queue.Snapshot) error {
	switch snap.Status {
	case types.StatusCompleted:
		_, err := fmt.Fprintln(w, snap.Transcript)
		return err
	case types.StatusFailed:
		return fmt.Errorf("job %s failed: %s", snap.ID, snap.Error)
	default:
		_, err := fmt.Fprintf(w, "job %s is %s\n", snap.ID, snap.Status)
		return err
	}
}
