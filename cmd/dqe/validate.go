package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/dqe-go"
	"github.com/SamuelRCrider/dqe-go/core"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a batch of records from a JSON file",
	Long: `Validate reads a JSON array of records, runs them through the engine in
input order and prints the batch result as JSON. Issues are written back to
--db and --issues-log when set. Interrupting the run stops dispatch; records
already in flight finish and the partial result is still printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		recordsPath, _ := cmd.Flags().GetString("records")
		outPath, _ := cmd.Flags().GetString("out")
		summaryOnly, _ := cmd.Flags().GetBool("summary")
		if recordsPath == "" {
			return fmt.Errorf("--records is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		records, err := dqe.LoadRecords(recordsPath)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		result, runErr := rt.engine.RunBatch(ctx, records)
		if runErr != nil && !errors.Is(runErr, core.ErrBatchCanceled) {
			return runErr
		}
		if runErr != nil {
			slog.Warn("batch interrupted", "error", runErr)
		}

		var out interface{} = result
		if summaryOnly {
			out = summarize(result)
		}
		if err := writeJSON(outPath, out); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	validateCmd.Flags().String("records", "", "JSON file holding an array of records")
	validateCmd.Flags().String("out", "", "write the result here instead of stdout")
	validateCmd.Flags().Bool("summary", false, "print counts and duplicates only")
	addEngineFlags(validateCmd)
	validateCmd.PreRunE = func(cmd *cobra.Command, args []string) error { return bindEngineFlags(cmd) }

	rootCmd.AddCommand(validateCmd)
}

// batchSummary is the --summary output
type batchSummary struct {
	JobID        string                `json:"jobId"`
	Records      int                   `json:"records"`
	UniqueCount  int                   `json:"uniqueCount"`
	Failed       int                   `json:"failed"`
	AverageScore float64               `json:"averageScore"`
	IssueCounts  map[string]int        `json:"issueCounts"`
	Duplicates   []core.BatchDuplicate `json:"duplicates"`
	Stats        core.DedupStats       `json:"stats"`
	DurationMs   int64                 `json:"durationMs"`
}

func summarize(result *core.BatchResult) batchSummary {
	s := batchSummary{
		JobID:       result.JobID,
		Records:     len(result.Results),
		UniqueCount: result.UniqueCount,
		Failed:      result.Failed,
		IssueCounts: map[string]int{},
		Duplicates:  result.Duplicates,
		Stats:       result.Stats,
		DurationMs:  result.Duration.Milliseconds(),
	}

	var total float64
	for _, r := range result.Results {
		total += r.OverallScore
		for _, issue := range r.Issues {
			s.IssueCounts[string(issue.Type)]++
		}
	}
	if len(result.Results) > 0 {
		s.AverageScore = total / float64(len(result.Results))
	}
	return s
}

func writeJSON(path string, v interface{}) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
