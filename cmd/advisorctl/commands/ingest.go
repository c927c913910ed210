package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <archive.zip>",
		Short: "Rebuild the course index from a zip of tables",
		Long: `Loads every .csv, .tsv, .txt and .xlsx table in the archive, chunks and
embeds them, and atomically replaces the configured index.

Unreadable tables are reported and skipped. An archive without any readable
table leaves the current index untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.Ingest.IngestFile(cmd.Context(), adminSession(), args[0])
			for _, f := range sum.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.File, f.Err)
			}
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", args[0], err)
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), summaryView(sum))
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Snapshot:\t%s\n", sum.Index.SnapshotID)
			fmt.Fprintf(w, "Documents:\t%d\n", sum.Documents)
			fmt.Fprintf(w, "Chunks:\t%d\n", sum.Chunks)
			fmt.Fprintf(w, "Dimensions:\t%d\n", sum.Index.Dimensions)
			fmt.Fprintf(w, "Unreadable:\t%d\n", len(sum.Failures))
			fmt.Fprintf(w, "Ignored:\t%d\n", len(sum.Skipped))
			fmt.Fprintf(w, "Took:\t%s\n", sum.Duration.Round(time.Millisecond))
			return w.Flush()
		},
	}
}

type failureView struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type ingestView struct {
	SnapshotID string        `json:"snapshot_id"`
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Records    int           `json:"records"`
	Dimensions int           `json:"dimensions"`
	Failures   []failureView `json:"failures"`
	Skipped    []string      `json:"skipped"`
	DurationMs int64         `json:"duration_ms"`
}

func summaryView(sum ingestuc.Summary) ingestView {
	v := ingestView{
		SnapshotID: sum.Index.SnapshotID,
		Documents:  sum.Documents,
		Chunks:     sum.Chunks,
		Records:    sum.Index.Records,
		Dimensions: sum.Index.Dimensions,
		Failures:   make([]failureView, len(sum.Failures)),
		Skipped:    sum.Skipped,
		DurationMs: sum.Duration.Milliseconds(),
	}
	for i, f := range sum.Failures {
		v.Failures[i] = failureView{File: f.File, Reason: f.Err.Error()}
	}
	return v
}
