package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Show the active index snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.Index.Info(cmd.Context())
			if errors.Is(err, domain.ErrIndexNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No index at %s yet. Run: advisorctl ingest <archive.zip>\n", a.Index.Path())
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading index: %w", err)
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), info)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Path:\t%s\n", info.Path)
			fmt.Fprintf(w, "Snapshot:\t%s\n", info.SnapshotID)
			fmt.Fprintf(w, "Model:\t%s\n", info.Model)
			fmt.Fprintf(w, "Dimensions:\t%d\n", info.Dimensions)
			fmt.Fprintf(w, "Records:\t%d\n", info.Records)
			fmt.Fprintf(w, "Built:\t%s\n", info.BuiltAt.Format(time.RFC3339))
			return w.Flush()
		},
	}
}
