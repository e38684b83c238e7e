package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
)

var listJSONOutput bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all live request records in stable order",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSONOutput, "json", false, "Output in JSON format")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(context.Background())
	if err != nil {
		return err
	}

	if listJSONOutput {
		return printJSON(cmd.OutOrStdout(), records)
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "REQUEST KEY\tLOCATION\tBUNDLE\tSELECTION\tFIRST SEEN\tLAST SEEN")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.RequestKey,
			rec.LocationSlug,
			rec.BundleSlug,
			selection.Payload(rec.SelectedNoradIDs),
			rec.FirstSeen.Format(time.RFC3339),
			rec.LastSeen.Format(time.RFC3339))
	}
	return w.Flush()
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
