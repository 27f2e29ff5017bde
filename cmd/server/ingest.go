package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest transcripts into the vector stores and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIngest,
	})
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := docsDir
	if len(args) == 1 {
		dir = args[0]
	}

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.ingestor.IngestDir(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	b, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(b))
	return nil
}
