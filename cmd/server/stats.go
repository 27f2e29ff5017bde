package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/config"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/core"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show catalog and chunk statistics",
		RunE:  runStats,
	})
}

// runStats reads the database only; no embedder or model is needed.
func runStats(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	catalog, chunks := store.NewCatalogStore(db), store.NewChunkStore(db)
	if err := catalog.Load(cmd.Context()); err != nil {
		return err
	}
	if err := chunks.Load(cmd.Context()); err != nil {
		return err
	}

	titles := catalog.Titles()
	stats := core.CourseStats{TotalCourses: len(titles), CourseTitles: titles, TotalChunks: chunks.Count()}
	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
	return nil
}
