package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/config"
)

var docsDir string

// RootCmd serves the API when run without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "course-rag",
	Short: "Question answering over course transcripts",
	Long:  "Ingests course transcripts into vector stores and answers questions about them over HTTP.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadConfig()
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		if config.AppConfig.Debug() {
			log.Println("Service starting in DEBUG mode")
		}
		if docsDir == "" {
			docsDir = config.AppConfig.DocsDir
		}
	},
	RunE: runServe,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&docsDir, "docs", "", "Transcript directory (default: $DOCS_DIR or ./docs)")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
