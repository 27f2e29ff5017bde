package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/api"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/config"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Ingest the docs directory and serve the HTTP API (default)",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// Startup ingestion; a missing docs directory only means there is nothing to load.
	if _, statErr := os.Stat(docsDir); statErr == nil {
		log.Printf("Loading course documents from %s...", docsDir)
		if _, err := a.ingestor.IngestDir(ctx, docsDir); err != nil {
			log.Printf("Startup ingestion failed: %v", err)
		}
	} else {
		log.Printf("Docs directory %s not found, serving existing data", docsDir)
	}

	chatService, err := a.chatService()
	if err != nil {
		return err
	}
	router := api.NewRouter(api.NewAPIHandler(chatService), config.AppConfig.StaticDir)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exiting gracefully")
	return nil
}

// writeTimeout covers the slowest query: MaxToolRounds+2 model requests, each possibly paired
// with capability embedding calls under the same timeout.
func writeTimeout() time.Duration {
	cfg := config.AppConfig
	rounds := cfg.MaxToolRounds
	if rounds < 0 {
		rounds = 0
	}
	return time.Duration(rounds+2)*2*cfg.ExternalCallTimeout + 30*time.Second
}
