// Package main implements the flashlist command line client.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL string
	homeDir   string
)

var rootCmd = &cobra.Command{
	Use:           "flashlist",
	Short:         "Keep your outline in sync with a flashlist server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FLASHLIST_SERVER", defaultServer), "flashlist server URL")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", os.Getenv("FLASHLIST_HOME"), "directory for credentials and the local outline (default ~/.flashlist)")
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("flashlist: ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
}
