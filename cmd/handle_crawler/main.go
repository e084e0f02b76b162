// Package main provides the handle_crawler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "handle_crawler",
	Short: "Member directory messaging-handle crawler",
	Long: "handle_crawler signs in to a member directory, collects the messaging handles members mention " +
		"in their profiles, classifies each handle as a channel, chat or personal account by probing its " +
		"public preview page, and writes one record per member.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
