package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/diggerhq/azure-pim/pkg/pim"
)

var client *pim.Client

var (
	verbose bool
	quiet   bool
)

func preRun(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	client, err = pim.NewClient()
	if err != nil {
		slog.Error("failed to create PIM client", "error", err)
		return err
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:               "pim",
	Short:             "Manage Azure PIM role assignments from the command line",
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Only log errors")
}

// output renders results as indented JSON on stdout, keeping logs on
// stderr so the two streams compose with jq.
func output(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
