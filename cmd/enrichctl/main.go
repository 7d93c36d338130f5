package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/enrichment/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	heuristicsPath string
	heuristics     config.Heuristics
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "enrichctl",
		Short: "Offline tooling for the enrichment discovery pipeline",
		Long: `enrichctl runs the parser, duplicate detector and weighted selector locally
against files, using the same heuristics the services load.

Corpus files are JSON arrays of activities. When --corpus is omitted the
built-in library is used.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			h, err := config.LoadHeuristics(c.heuristicsPath)
			if err != nil {
				return err
			}
			c.heuristics = h
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.heuristicsPath, "heuristics", os.Getenv("HEURISTICS_FILE"), "YAML heuristics overlay")

	root.AddCommand(
		c.parseCmd(),
		c.dedupeCmd(),
		c.rankCmd(),
		c.libraryCmd(),
		c.tokenCmd(),
	)
	return root
}
