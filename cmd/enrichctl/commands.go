package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/auth"
	"example.com/enrichment/internal/config"
	"example.com/enrichment/internal/dedupe"
	"example.com/enrichment/internal/parser"
)

func (c *cli) parseCmd() *cobra.Command {
	var title, sourceURL string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract a structured activity from a text file (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			p := c.heuristics.Build(nil, nil).Parser
			parsed, accepted := p.Parse(parser.Content{Title: title, Body: string(body), SourceURL: sourceURL})
			return writeJSON(cmd.OutOrStdout(), struct {
				Parsed   parser.Parsed `json:"parsed"`
				Accepted bool          `json:"accepted"`
			}{parsed, accepted})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title supplied alongside the content")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "where the content came from")
	return cmd
}

func (c *cli) dedupeCmd() *cobra.Command {
	var candidatePath, corpusPath string

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Check one candidate activity against a corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(candidatePath)
			if err != nil {
				return fmt.Errorf("read candidate: %w", err)
			}
			var candidate activity.Activity
			if err := json.Unmarshal(data, &candidate); err != nil {
				return fmt.Errorf("decode candidate %s: %w", candidatePath, err)
			}
			corpus, err := loadCorpus(corpusPath)
			if err != nil {
				return err
			}

			match, dup := c.heuristics.Build(nil, nil).Detector.FindDuplicate(candidate, corpus)
			out := struct {
				Duplicate bool          `json:"duplicate"`
				Match     *dedupe.Match `json:"match,omitempty"`
			}{Duplicate: dup}
			if dup {
				out.Match = &match
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&candidatePath, "candidate", "", "JSON file holding one activity")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "JSON file holding an activity array")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func (c *cli) rankCmd() *cobra.Command {
	var (
		corpusPath string
		mode       string
		count      int
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Order a corpus by recommendation weight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := loadCorpus(corpusPath)
			if err != nil {
				return err
			}

			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, seed))
			}
			sel := c.heuristics.Build(rng, nil).Selector

			var ranked []activity.Activity
			switch strings.ToLower(mode) {
			case "top":
				if count <= 0 {
					count = len(corpus)
				}
				ranked = sel.Top(corpus, count, nil)
			case "shuffle":
				ranked = sel.Shuffle(corpus, nil)
				if count > 0 && count < len(ranked) {
					ranked = ranked[:count]
				}
			default:
				return fmt.Errorf("unknown mode %q (want shuffle or top)", mode)
			}

			out := cmd.OutOrStdout()
			for _, a := range ranked {
				fmt.Fprintf(out, "%s\t%.2f\t%s\n", a.ID, sel.Weight(a, nil), a.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "JSON file holding an activity array")
	cmd.Flags().StringVar(&mode, "mode", "shuffle", "shuffle or top")
	cmd.Flags().IntVar(&count, "count", 0, "limit the output; 0 prints everything")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "fixed shuffle seed; 0 seeds from the runtime")
	return cmd
}

func (c *cli) libraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "library",
		Short: "Print the built-in activity library as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), activity.Library())
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token with JWT_SECRET and JWT_ISSUER",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			token, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "dog owner id")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func loadCorpus(path string) ([]activity.Activity, error) {
	if path == "" {
		return activity.Library(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var corpus []activity.Activity
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return corpus, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
