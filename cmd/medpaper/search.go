// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medpaper/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Search PubMed, ClinicalTrials.gov and OpenAlex for references",
	Long: `Search queries the enabled literature backends for works matching a
research question or keywords, the same way the literature agent does.
Results are deduplicated across sources, ranked, and given citation keys.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := search.Query{FreeText: strings.Join(args, " ")}
	if kw, _ := cmd.Flags().GetStringSlice("keywords"); len(kw) > 0 {
		q.Keywords = kw
	}
	var err error
	if q.DateFrom, err = parseDate(cmd, "from"); err != nil {
		return err
	}
	if q.DateTo, err = parseDate(cmd, "to"); err != nil {
		return err
	}
	if q.IsEmpty() {
		return fmt.Errorf("a research question or --keywords is required")
	}

	lit := cfg.Literature
	if cmd.Flags().Changed("max-results") {
		lit.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	if recency, _ := cmd.Flags().GetBool("recency-bias"); recency && lit.RecencyBiasWindow == 0 {
		lit.RecencyBiasWindow = 5 * 365 * 24 * time.Hour
	}

	out, err := search.Search(cmd.Context(), q, search.NewBackends(lit), lit, logger)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return search.FormatJSON(out, cmd.OutOrStdout())
	}
	search.FormatTable(out, cmd.OutOrStdout())
	return nil
}

func parseDate(cmd *cobra.Command, flag string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(flag)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func init() {
	searchCmd.Flags().StringSlice("keywords", nil, "keywords (comma-separated)")
	searchCmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	searchCmd.Flags().Int("max-results", 25, "maximum number of results to return")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("recency-bias", false, "boost papers from the last five years")

	rootCmd.AddCommand(searchCmd)
}
