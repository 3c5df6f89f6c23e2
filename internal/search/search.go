// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries biomedical literature APIs (PubMed, ClinicalTrials.gov,
// OpenAlex) and returns unified, deduplicated, ranked references with
// citation keys assigned.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/medpaper/pkg/types"
)

// Backend searches a single literature API. Each backend implements this
// interface per the Strategy pattern.
type Backend interface {
	Name() string
	Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]Result, error)
}

// Query holds the search parameters.
type Query struct {
	FreeText string
	Keywords []string
	DateFrom time.Time
	DateTo   time.Time
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.FreeText) == "" && len(q.Keywords) == 0
}

// Text joins the free text and keywords into one search string.
func (q Query) Text() string {
	parts := make([]string, 0, 1+len(q.Keywords))
	if s := strings.TrimSpace(q.FreeText); s != "" {
		parts = append(parts, s)
	}
	for _, kw := range q.Keywords {
		if s := strings.TrimSpace(kw); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Result is one hit from a backend before it becomes a reference.
type Result struct {
	types.Reference
	Abstract string
	Date     time.Time
}

// Output holds the ranked references and dedup statistics.
type Output struct {
	References    []types.Reference
	DupsRemoved   int
	BackendErrors []string
}

// ErrNoBackends is returned when no backend is configured.
var ErrNoBackends = errors.New("no search backends configured")

// NewBackends returns the backends enabled in cfg, sharing one HTTP client.
func NewBackends(cfg types.LiteratureConfig) []Backend {
	client := &http.Client{Timeout: cfg.Timeout}
	var backends []Backend
	if cfg.EnablePubMed {
		backends = append(backends, &PubMedBackend{Client: client, APIKey: cfg.NCBIAPIKey, Email: cfg.Email})
	}
	if cfg.EnableClinicalTrials {
		backends = append(backends, &ClinicalTrialsBackend{Client: client})
	}
	if cfg.EnableOpenAlex {
		backends = append(backends, &OpenAlexBackend{Client: client, Email: cfg.Email})
	}
	return backends
}

// Search fans out the query to all backends concurrently, deduplicates
// results, ranks them, keeps the top cfg.MaxResults and assigns citation
// keys. A failing backend is logged and skipped; Search fails only when
// every backend failed, returning the first backend error so callers can
// classify it.
func Search(ctx context.Context, query Query, backends []Backend, cfg types.LiteratureConfig, logger *slog.Logger) (Output, error) {
	if query.IsEmpty() {
		return Output{}, fmt.Errorf("validation: query is empty: provide a research question or keywords")
	}
	if len(backends) == 0 {
		return Output{}, ErrNoBackends
	}
	if logger == nil {
		logger = slog.Default()
	}

	perBackend := make([][]Result, len(backends))
	errs := make([]error, len(backends))

	// Backend errors are collected, not returned, so one failure does not
	// cancel the others.
	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			results, err := b.Search(ctx, query, cfg)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", b.Name(), err)
				return nil
			}
			perBackend[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var (
		all           []Result
		backendErrors []string
		firstErr      error
	)
	for i, err := range errs {
		if err != nil {
			logger.Warn("literature backend failed", "backend", backends[i].Name(), "error", err)
			backendErrors = append(backendErrors, err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		all = append(all, perBackend[i]...)
	}
	if len(backendErrors) == len(backends) {
		return Output{BackendErrors: backendErrors}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	deduped, removed := deduplicate(all)

	if cfg.RecencyBiasWindow > 0 {
		applyRecencyBias(deduped, cfg.RecencyBiasWindow, time.Now())
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].RelevanceScore > deduped[j].RelevanceScore
	})

	if cfg.MaxResults > 0 && len(deduped) > cfg.MaxResults {
		deduped = deduped[:cfg.MaxResults]
	}

	refs := make([]types.Reference, len(deduped))
	for i, r := range deduped {
		refs[i] = r.Reference
	}
	AssignCitationKeys(refs)

	logger.Debug("literature search done",
		"results", len(refs), "duplicates_removed", removed, "backend_errors", len(backendErrors))

	return Output{
		References:    refs,
		DupsRemoved:   removed,
		BackendErrors: backendErrors,
	}, nil
}

// deduplicate merges results that share a DOI, identifier or normalized title.
func deduplicate(results []Result) ([]Result, int) {
	seen := make(map[string]int)
	var deduped []Result
	removed := 0

	for _, r := range results {
		keys := dedupKeys(r)
		idx, dup := -1, false
		for _, k := range keys {
			if i, ok := seen[k]; ok {
				idx, dup = i, true
				break
			}
		}
		if dup {
			mergeInto(&deduped[idx], r)
			removed++
		} else {
			idx = len(deduped)
			deduped = append(deduped, r)
		}
		for _, k := range dedupKeys(deduped[idx]) {
			seen[k] = idx
		}
	}
	return deduped, removed
}

// dedupKeys lists every key under which r should be considered the same work.
func dedupKeys(r Result) []string {
	var keys []string
	if r.DOI != "" {
		keys = append(keys, "doi:"+strings.ToLower(r.DOI))
	}
	if r.Identifier != "" {
		keys = append(keys, "id:"+strings.ToLower(r.Identifier))
	}
	if t := normalizeTitle(r.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *Result, src Result) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.Date.IsZero() {
		dst.Date = src.Date
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Venue == "" {
		dst.Venue = src.Venue
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if src.Source != "" && !containsSource(dst.Source, src.Source) {
		if dst.Source == "" {
			dst.Source = src.Source
		} else {
			dst.Source = dst.Source + "," + src.Source
		}
	}
}

func containsSource(list, name string) bool {
	for _, s := range strings.Split(list, ",") {
		if s == name {
			return true
		}
	}
	return false
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// applyRecencyBias boosts scores for works published within the window.
func applyRecencyBias(results []Result, window time.Duration, now time.Time) {
	for i := range results {
		if results[i].Date.IsZero() {
			continue
		}
		age := now.Sub(results[i].Date)
		if age >= 0 && age <= window {
			boost := 0.2 * (1.0 - float64(age)/float64(window))
			results[i].RelevanceScore = math.Min(1.0, results[i].RelevanceScore+boost)
		}
	}
}

// positionScore gives the i-th of n relevance-ordered hits a score in
// [0.1, 1.0].
func positionScore(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(n-1)*0.9
}

// FormatTable writes references as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.References) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-16s  %-56s  %-4s  %-5s  %s\n",
		"Rank", "Key", "Title", "Year", "Score", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range out.References {
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf("%d", r.Year)
		}
		fmt.Fprintf(w, "%-4d  %-16s  %-56s  %-4s  %-5.2f  %s\n",
			i+1, truncate(r.CitationKey, 16), truncate(r.Title, 56), year, r.RelevanceScore, r.Source)
	}

	fmt.Fprintf(w, "\n%d results", len(out.References))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
	for _, e := range out.BackendErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

// FormatJSON writes references as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.References)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
