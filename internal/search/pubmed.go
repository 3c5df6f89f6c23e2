// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/medpaper/internal/httputil"
	"github.com/pdiddy/medpaper/pkg/types"
)

// eutilsBase is the NCBI E-utilities root. Declared as a var so tests can
// substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const pubmedTool = "medpaper"

// PubMedBackend queries PubMed through E-utilities: esearch for PMIDs, then
// esummary for the bibliographic records.
type PubMedBackend struct {
	Client *http.Client
	APIKey string
	Email  string
}

// Name returns the backend identifier.
func (b *PubMedBackend) Name() string { return "pubmed" }

// Search runs esearch then esummary and returns results in PubMed relevance order.
func (b *PubMedBackend) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]Result, error) {
	term := buildPubMedTerm(query)
	if term == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := b.baseParams()
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("sort", "relevance")

	var sr esearchResponse
	if err := b.get(ctx, "/esearch.fcgi", params, cfg.UserAgent, &sr); err != nil {
		return nil, err
	}
	ids := sr.ESearchResult.IDList
	if len(ids) == 0 {
		return nil, nil
	}

	params = b.baseParams()
	params.Set("id", strings.Join(ids, ","))
	var sum esummaryResponse
	if err := b.get(ctx, "/esummary.fcgi", params, cfg.UserAgent, &sum); err != nil {
		return nil, err
	}

	var results []Result
	for i, id := range ids {
		raw, ok := sum.Result[id]
		if !ok {
			continue
		}
		var doc pubmedSummary
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing PubMed summary %s: %v", id, err)
		}
		results = append(results, doc.toResult(positionScore(i, len(ids))))
	}
	return results, nil
}

func (b *PubMedBackend) baseParams() url.Values {
	v := url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"tool":    {pubmedTool},
	}
	if b.APIKey != "" {
		v.Set("api_key", b.APIKey)
	}
	if b.Email != "" {
		v.Set("email", b.Email)
	}
	return v
}

func (b *PubMedBackend) get(ctx context.Context, path string, params url.Values, userAgent string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eutilsBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("PubMed API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse("PubMed", resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing PubMed response: %v", err)
	}
	return nil
}

// buildPubMedTerm ANDs the free text with each keyword.
func buildPubMedTerm(q Query) string {
	var parts []string
	if s := strings.TrimSpace(q.FreeText); s != "" {
		parts = append(parts, s)
	}
	for _, kw := range q.Keywords {
		if s := strings.TrimSpace(kw); s != "" {
			parts = append(parts, s)
		}
	}
	term := strings.Join(parts, " AND ")
	if term == "" {
		return ""
	}
	if !q.DateFrom.IsZero() || !q.DateTo.IsZero() {
		from, to := "1800/01/01", "3000/12/31"
		if !q.DateFrom.IsZero() {
			from = q.DateFrom.Format("2006/01/02")
		}
		if !q.DateTo.IsZero() {
			to = q.DateTo.Format("2006/01/02")
		}
		term += fmt.Sprintf(" AND (%s:%s[dp])", from, to)
	}
	return term
}

// parsePubDate reads PubMed's free-form pubdate ("2020 Mar 15", "2019 Dec",
// "2018"). Unparseable suffixes fall back to the leading year.
func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006 Jan 2", "2006 Jan", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if len(s) >= 4 {
		if y, err := strconv.Atoi(s[:4]); err == nil {
			return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func (d pubmedSummary) toResult(score float64) Result {
	r := Result{
		Reference: types.Reference{
			Identifier:     "PMID:" + d.UID,
			Title:          strings.TrimSuffix(strings.TrimSpace(d.Title), "."),
			Venue:          d.FullJournalName,
			URL:            "https://pubmed.ncbi.nlm.nih.gov/" + d.UID + "/",
			Source:         "pubmed",
			RelevanceScore: score,
		},
		Date: parsePubDate(d.PubDate),
	}
	if r.Venue == "" {
		r.Venue = d.Source
	}
	for _, a := range d.Authors {
		if a.Name != "" {
			r.Authors = append(r.Authors, a.Name)
		}
	}
	for _, id := range d.ArticleIDs {
		if id.IDType == "doi" {
			r.DOI = id.Value
		}
	}
	if !r.Date.IsZero() {
		r.Year = r.Date.Year()
	}
	return r
}

// E-utilities JSON structures.
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse keys documents by PMID; the "uids" entry is an array, so
// values are decoded lazily.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedSummary struct {
	UID             string `json:"uid"`
	PubDate         string `json:"pubdate"`
	Source          string `json:"source"`
	FullJournalName string `json:"fulljournalname"`
	Title           string `json:"title"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}
