// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleESearch = `{"header":{"type":"esearch"},"esearchresult":{"count":"2","retmax":"2","idlist":["18997196","30415637"]}}`

const sampleESummary = `{
  "header": {"type": "esummary"},
  "result": {
    "uids": ["18997196", "30415637"],
    "18997196": {
      "uid": "18997196",
      "pubdate": "2008 Nov 20",
      "source": "N Engl J Med",
      "fulljournalname": "The New England journal of medicine",
      "title": "Rosuvastatin to prevent vascular events in men and women with elevated C-reactive protein.",
      "authors": [{"name": "Ridker PM", "authtype": "Author"}, {"name": "Danielson E", "authtype": "Author"}],
      "articleids": [{"idtype": "pubmed", "value": "18997196"}, {"idtype": "doi", "value": "10.1056/NEJMoa0807646"}]
    },
    "30415637": {
      "uid": "30415637",
      "pubdate": "2019 Jan",
      "source": "Lancet",
      "title": "Efficacy and safety of statin therapy in older people",
      "authors": [],
      "articleids": []
    }
  }
}`

func pubmedTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "json", q.Get("retmode"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			fmt.Fprint(w, sampleESearch)
		case "/esummary.fcgi":
			assert.Equal(t, "18997196,30415637", q.Get("id"))
			fmt.Fprint(w, sampleESummary)
		default:
			http.NotFound(w, r)
		}
	}))
	old := eutilsBase
	eutilsBase = ts.URL
	t.Cleanup(func() {
		eutilsBase = old
		ts.Close()
	})
	return ts, &paths
}

func TestPubMedBackendSearch(t *testing.T) {
	ts, paths := pubmedTestServer(t)

	b := &PubMedBackend{Client: ts.Client(), APIKey: "k", Email: "me@example.org"}
	results, err := b.Search(context.Background(), Query{FreeText: "statin", Keywords: []string{"CRP"}}, testCfg())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, *paths, 2)
	assert.Contains(t, (*paths)[0], "api_key=k")
	assert.Contains(t, (*paths)[0], "email=me%40example.org")

	r0 := results[0]
	assert.Equal(t, "PMID:18997196", r0.Identifier)
	assert.Equal(t, "10.1056/NEJMoa0807646", r0.DOI)
	assert.Equal(t, "Rosuvastatin to prevent vascular events in men and women with elevated C-reactive protein", r0.Title)
	assert.Equal(t, []string{"Ridker PM", "Danielson E"}, r0.Authors)
	assert.Equal(t, 2008, r0.Year)
	assert.Equal(t, "The New England journal of medicine", r0.Venue)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/18997196/", r0.URL)
	assert.Equal(t, 1.0, r0.RelevanceScore)

	r1 := results[1]
	assert.Equal(t, "Lancet", r1.Venue, "falls back to abbreviated source")
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), r1.Date)
}

func TestPubMedBackendNoHits(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	}))
	defer ts.Close()
	old := eutilsBase
	eutilsBase = ts.URL
	defer func() { eutilsBase = old }()

	results, err := (&PubMedBackend{Client: ts.Client()}).Search(context.Background(), Query{FreeText: "zzz"}, testCfg())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildPubMedTerm(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"free text", Query{FreeText: "aspirin"}, "aspirin"},
		{"keywords", Query{FreeText: "aspirin", Keywords: []string{"stroke", " "}}, "aspirin AND stroke"},
		{"date range", Query{FreeText: "aspirin", DateFrom: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)}, "aspirin AND (2015/01/01:3000/12/31[dp])"},
		{"empty", Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPubMedTerm(tt.query))
		})
	}
}

func TestParsePubDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2020 Mar 15", time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2019 Dec", time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"2018", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2017 Winter", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parsePubDate(tt.in), "input %q", tt.in)
	}
}
