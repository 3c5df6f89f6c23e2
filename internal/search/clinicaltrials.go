// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/medpaper/internal/httputil"
	"github.com/pdiddy/medpaper/pkg/types"
)

// clinicalTrialsBase is the ClinicalTrials.gov v2 studies endpoint. Declared
// as a var so tests can substitute an httptest server.
var clinicalTrialsBase = "https://clinicaltrials.gov/api/v2/studies"

// ClinicalTrialsBackend queries the ClinicalTrials.gov registry. Registered
// trials are cited by NCT number.
type ClinicalTrialsBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *ClinicalTrialsBackend) Name() string { return "clinicaltrials" }

// Search returns registered studies matching the query text.
func (b *ClinicalTrialsBackend) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]Result, error) {
	text := query.Text()
	if text == "" {
		return nil, fmt.Errorf("empty ClinicalTrials.gov query")
	}
	pageSize := cfg.MaxResults
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 1000 {
		pageSize = 1000
	}

	params := url.Values{
		"query.term": {text},
		"pageSize":   {strconv.Itoa(pageSize)},
		"format":     {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clinicalTrialsBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("ClinicalTrials.gov API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse("ClinicalTrials.gov", resp); err != nil {
		return nil, err
	}

	var ctr ctStudiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&ctr); err != nil {
		return nil, fmt.Errorf("parsing ClinicalTrials.gov response: %v", err)
	}

	var results []Result
	for i, s := range ctr.Studies {
		id := s.ProtocolSection.IdentificationModule
		if id.NCTID == "" {
			continue
		}
		r := Result{
			Reference: types.Reference{
				Identifier:     id.NCTID,
				Title:          id.OfficialTitle,
				Venue:          "ClinicalTrials.gov",
				URL:            "https://clinicaltrials.gov/study/" + id.NCTID,
				Source:         "clinicaltrials",
				RelevanceScore: positionScore(i, len(ctr.Studies)),
			},
			Abstract: s.ProtocolSection.DescriptionModule.BriefSummary,
			Date:     parseTrialDate(s.ProtocolSection.StatusModule.StartDateStruct.Date),
		}
		if r.Title == "" {
			r.Title = id.BriefTitle
		}
		for _, o := range s.ProtocolSection.ContactsLocationsModule.OverallOfficials {
			if o.Name != "" {
				r.Authors = append(r.Authors, o.Name)
			}
		}
		if len(r.Authors) == 0 {
			if sponsor := s.ProtocolSection.SponsorCollaboratorsModule.LeadSponsor.Name; sponsor != "" {
				r.Authors = []string{sponsor}
			}
		}
		if !r.Date.IsZero() {
			r.Year = r.Date.Year()
		}
		results = append(results, r)
	}
	return results, nil
}

// parseTrialDate accepts "2019-03-15" and "2019-03".
func parseTrialDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ClinicalTrials.gov v2 JSON structures.
type ctStudiesResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTID         string `json:"nctId"`
				BriefTitle    string `json:"briefTitle"`
				OfficialTitle string `json:"officialTitle"`
			} `json:"identificationModule"`
			StatusModule struct {
				StartDateStruct struct {
					Date string `json:"date"`
				} `json:"startDateStruct"`
			} `json:"statusModule"`
			DescriptionModule struct {
				BriefSummary string `json:"briefSummary"`
			} `json:"descriptionModule"`
			SponsorCollaboratorsModule struct {
				LeadSponsor struct {
					Name string `json:"name"`
				} `json:"leadSponsor"`
			} `json:"sponsorCollaboratorsModule"`
			ContactsLocationsModule struct {
				OverallOfficials []struct {
					Name string `json:"name"`
				} `json:"overallOfficials"`
			} `json:"contactsLocationsModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
	NextPageToken string `json:"nextPageToken"`
}
