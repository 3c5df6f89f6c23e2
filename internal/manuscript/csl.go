// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"io"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medpaper/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML, consumable by Pandoc and
// reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName is a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes refs as a CSL-YAML list to w.
func WriteCSL(refs []types.Reference, w io.Writer) error {
	items := make([]CSLItem, len(refs))
	for i, r := range refs {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(r types.Reference) CSLItem {
	item := CSLItem{
		ID:             r.CitationKey,
		Type:           "article-journal",
		Title:          r.Title,
		ContainerTitle: r.Venue,
		DOI:            r.DOI,
		URL:            r.URL,
	}
	if strings.HasPrefix(r.Identifier, "NCT") {
		item.Type = "dataset"
	}
	if pmid, ok := strings.CutPrefix(r.Identifier, "PMID:"); ok {
		item.PMID = pmid
	}
	for _, a := range r.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if r.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{r.Year}}}
	}
	return item
}

// parseAuthorName splits a name into CSL family and given parts. It accepts
// "Family, Given", PubMed's "Family AB" and "Given Family". Single-token
// names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	last := name[idx+1:]
	if isInitials(last) {
		return CSLName{Family: name[:idx], Given: last}
	}
	return CSLName{Given: name[:idx], Family: last}
}

// isInitials reports whether s is a short run of upper-case letters, as in
// the "JA" of "Smith JA".
func isInitials(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
