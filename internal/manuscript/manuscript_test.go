// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manuscript

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medpaper/pkg/types"
)

func sampleRefs() []types.Reference {
	return []types.Reference{
		{
			CitationKey: "Ridker2008",
			Identifier:  "PMID:18997196",
			Title:       "Rosuvastatin to prevent vascular events.",
			Authors:     []string{"Ridker PM", "Danielson E"},
			Year:        2008,
			Venue:       "N Engl J Med",
			DOI:         "10.1056/NEJMoa0807646",
		},
		{
			CitationKey: "AstraZeneca2003",
			Identifier:  "NCT00239681",
			Title:       "JUPITER",
			Authors:     []string{"AstraZeneca"},
			Year:        2003,
			URL:         "https://clinicaltrials.gov/study/NCT00239681",
		},
	}
}

func TestExtractCitationKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "Statins work [Ridker2008].", []string{"Ridker2008"}},
		{"multi", "As shown [Ridker2008; Smith2020a].", []string{"Ridker2008", "Smith2020a"}},
		{"markdown link ignored", "See [the trial](http://x).", nil},
		{"numeric footnote ignored", "Footnote [1].", nil},
		{"no digits ignored", "[Anon]", nil},
		{"hyphenated", "[Smith-Jones2019]", []string{"Smith-Jones2019"}},
		{"none", "plain text", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitationKeys(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCitationKeys(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidateCitations(t *testing.T) {
	sections := map[string]string{
		"introduction": "Background [Ridker2008; Ghost2001].",
		"discussion":   "Again [Ghost2001] and [Other1999].",
	}
	got := ValidateCitations(sections, sampleRefs())
	want := []string{"Ghost2001", "Other1999"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidateCitations = %v, want %v", got, want)
	}

	if got := ValidateCitations(map[string]string{"methods": "[Ridker2008]"}, sampleRefs()); len(got) != 0 {
		t.Errorf("expected no missing keys, got %v", got)
	}
}

func TestCitedReferences(t *testing.T) {
	got := CitedReferences(map[string]string{"results": "[AstraZeneca2003]"}, sampleRefs())
	if len(got) != 1 || got[0].CitationKey != "AstraZeneca2003" {
		t.Errorf("CitedReferences = %v", got)
	}
}

func TestMissingSections(t *testing.T) {
	sections := map[string]string{
		"abstract":     "A",
		"introduction": "I",
		"methods":      "   ",
		"results":      "R",
	}
	got := MissingSections(sections)
	want := []string{"methods", "discussion", "conclusion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingSections = %v, want %v", got, want)
	}
}

func TestOrdered(t *testing.T) {
	sections := map[string]string{
		"results":         "R",
		"limitations":     "L",
		"abstract":        "A",
		"acknowledgments": "K",
	}
	got := Ordered(sections)
	want := []string{"abstract", "results", "acknowledgments", "limitations"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ordered = %v, want %v", got, want)
	}
}

func TestSectionTitle(t *testing.T) {
	if got := SectionTitle("methods"); got != "Methods" {
		t.Errorf("SectionTitle(methods) = %q", got)
	}
	if got := SectionTitle("data_sharing"); got != "Data sharing" {
		t.Errorf("SectionTitle(data_sharing) = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	task := &types.MedicalPaperTask{
		Title: "Statins in Primary Prevention",
		Manuscript: map[string]string{
			"results":  "Fewer events [Ridker2008].",
			"abstract": "Short abstract.",
		},
		References: sampleRefs(),
	}
	var buf bytes.Buffer
	if err := RenderMarkdown(task, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "# Statins in Primary Prevention\n") {
		t.Errorf("missing title heading:\n%s", out)
	}
	if strings.Index(out, "## Abstract") > strings.Index(out, "## Results") {
		t.Error("abstract should precede results")
	}
	for _, want := range []string{
		"1. [Ridker2008] Ridker PM, Danielson E. Rosuvastatin to prevent vascular events. N Engl J Med. 2008. doi:10.1056/NEJMoa0807646",
		"2. [AstraZeneca2003] AstraZeneca. JUPITER. 2003. https://clinicaltrials.gov/study/NCT00239681",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatReferenceEtAl(t *testing.T) {
	r := types.Reference{Title: "T", Authors: []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7"}}
	got := formatReference(r)
	if !strings.HasPrefix(got, "A1, A2, A3, A4, A5, A6, et al. T.") {
		t.Errorf("formatReference = %q", got)
	}
}

func TestGenerateBibTeX(t *testing.T) {
	bib := GenerateBibTeX(sampleRefs())
	for _, want := range []string{
		"@article{Ridker2008,",
		"author = {Ridker PM and Danielson E},",
		"doi = {10.1056/NEJMoa0807646},",
		"@misc{AstraZeneca2003,",
	} {
		if !strings.Contains(bib, want) {
			t.Errorf("BibTeX missing %q:\n%s", want, bib)
		}
	}
}

func TestWriteCSL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSL(sampleRefs(), &buf); err != nil {
		t.Fatal(err)
	}
	var items []CSLItem
	if err := yaml.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].PMID != "18997196" || items[0].DOI != "10.1056/NEJMoa0807646" {
		t.Errorf("item 0 ids = %q %q", items[0].PMID, items[0].DOI)
	}
	if items[0].Author[0] != (CSLName{Family: "Ridker", Given: "PM"}) {
		t.Errorf("author = %+v", items[0].Author[0])
	}
	if items[1].Type != "dataset" {
		t.Errorf("registry entry type = %q, want dataset", items[1].Type)
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Ridker PM", CSLName{Family: "Ridker", Given: "PM"}},
		{"Paul M Ridker", CSLName{Given: "Paul M", Family: "Ridker"}},
		{"Ridker, Paul", CSLName{Family: "Ridker", Given: "Paul"}},
		{"AstraZeneca", CSLName{Literal: "AstraZeneca"}},
		{"", CSLName{}},
	}
	for _, tt := range tests {
		if got := parseAuthorName(tt.in); got != tt.want {
			t.Errorf("parseAuthorName(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	task := &types.MedicalPaperTask{
		ID:         "t1",
		Title:      "Title",
		PaperType:  types.PaperRCT,
		Status:     types.StatusCompleted,
		Manuscript: map[string]string{"abstract": "A [Ridker2008]."},
		References: sampleRefs(),
	}
	paths, err := Export(task, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 4 {
		t.Fatalf("wrote %d files, want 4", len(paths))
	}

	data, err := os.ReadFile(filepath.Join(dir, TaskFile))
	if err != nil {
		t.Fatal(err)
	}
	var back types.MedicalPaperTask
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != "t1" || back.Manuscript["abstract"] != "A [Ridker2008]." {
		t.Errorf("round-tripped task = %+v", back)
	}
}

func TestStripUnknownCitations(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		want        string
		wantRemoved []string
	}{
		{"keeps known", "Shown [Ridker2008].", "Shown [Ridker2008].", nil},
		{"drops unknown group", "Shown [Ghost2001].", "Shown.", []string{"Ghost2001"}},
		{"drops unknown from multi", "Shown [Ridker2008; Ghost2001; Ghost2001].", "Shown [Ridker2008].", []string{"Ghost2001"}},
		{"leaves links alone", "See [the trial](http://x) [Zed1999], too.", "See [the trial](http://x), too.", []string{"Zed1999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, removed := StripUnknownCitations(tt.text, sampleRefs())
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			if !reflect.DeepEqual(removed, tt.wantRemoved) {
				t.Errorf("removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}
