// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manuscript holds the section layout of a medical manuscript,
// validates inline citations against the reference list, and exports a
// finished task as Markdown, BibTeX, CSL-YAML and YAML.
package manuscript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medpaper/pkg/types"
)

// RequiredSections lists the sections every manuscript must contain, in
// reading order.
var RequiredSections = []string{"abstract", "introduction", "methods", "results", "discussion", "conclusion"}

var sectionTitles = map[string]string{
	"abstract":     "Abstract",
	"introduction": "Introduction",
	"methods":      "Methods",
	"results":      "Results",
	"discussion":   "Discussion",
	"conclusion":   "Conclusion",
}

// citationPattern matches inline citations: [Key] or [Key1; Key2].
var citationPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// SectionTitle returns the display heading for a section name.
func SectionTitle(name string) string {
	if t, ok := sectionTitles[name]; ok {
		return t
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + strings.ReplaceAll(name[1:], "_", " ")
}

// IsRequired reports whether name is one of RequiredSections.
func IsRequired(name string) bool {
	_, ok := sectionTitles[name]
	return ok
}

// Ordered returns the section names of sections with the required ones first
// in reading order and any extra sections after them, sorted.
func Ordered(sections map[string]string) []string {
	var names []string
	for _, n := range RequiredSections {
		if _, ok := sections[n]; ok {
			names = append(names, n)
		}
	}
	var extra []string
	for n := range sections {
		if !IsRequired(n) {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// MissingSections returns the required sections that are absent or blank.
func MissingSections(sections map[string]string) []string {
	var missing []string
	for _, n := range RequiredSections {
		if strings.TrimSpace(sections[n]) == "" {
			missing = append(missing, n)
		}
	}
	return missing
}

// ExtractCitationKeys finds all citation keys in text. It handles both single
// citations [Key] and multi-citations [Key1; Key2].
func ExtractCitationKeys(text string) []string {
	var keys []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, p := range strings.Split(m[1], ";") {
			key := strings.TrimSpace(p)
			if key != "" && isCitationKey(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// isCitationKey checks whether a string looks like a SurnameYear key. It
// rejects Markdown links, numbered footnotes and other bracket content.
func isCitationKey(s string) bool {
	hasLetter, hasDigit := false, false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '-', c == '_':
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// ValidateCitations returns the sorted, distinct citation keys used in
// sections that have no entry in refs.
func ValidateCitations(sections map[string]string, refs []types.Reference) []string {
	known := make(map[string]bool, len(refs))
	for _, r := range refs {
		known[r.CitationKey] = true
	}
	seen := make(map[string]bool)
	for _, text := range sections {
		for _, key := range ExtractCitationKeys(text) {
			if !known[key] {
				seen[key] = true
			}
		}
	}
	missing := make([]string, 0, len(seen))
	for key := range seen {
		missing = append(missing, key)
	}
	sort.Strings(missing)
	return missing
}

// StripUnknownCitations removes citation keys with no entry in refs from
// text. A bracket left without keys is dropped along with the space before
// it. It returns the new text and the distinct keys removed.
func StripUnknownCitations(text string, refs []types.Reference) (string, []string) {
	known := make(map[string]bool, len(refs))
	for _, r := range refs {
		known[r.CitationKey] = true
	}
	removedSet := make(map[string]bool)
	out := citationPattern.ReplaceAllStringFunc(text, func(m string) string {
		parts := strings.Split(m[1:len(m)-1], ";")
		var keep []string
		for _, p := range parts {
			key := strings.TrimSpace(p)
			if !isCitationKey(key) {
				// Not a citation group; leave it untouched.
				return m
			}
			if known[key] {
				keep = append(keep, key)
			} else {
				removedSet[key] = true
			}
		}
		if len(keep) == 0 {
			return ""
		}
		return "[" + strings.Join(keep, "; ") + "]"
	})
	if len(removedSet) == 0 {
		return text, nil
	}
	out = strings.NewReplacer(" .", ".", " ,", ",", "  ", " ").Replace(out)
	removed := make([]string, 0, len(removedSet))
	for k := range removedSet {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	return out, removed
}

// CitedReferences returns the references cited anywhere in sections, in
// reference-list order.
func CitedReferences(sections map[string]string, refs []types.Reference) []types.Reference {
	cited := make(map[string]bool)
	for _, text := range sections {
		for _, key := range ExtractCitationKeys(text) {
			cited[key] = true
		}
	}
	var out []types.Reference
	for _, r := range refs {
		if cited[r.CitationKey] {
			out = append(out, r)
		}
	}
	return out
}

// RenderMarkdown writes the manuscript as one Markdown document: title,
// sections in reading order, then the reference list.
func RenderMarkdown(task *types.MedicalPaperTask, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", task.Title)
	for _, name := range Ordered(task.Manuscript) {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", SectionTitle(name), strings.TrimSpace(task.Manuscript[name]))
	}
	if len(task.References) > 0 {
		b.WriteString("## References\n\n")
		for i, r := range task.References {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.CitationKey, formatReference(r))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// formatReference renders r in a compact Vancouver-like style.
func formatReference(r types.Reference) string {
	var parts []string
	if len(r.Authors) > 0 {
		authors := r.Authors
		etAl := ""
		if len(authors) > 6 {
			authors, etAl = authors[:6], ", et al"
		}
		parts = append(parts, strings.Join(authors, ", ")+etAl+".")
	}
	parts = append(parts, strings.TrimSuffix(r.Title, ".")+".")
	if r.Venue != "" {
		venue := r.Venue
		if r.Year > 0 {
			venue = fmt.Sprintf("%s. %d", venue, r.Year)
		}
		parts = append(parts, venue+".")
	} else if r.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d.", r.Year))
	}
	if r.DOI != "" {
		parts = append(parts, "doi:"+r.DOI)
	} else if r.URL != "" {
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, " ")
}

// GenerateBibTeX produces BibTeX entries for refs.
func GenerateBibTeX(refs []types.Reference) string {
	var b strings.Builder
	for _, r := range refs {
		entry := "article"
		if strings.HasPrefix(r.Identifier, "NCT") {
			entry = "misc"
		}
		fmt.Fprintf(&b, "@%s{%s,\n", entry, r.CitationKey)
		fmt.Fprintf(&b, "  title = {%s},\n", r.Title)
		if len(r.Authors) > 0 {
			fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(r.Authors, " and "))
		}
		if r.Year > 0 {
			fmt.Fprintf(&b, "  year = {%d},\n", r.Year)
		}
		if r.Venue != "" {
			fmt.Fprintf(&b, "  journal = {%s},\n", r.Venue)
		}
		if r.DOI != "" {
			fmt.Fprintf(&b, "  doi = {%s},\n", r.DOI)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "  url = {%s},\n", r.URL)
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}

// WriteYAML writes the whole task, manuscript and reports included, as YAML.
func WriteYAML(task *types.MedicalPaperTask, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(task); err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	return enc.Close()
}

// Export file names written by Export.
const (
	MarkdownFile = "manuscript.md"
	BibTeXFile   = "references.bib"
	CSLFile      = "references.yaml"
	TaskFile     = "task.yaml"
)

// Export writes the manuscript, its bibliography in BibTeX and CSL-YAML, and
// the task record into dir. It returns the paths written.
func Export(task *types.MedicalPaperTask, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{MarkdownFile, func(w io.Writer) error { return RenderMarkdown(task, w) }},
		{BibTeXFile, func(w io.Writer) error {
			_, err := io.WriteString(w, GenerateBibTeX(task.References))
			return err
		}},
		{CSLFile, func(w io.Writer) error { return WriteCSL(task.References, w) }},
		{TaskFile, func(w io.Writer) error { return WriteYAML(task, w) }},
	}

	var paths []string
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("creating %s: %w", wr.name, err)
		}
		err = wr.write(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("writing %s: %w", wr.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
