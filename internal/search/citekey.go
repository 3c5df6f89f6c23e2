// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/medpaper/pkg/types"
)

// CitationKey builds a SurnameYear key (e.g. "Smith2020") from the first
// author. Works without authors fall back to the first significant title
// word; "Anon" is used when neither exists. The year is omitted when unknown.
func CitationKey(ref types.Reference) string {
	base := ""
	if len(ref.Authors) > 0 {
		base = surname(ref.Authors[0])
	}
	if base == "" {
		base = titleWord(ref.Title)
	}
	if base == "" {
		base = "Anon"
	}
	if ref.Year > 0 {
		base += strconv.Itoa(ref.Year)
	}
	return base
}

// AssignCitationKeys sets a unique CitationKey on every reference in order.
// Collisions get a lowercase suffix: Smith2020, Smith2020a, Smith2020b.
// Keys already set are kept when unique.
func AssignCitationKeys(refs []types.Reference) {
	used := make(map[string]bool, len(refs))
	for i := range refs {
		key := refs[i].CitationKey
		if key == "" {
			key = CitationKey(refs[i])
		}
		refs[i].CitationKey = uniqueKey(key, used)
		used[refs[i].CitationKey] = true
	}
}

func uniqueKey(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 0; ; n++ {
		candidate := base + suffix(n)
		if !used[candidate] {
			return candidate
		}
	}
}

// suffix returns a, b, ..., z, aa, ab, ...
func suffix(n int) string {
	s := ""
	for {
		s = string(rune('a'+n%26)) + s
		n = n/26 - 1
		if n < 0 {
			return s
		}
	}
}

// surname extracts the family name from "Family Initials" (PubMed),
// "Given Family" (OpenAlex) or "Family, Given" forms.
func surname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.Index(name, ","); i > 0 {
		return asciiWord(name[:i])
	}
	fields := strings.Fields(name)
	if len(fields) == 1 {
		return asciiWord(fields[0])
	}
	last := fields[len(fields)-1]
	// PubMed style: "Smith JA" ends with an all-caps initials token.
	if isInitials(last) {
		return asciiWord(strings.Join(fields[:len(fields)-1], ""))
	}
	return asciiWord(last)
}

func isInitials(s string) bool {
	if len(s) > 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "on": true, "in": true,
	"for": true, "and": true, "to": true, "with": true,
}

func titleWord(title string) string {
	for _, w := range strings.Fields(title) {
		if stopWords[strings.ToLower(w)] {
			continue
		}
		if s := asciiWord(w); s != "" {
			return s
		}
	}
	return ""
}

// asciiWord strips diacritics and non-letters and capitalizes the result,
// so "Müller-Lüdenscheidt" becomes "MullerLudenscheidt".
func asciiWord(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	return strings.ToUpper(out[:1]) + out[1:]
}
