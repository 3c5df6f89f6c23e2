// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/medpaper/pkg/types"
)

func TestCitationKey(t *testing.T) {
	tests := []struct {
		name string
		ref  types.Reference
		want string
	}{
		{"pubmed style", types.Reference{Authors: []string{"Ridker PM"}, Year: 2008}, "Ridker2008"},
		{"given family", types.Reference{Authors: []string{"Paul M Ridker"}, Year: 2008}, "Ridker2008"},
		{"family comma given", types.Reference{Authors: []string{"Ridker, Paul"}, Year: 2008}, "Ridker2008"},
		{"diacritics", types.Reference{Authors: []string{"Müller K"}, Year: 2021}, "Muller2021"},
		{"hyphenated", types.Reference{Authors: []string{"Anne Smith-Jones"}, Year: 2019}, "SmithJones2019"},
		{"multi-word surname", types.Reference{Authors: []string{"van der Berg J"}, Year: 2017}, "VanderBerg2017"},
		{"no year", types.Reference{Authors: []string{"Lopez M"}}, "Lopez"},
		{"title fallback", types.Reference{Title: "The Effect of Statins", Year: 2010}, "Effect2010"},
		{"anonymous", types.Reference{}, "Anon"},
		{"organisation", types.Reference{Authors: []string{"AstraZeneca"}, Year: 2003}, "AstraZeneca2003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CitationKey(tt.ref))
		})
	}
}

func TestAssignCitationKeys(t *testing.T) {
	refs := []types.Reference{
		{Authors: []string{"Smith J"}, Year: 2020},
		{Authors: []string{"Smith A"}, Year: 2020},
		{Authors: []string{"Smith B"}, Year: 2020},
		{Authors: []string{"Jones K"}, Year: 2020},
		{CitationKey: "Preset2001"},
		{CitationKey: "Jones2020"},
	}
	AssignCitationKeys(refs)
	got := make([]string, len(refs))
	for i, r := range refs {
		got[i] = r.CitationKey
	}
	assert.Equal(t, []string{"Smith2020", "Smith2020a", "Smith2020b", "Jones2020", "Preset2001", "Jones2020a"}, got)
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "a", suffix(0))
	assert.Equal(t, "z", suffix(25))
	assert.Equal(t, "aa", suffix(26))
	assert.Equal(t, "ab", suffix(27))
}
