// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const systemPrompt = `You are part of a team preparing a peer-reviewed medical research manuscript. Be precise, cite only the references you are given, and never invent data.`

var funcs = template.FuncMap{
	"join": strings.Join,
}

// queryPromptTmpl asks for a literature database query for the research question.
var queryPromptTmpl = template.Must(template.New("query").Funcs(funcs).Parse(`Turn the research question below into a literature search for PubMed, ClinicalTrials.gov and OpenAlex.

Research question: {{.ResearchQuestion}}
Paper type: {{.PaperType}}
{{- if .Keywords}}
Suggested keywords: {{join .Keywords ", "}}
{{- end}}
{{- if gt .Round 0}}

Earlier searches found only {{.Have}} usable references. Use broader terms: drop secondary qualifiers and prefer common MeSH headings.
{{- end}}

Respond with a JSON object: {"query": "<short free-text query>", "keywords": ["<term>", ...]}. Keep the query under ten words and give at most three keywords.
`))

// planPromptTmpl asks for a statistical analysis plan when no raw data is available.
var planPromptTmpl = template.Must(template.New("plan").Parse(`Write the statistical analysis plan for the study below. No raw data is available, so describe the analyses rather than reporting results.

Research question: {{.ResearchQuestion}}
Paper type: {{.PaperType}}
{{- with .StudyDesign}}
Design: {{.Design}}
Population: {{.Population}}
Intervention/exposure: {{.Intervention}}
Comparator: {{.Comparator}}
Outcomes: {{range $i, $o := .Outcomes}}{{if $i}}, {{end}}{{$o}}{{end}}
Follow-up: {{.FollowUp}}
{{- if .SampleSize}}
Planned sample size: {{.SampleSize}}
{{- end}}
{{- end}}

Respond with a JSON object: {"outcome": "<primary outcome>", "summary": "<analysis plan, one paragraph>"}.
`))

// writerPromptTmpl asks for manuscript sections.
var writerPromptTmpl = template.Must(template.New("writer").Funcs(funcs).Parse(`Write the following sections of a {{.PaperTypeName}} manuscript: {{join .Targets ", "}}.

Title: {{.In.Title}}
Research question: {{.In.ResearchQuestion}}
{{- with .In.StudyDesign}}
Design: {{.Design}}; population: {{.Population}}; intervention: {{.Intervention}}; comparator: {{.Comparator}}
{{- end}}
{{- with .In.StatsReport}}

Statistical results:
{{.Summary}}
{{- end}}

References (cite inline as [Key] or [Key1; Key2], using only these keys):
{{- range .In.References}}
[{{.CitationKey}}] {{.Title}}{{if .Year}} ({{.Year}}){{end}}
{{- end}}
{{- if .Directives}}

This is a revision. Address every instruction below:
{{- range .Directives}}
- {{.Section}}{{if .Item}} (item {{.Item}}){{end}}: {{.Instruction}}
{{- end}}
{{- end}}
{{- if .Current}}

Current text of the sections being revised:
{{- range $name, $text := .Current}}

## {{$name}}
{{$text}}
{{- end}}
{{- end}}

Respond with a JSON object: {"sections": {"<section name>": "<text>", ...}} using exactly these lower-case section names: {{join .Targets ", "}}.
`))

// compliancePromptTmpl asks for a verdict on every checklist item.
var compliancePromptTmpl = template.Must(template.New("compliance").Parse(`Assess the manuscript below against the {{.Checklist.Title}} reporting checklist.

For every item give a verdict: PASS (fully reported), WARN (partially reported) or FAIL (missing). For WARN and FAIL add a one-sentence finding and a concrete suggestion.

Checklist:
{{- range .Checklist.Items}}
{{.Number}} [{{.Section}}] {{.Topic}}: {{.Requirement}}
{{- end}}

Manuscript:
{{- range $name, $text := .Sections}}

## {{$name}}
{{$text}}
{{- end}}

Respond with a JSON object: {"items": [{"number": "<item number>", "verdict": "PASS|WARN|FAIL", "finding": "...", "suggestion": "..."}]} with one entry per checklist item.
`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Response schemas passed to providers that support constrained output.
var (
	querySchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":    map[string]any{"type": "string"},
			"keywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"query"},
	}
	planSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"outcome": map[string]any{"type": "string"},
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"summary"},
	}
	writerSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []string{"sections"},
	}
	complianceSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"number":     map[string]any{"type": "string"},
						"verdict":    map[string]any{"type": "string", "enum": []string{"PASS", "WARN", "FAIL"}},
						"finding":    map[string]any{"type": "string"},
						"suggestion": map[string]any{"type": "string"},
					},
					"required": []string{"number", "verdict"},
				},
			},
		},
		"required": []string{"items"},
	}
)
