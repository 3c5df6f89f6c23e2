// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/internal/checklist"
	"github.com/pdiddy/medpaper/internal/llm"
	"github.com/pdiddy/medpaper/internal/manuscript"
	"github.com/pdiddy/medpaper/internal/workflow"
)

// Writer drafts or revises manuscript sections. Citations to keys outside
// the reference list are stripped before the sections are returned.
type Writer struct {
	LLMOptions
	Logger *slog.Logger
}

func (a *Writer) Name() string { return NameWriter }

func (a *Writer) Handle(ctx context.Context, req a2a.Message) a2a.Message {
	return handle(ctx, req, IntentWriteManuscript, a.write)
}

type writerPromptData struct {
	In            WriterInput
	PaperTypeName string
	Targets       []string
	Directives    []workflow.Directive
	Current       map[string]string
}

type writerReply struct {
	Sections map[string]string `json:"sections"`
}

func (a *Writer) write(ctx context.Context, in WriterInput) (WriterOutput, a2a.Metrics, error) {
	var m a2a.Metrics
	if strings.TrimSpace(in.ResearchQuestion) == "" {
		return WriterOutput{}, m, a2a.NewError(a2a.KindValidation, "research question is empty")
	}

	targets := in.Targets
	if len(targets) == 0 {
		targets = manuscript.RequiredSections
	}
	data := writerPromptData{
		In:            in,
		PaperTypeName: paperTypeName(in),
		Targets:       targets,
		Directives:    in.Directives,
	}
	if len(in.Directives) > 0 {
		data.Current = make(map[string]string)
		for _, t := range targets {
			if text := in.Sections[t]; text != "" {
				data.Current[t] = text
			}
		}
	}

	prompt, err := render(writerPromptTmpl, data)
	if err != nil {
		return WriterOutput{}, m, err
	}
	var reply writerReply
	if err := a.complete(ctx, a.request(systemPrompt, prompt, writerSchema), &reply, &m); err != nil {
		return WriterOutput{}, m, err
	}

	out := WriterOutput{Sections: make(map[string]string, len(targets))}
	got := make(map[string]string, len(reply.Sections))
	for name, text := range reply.Sections {
		got[strings.ToLower(strings.TrimSpace(name))] = text
	}
	var missing []string
	removed := make(map[string]bool)
	for _, t := range targets {
		text := strings.TrimSpace(got[t])
		if text == "" {
			missing = append(missing, t)
			continue
		}
		text, dropped := manuscript.StripUnknownCitations(text, in.References)
		for _, k := range dropped {
			removed[k] = true
		}
		out.Sections[t] = text
	}
	if len(missing) > 0 {
		return WriterOutput{}, m, &llm.OutputError{
			Provider: a.Provider.Name(),
			Attempts: 1,
			Err:      fmt.Errorf("reply is missing sections: %s", strings.Join(missing, ", ")),
		}
	}
	for k := range removed {
		out.RemovedCitations = append(out.RemovedCitations, k)
	}
	if len(out.RemovedCitations) > 0 {
		sort.Strings(out.RemovedCitations)
		a.logger().Warn("removed unknown citations", "keys", out.RemovedCitations)
	}
	return out, m, nil
}

func paperTypeName(in WriterInput) string {
	for _, tmpl := range checklist.Templates() {
		if tmpl.Type == in.PaperType {
			return tmpl.Name
		}
	}
	return string(in.PaperType)
}

func (a *Writer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
