// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medpaper/internal/manuscript"
	"github.com/pdiddy/medpaper/internal/paper"
	"github.com/pdiddy/medpaper/internal/store"
	"github.com/pdiddy/medpaper/pkg/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, run, inspect and revise manuscript tasks",
	Long: `Task manages manuscript tasks. A task starts pending, runs through the
supervisor to completed or failed, and a completed task can be sent back
for an operator revision with free-text feedback.`,
}

// --- create subcommand ---

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending task",
	RunE:  runTaskCreate,
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	req := paper.CreateRequest{}
	req.UserID, _ = cmd.Flags().GetString("user")
	req.Title, _ = cmd.Flags().GetString("title")
	req.ResearchQuestion, _ = cmd.Flags().GetString("question")
	req.MaxRevisions, _ = cmd.Flags().GetInt("max-revisions")
	paperType, _ := cmd.Flags().GetString("type")
	req.PaperType = types.PaperType(paperType)

	designFile, _ := cmd.Flags().GetString("design")
	if designFile != "" {
		req.StudyDesign = &types.StudyDesign{}
		if err := readYAML(designFile, req.StudyDesign); err != nil {
			return err
		}
	}
	dataFile, _ := cmd.Flags().GetString("data")
	if dataFile != "" {
		req.RawData = &types.Dataset{}
		if err := readYAML(dataFile, req.RawData); err != nil {
			return err
		}
	}

	runNow, _ := cmd.Flags().GetBool("run")
	svc, closeFn, err := openService(cmd.Context(), runNow)
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := svc.CreateTask(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	if !runNow {
		return nil
	}
	task, err := svc.Run(cmd.Context(), id)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), task)
	return nil
}

// --- run subcommand ---

var taskRunCmd = &cobra.Command{
	Use:   "run <task-id>...",
	Short: "Run pending tasks through the supervisor",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeFn()
		svc.Concurrency, _ = cmd.Flags().GetInt("concurrency")

		tasks, err := svc.RunAll(cmd.Context(), args)
		for _, t := range tasks {
			if t != nil {
				printOutcome(cmd.OutOrStdout(), t)
			}
		}
		return err
	},
}

// --- revise subcommand ---

var taskReviseCmd = &cobra.Command{
	Use:   "revise <task-id>",
	Short: "Revise a completed manuscript with operator feedback",
	Long: `Revise sends a completed task back through writing and compliance with
the given feedback applied to the named sections (all sections when
--section is omitted).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedback, _ := cmd.Flags().GetString("feedback")
		sections, _ := cmd.Flags().GetStringSlice("section")

		svc, closeFn, err := openService(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeFn()

		task, err := svc.RequestRevision(cmd.Context(), args[0], feedback, sections)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), task)
		return nil
	},
}

// --- show subcommand ---

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Print a task as YAML, JSON or rendered Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		svc, closeFn, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeFn()

		task, err := svc.Task(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch format {
		case "yaml", "":
			return manuscript.WriteYAML(task, out)
		case "json":
			return writeJSON(out, task)
		case "markdown", "md":
			return manuscript.RenderMarkdown(task, out)
		default:
			return fmt.Errorf("unsupported format %q: use yaml, json or markdown", format)
		}
	},
}

// --- list subcommand ---

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := store.ListOptions{}
		opts.UserID, _ = cmd.Flags().GetString("user")
		status, _ := cmd.Flags().GetString("status")
		opts.Status = types.TaskStatus(status)
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		svc, closeFn, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeFn()

		tasks, err := svc.Tasks(cmd.Context(), opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-13s  %-9s  %-5s  %-3s  %s\n", "ID", "Type", "Status", "Score", "Rev", "Title")
		fmt.Fprintln(out, strings.Repeat("-", 110))
		for _, t := range tasks {
			score := "-"
			if t.ComplianceReport != nil {
				score = fmt.Sprintf("%.2f", t.ComplianceReport.OverallScore)
			}
			fmt.Fprintf(out, "%-36s  %-13s  %-9s  %-5s  %-3d  %s\n", t.ID, t.PaperType, t.Status, score, t.RevisionRound, t.Title)
		}
		return nil
	},
}

// --- messages subcommand ---

var taskMessagesCmd = &cobra.Command{
	Use:   "messages <task-id>",
	Short: "Print the A2A audit trail of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeFn()

		msgs, err := svc.Messages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, msgs)
		}
		fmt.Fprintf(out, "%-4s  %-24s  %-11s  %-21s  %-6s  %-3s  %-8s  %s\n",
			"#", "Time", "Receiver", "Intent", "Status", "Try", "Tokens", "Error")
		fmt.Fprintln(out, strings.Repeat("-", 110))
		for _, m := range msgs {
			errText := ""
			if m.Error != nil {
				errText = m.Error.Kind + ": " + m.Error.Message
			}
			fmt.Fprintf(out, "%-4d  %-24s  %-11s  %-21s  %-6s  %-3d  %-8d  %s\n",
				m.ID, m.CreatedAt.Format("2006-01-02T15:04:05.000Z"), m.Receiver, m.Intent, m.Status,
				m.Attempt, m.Metrics.TokensIn+m.Metrics.TokensOut, errText)
		}
		fmt.Fprintf(out, "\n%d messages\n", len(msgs))
		return nil
	},
}

// --- export subcommand ---

var taskExportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Write the manuscript, BibTeX, CSL references and task YAML to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("out")

		svc, closeFn, err := openService(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeFn()

		task, err := svc.Task(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if dir == "" {
			dir = "output/" + task.ID
		}
		files, err := manuscript.Export(task, dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

// --- shared helpers ---

func printOutcome(w io.Writer, t *types.MedicalPaperTask) {
	fmt.Fprintf(w, "%s  %s", t.ID, t.Status)
	if t.ComplianceReport != nil {
		fmt.Fprintf(w, "  %s %.2f", t.ComplianceReport.ChecklistType, t.ComplianceReport.OverallScore)
	}
	fmt.Fprintf(w, "  revisions=%d  references=%d", t.RevisionRound, len(t.References))
	if t.LastError != nil {
		fmt.Fprintf(w, "  %s: %s", t.LastError.Kind, t.LastError.Message)
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	// Create flags.
	taskCreateCmd.Flags().String("user", "", "requesting user id")
	taskCreateCmd.Flags().String("title", "", "working title of the manuscript")
	taskCreateCmd.Flags().String("type", "", "paper type: rct, cohort, meta_analysis")
	taskCreateCmd.Flags().String("question", "", "research question")
	taskCreateCmd.Flags().String("design", "", "YAML file with the study design")
	taskCreateCmd.Flags().String("data", "", "YAML file with raw group data or study effects")
	taskCreateCmd.Flags().Int("max-revisions", 0, "revision cap for this task (0 = configured default)")
	taskCreateCmd.Flags().Bool("run", false, "run the task immediately")

	taskRunCmd.Flags().Int("concurrency", 2, "maximum tasks run at once")

	taskReviseCmd.Flags().String("feedback", "", "operator feedback applied to the sections")
	taskReviseCmd.Flags().StringSlice("section", nil, "section to revise (repeatable)")
	_ = taskReviseCmd.MarkFlagRequired("feedback")

	taskShowCmd.Flags().String("format", "yaml", "output format: yaml, json or markdown")

	taskListCmd.Flags().String("user", "", "filter by user id")
	taskListCmd.Flags().String("status", "", "filter by status")
	taskListCmd.Flags().Int("limit", 50, "maximum tasks listed (0 = all)")
	taskListCmd.Flags().Bool("json", false, "output as JSON")

	taskMessagesCmd.Flags().Bool("json", false, "output as JSON")

	taskExportCmd.Flags().String("out", "", "output directory (default output/<task-id>)")

	// Wire subcommands.
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskReviseCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskMessagesCmd)
	taskCmd.AddCommand(taskExportCmd)

	rootCmd.AddCommand(taskCmd)
}
