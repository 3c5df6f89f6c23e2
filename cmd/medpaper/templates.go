// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medpaper/internal/checklist"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the supported paper types and their reporting checklists",
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpls := checklist.Templates()
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tmpls)
		}

		fmt.Fprintf(out, "%-14s  %-36s  %-8s  %s\n", "Type", "Name", "Checklist", "Description")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, t := range tmpls {
			fmt.Fprintf(out, "%-14s  %-36s  %-8s  %s\n", t.Type, t.Name, t.Checklist, t.Description)
		}
		return nil
	},
}

func init() {
	templatesCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(templatesCmd)
}
