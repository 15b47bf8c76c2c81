package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/sehenaz/docsort/internal/config"
)

func newHistoryCmd(cfg *cfgpkg.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the processed-document history",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger := openLedger(cmd.Context(), *cfg)
			defer ledger.Close()

			entries := ledger.ReadAll(cmd.Context())
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no history")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UPLOADED\tNAME\tSIZE\tPAGES\tCATEGORIES")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					e.Uploaded().Format(time.DateTime), e.Name, e.Size, e.PageCount, formatSummary(e.CategorySummary))
			}
			return tw.Flush()
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger := openLedger(cmd.Context(), *cfg)
			defer ledger.Close()
			ledger.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func formatSummary(summary map[string]int) string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, summary[k])
	}
	return strings.Join(parts, " ")
}
