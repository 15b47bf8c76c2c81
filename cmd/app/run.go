package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cfgpkg "github.com/sehenaz/docsort/internal/config"
	"github.com/sehenaz/docsort/internal/export"
	"github.com/sehenaz/docsort/internal/ingest"
	"github.com/sehenaz/docsort/internal/page"
	"github.com/sehenaz/docsort/internal/pipeline"
	"github.com/sehenaz/docsort/internal/storage"
)

func newRunCmd(cfg *cfgpkg.Config) *cobra.Command {
	var (
		mode     string
		out      string
		category string
	)

	cmd := &cobra.Command{
		Use:   "run FILE.pdf [FILE.pdf...]",
		Short: "Process PDFs once and optionally export the result",
		Example: `  # Classify and print a page table
  docsort run bundle.pdf

  # Split into one PDF per document type
  docsort run --export separated --out ./out a.pdf b.pdf

  # Only the KYC pages as JPEGs
  docsort run --export images --category KYC --out ./out bundle.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var exportMode export.Mode
			if mode != "" {
				m, err := export.ParseMode(mode)
				if err != nil {
					return err
				}
				exportMode = m
			}
			filter := page.FilterAll
			if category != "" && category != string(page.FilterAll) {
				c, ok := page.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q", category)
				}
				filter = c
			}

			sources := make([]ingest.Source, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sources = append(sources, ingest.Source{Name: filepath.Base(path), Data: data})
			}

			runCfg := *cfg
			if out != "" {
				runCfg.Export.OutputDir = out
				runCfg.Export.S3Bucket = ""
			}
			a, err := newApp(ctx, runCfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := pipeline.NewSession(a.deps)
			rep, err := sess.Process(ctx, sources)
			if err != nil {
				return err
			}
			for _, name := range rep.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: not a PDF\n", name)
			}

			visible := page.Filter(sess.Store().All(), filter)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOCUMENT\tPAGE\tCATEGORY\tSUBCATEGORY")
			for _, p := range visible {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.OriginalFileID, p.PageNumber, p.Category, p.SubCategory)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d pages, %d fallbacks\n", rep.Pages, rep.Summary.Fallbacks)

			if exportMode == "" {
				return nil
			}
			ids := page.SelectedIDs(page.SelectVisible(nil, visible))
			art, err := sess.Export(ctx, ids, exportMode)
			if err != nil {
				return err
			}
			if art.Location == "" {
				// no sink configured, drop the artifact in the working directory
				d, err := storage.NewDirSink(".")
				if err != nil {
					return err
				}
				if art.Location, err = d.Put(ctx, art.Name, art.ContentType, art.Data); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%d files) to %s\n", art.Name, len(art.Files), art.Location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "export", "e", "", "Export mode: merged, separated or images")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Directory to write the export to")
	cmd.Flags().StringVarP(&category, "category", "c", "ALL", "Only show and export pages of this category")
	return cmd
}
