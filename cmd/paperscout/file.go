// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperscout/internal/pdfmeta"
	"github.com/pdiddy/paperscout/internal/records"
	"github.com/pdiddy/paperscout/pkg/types"
)

var fileCmd = &cobra.Command{
	Use:   "file [entries...]",
	Short: "File local PDFs into the Zotero library",
	Long: `File reads catalog entries (path, metadata, tags) from YAML or JSON files
and creates one library item per entry, linked to --collection and with the
PDF attached. Entries whose file is missing are filed without an attachment.
Unless --no-doi is given, an entry without a DOI gets one read from its PDF
when the first pages print it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFile,
}

func init() {
	fileCmd.Flags().Bool("no-doi", false, "do not read missing DOIs from the PDFs")

	rootCmd.AddCommand(fileCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	noDOI, _ := cmd.Flags().GetBool("no-doi")

	var entries []types.CatalogEntry
	for _, p := range args {
		loaded, err := records.LoadCatalogEntries(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		entries = append(entries, loaded...)
	}

	failed, err := fileEntries(cmd.Context(), cmd.OutOrStdout(), appConfig, entries, !noDOI)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d entr(ies) could not be filed", failed)
	}
	return nil
}

// fileEntries files entries into the configured collection, reporting
// each outcome to w. It returns the number of failed entries.
func fileEntries(ctx context.Context, w io.Writer, cfg types.Config, entries []types.CatalogEntry, fillDOI bool) (int, error) {
	cat, err := newCataloger(cfg)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, errors.New("no catalog entries to file")
	}

	if fillDOI {
		for i := range entries {
			if pdfmeta.FillDOI(&entries[i]) {
				fmt.Fprintf(w, "doi        %s: %s\n", entries[i].Metadata.Title, entries[i].Metadata.DOI)
			}
		}
	}

	failed := 0
	for _, r := range cat.FileAll(ctx, entries, cfg.Library.Collection) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "failed     %s: %v\n", r.Entry.Metadata.Title, r.Err)
			continue
		}
		fmt.Fprintf(w, "filed      %s as %s\n", r.Entry.Metadata.Title, r.ItemKey)
	}

	fmt.Fprintf(w, "\nfiled: %d, failed: %d\n", len(entries)-failed, failed)
	return failed, nil
}
