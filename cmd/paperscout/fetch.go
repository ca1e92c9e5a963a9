// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperscout/internal/acquire"
	"github.com/pdiddy/paperscout/internal/ledger"
	"github.com/pdiddy/paperscout/internal/pdfmeta"
	"github.com/pdiddy/paperscout/internal/records"
	"github.com/pdiddy/paperscout/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [records...]",
	Short: "Download papers listed in record files",
	Long: `Fetch downloads the PDF of every record in the given YAML or JSON files
into the download directory, naming each file after the paper title. Records
without a pdf_url are skipped. When Zotero credentials are configured, each
downloaded paper is also filed into the library, tagged with its categories.

A single paper can be fetched with --url (a PDF URL, arXiv id or DOI) and
--title. For an arXiv id the title and the rest of the metadata can be left
to an arXiv lookup. A DOI is resolved to an open-access PDF through
OpenAlex. The command exits non-zero if any download failed.

Each run is recorded in the download history (see --ledger and history),
kept in the user cache directory unless --ledger says otherwise.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("url", "", "fetch one paper from a PDF URL, arXiv id or DOI")
	fetchCmd.Flags().String("title", "", "title of the --url paper (names the file)")
	fetchCmd.Flags().StringSlice("category", nil, "category of the --url paper, used as a tag (repeatable)")
	fetchCmd.Flags().Bool("no-catalog", false, "download only, even if Zotero is configured")
	fetchCmd.Flags().Bool("no-ledger", false, "do not record this run in the download history")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ref, _ := cmd.Flags().GetString("url")
	title, _ := cmd.Flags().GetString("title")
	categories, _ := cmd.Flags().GetStringSlice("category")
	noCatalog, _ := cmd.Flags().GetBool("no-catalog")
	noLedger, _ := cmd.Flags().GetBool("no-ledger")

	recs, err := collectRecords(cmd.Context(), appConfig, args, ref, title, categories)
	if err != nil {
		return err
	}

	summary, err := fetchPapers(cmd.Context(), cmd.OutOrStdout(), appConfig, recs, fetchOptions{
		catalog: !noCatalog,
		ledger:  !noLedger,
	})
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed to download", summary.Failed)
	}
	return nil
}

// collectRecords loads the record files and appends the one-off --url
// record, if any. An arXiv reference without a title is looked up on arXiv.
func collectRecords(ctx context.Context, cfg types.Config, paths []string, ref, title string, categories []string) ([]types.PaperRecord, error) {
	var recs []types.PaperRecord
	for _, p := range paths {
		loaded, err := records.LoadPapers(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		recs = append(recs, loaded...)
	}

	if ref != "" {
		rec, err := oneOffRecord(ctx, cfg, ref, title, categories)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		return nil, errors.New("provide one or more record files, or --url")
	}
	return recs, nil
}

func oneOffRecord(ctx context.Context, cfg types.Config, ref, title string, categories []string) (types.PaperRecord, error) {
	src, err := acquire.ResolveSource(ref)
	if err != nil {
		return types.PaperRecord{}, err
	}

	if title == "" && src.Kind != acquire.SourceArxiv {
		return types.PaperRecord{}, errors.New("--title is required with --url unless it is an arXiv id")
	}

	client := &http.Client{Timeout: cfg.Acquisition.Timeout}
	if src.Kind == acquire.SourceDOI {
		if src, err = src.ResolvePDF(ctx, client, cfg.Acquisition.UserAgent); err != nil {
			return types.PaperRecord{}, fmt.Errorf("resolving DOI %s: %w", src.ID, err)
		}
	}

	if title == "" {
		rec, err := acquire.LookupArxiv(ctx, client, src.ID, cfg.Acquisition.UserAgent)
		if err != nil {
			return types.PaperRecord{}, err
		}
		if len(categories) > 0 {
			rec.Categories = categories
		}
		return rec, nil
	}

	rec := types.PaperRecord{Title: title, Categories: categories}
	src.Apply(&rec)
	return rec, nil
}

type fetchOptions struct {
	catalog bool
	ledger  bool
}

// fetchSummary counts the outcomes of a fetch run.
type fetchSummary struct {
	RunID         string
	Downloaded    int
	Cataloged     int
	CatalogFailed int
	Skipped       int
	Failed        int
}

// fetchPapers downloads recs, reports each outcome to w and records the
// run in the ledger.
func fetchPapers(ctx context.Context, w io.Writer, cfg types.Config, recs []types.PaperRecord, opts fetchOptions) (fetchSummary, error) {
	acqOpts := []acquire.Option{acquire.WithLogger(slog.Default())}
	if opts.catalog {
		if cat := optionalCataloger(cfg); cat != nil {
			acqOpts = append(acqOpts, acquire.WithFiler(cat, cfg.Library.Collection))
		}
	}

	acq, err := acquire.New(nil, cfg.Acquisition, acqOpts...)
	if err != nil {
		return fetchSummary{}, err
	}

	results := acq.FetchAll(ctx, recs)
	summary := fetchSummary{RunID: ledger.NewRunID()}
	for _, res := range results {
		switch {
		case res.Skipped:
			summary.Skipped++
			fmt.Fprintf(w, "skipped    %s (no pdf_url)\n", res.Record.Title)
		case res.Err != nil:
			summary.Failed++
			fmt.Fprintf(w, "failed     %s: %v\n", res.Record.Title, res.Err)
		default:
			summary.Downloaded++
			fmt.Fprintf(w, "downloaded %s\n", res.Path)
			if res.ItemKey != "" {
				summary.Cataloged++
				fmt.Fprintf(w, "  filed as %s\n", res.ItemKey)
			}
			if res.CatalogErr != nil {
				summary.CatalogFailed++
				fmt.Fprintf(w, "  not filed: %v\n", res.CatalogErr)
			}
		}
	}

	if opts.ledger {
		recordRun(ctx, cfg.LedgerPath, summary.RunID, results)
	}

	fmt.Fprintf(w, "\ndownloaded: %d, filed: %d, skipped: %d, failed: %d\n",
		summary.Downloaded, summary.Cataloged, summary.Skipped, summary.Failed)
	return summary, nil
}

// recordRun writes results to the ledger. Ledger problems never fail the
// run.
func recordRun(ctx context.Context, path, runID string, results []acquire.FetchResult) {
	store, err := ledger.Open(path)
	if err != nil {
		slog.Warn("download history unavailable", "path", path, "error", err)
		return
	}
	defer store.Close()

	if err := store.RecordRun(ctx, runID, results, pageCount); err != nil {
		slog.Warn("could not record download history", "error", err)
	}
}

func pageCount(path string) int {
	n, err := pdfmeta.PageCount(path)
	if err != nil {
		slog.Debug("page count unavailable", "path", path, "error", err)
		return 0
	}
	return n
}
