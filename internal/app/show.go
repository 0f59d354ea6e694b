package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recently updated listings, or recent cycle outcomes when
// opts.Runs is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Runs {
		return a.showRuns(ctx, opts.Limit)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show listings")
	}
	defer closeStore()

	listings, err := store.ListRecentListings(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Fprintln(os.Stdout, "no listings found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Source\tID\tTitle\tArea\tPrice\tLast Price At\tUpdated (UTC)")

	for _, listing := range listings {
		lastAt := ""
		if listing.LastRecordedAt != nil {
			lastAt = listing.LastRecordedAt.Format("2006-01-02")
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			listing.Source,
			listing.SourceID,
			sanitizeInline(listing.Title),
			derefString(listing.Area),
			formatPrice(listing.LastPrice),
			lastAt,
			listing.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showRuns(ctx context.Context, limit int) error {
	recorder := a.newRecorder()
	if recorder == nil {
		return errors.New("results.url not configured; cannot show runs")
	}
	defer recorder.Close()

	outcomes, err := recorder.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(os.Stdout, "no recorded runs")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tDuration\tProcessed\tSynced\tStatus\tError")

	for _, outcome := range outcomes {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%s\t%s\n",
			outcome.StartedAt.UTC().Format(time.RFC3339),
			outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond),
			outcome.Processed,
			outcome.Synced,
			outcome.Status,
			sanitizeInline(outcome.Error),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatPrice(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
