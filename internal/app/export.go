package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"listing-watch/internal/storage"
)

// Export renders one listing's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.SourceID == "" {
		return errors.New("--listing is required")
	}
	if opts.Source == "" {
		opts.Source = a.newExtractor().Source()
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	// One price per listing per day, so the default window is one day
	// per exportable point.
	from := to.AddDate(0, 0, -opts.MaxPoints)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	history, err := store.ListPriceHistory(ctx, opts.Source, opts.SourceID, from, to)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		a.Logger.Info().Str("source", opts.Source).Str("source_id", opts.SourceID).Msg("no price history found for export window")
		return nil
	}

	downsampled := downsampleHistory(history, opts.MaxPoints)
	a.Logger.Info().Int("total", len(history)).Int("exported", len(downsampled)).Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, opts, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, opts, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleHistory(history []storage.PriceSnapshot, max int) []storage.PriceSnapshot {
	if max <= 0 || len(history) <= max {
		return history
	}

	result := make([]storage.PriceSnapshot, 0, max)
	step := float64(len(history)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(history) {
			idx = len(history) - 1
		}
		result = append(result, history[idx])
	}
	return result
}

func writeHistoryCSV(path string, opts ExportOptions, history []storage.PriceSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "source", "source_id", "price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snapshot := range history {
		price := ""
		if snapshot.Price != nil {
			price = snapshot.Price.String()
		}
		record := []string{
			snapshot.RecordedAt.Format("2006-01-02"),
			opts.Source,
			opts.SourceID,
			price,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, opts ExportOptions, history []storage.PriceSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(history))
	prices := make([]float64, 0, len(history))
	for _, snapshot := range history {
		if snapshot.Price == nil {
			continue
		}
		x = append(x, snapshot.RecordedAt)
		prices = append(prices, snapshot.Price.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("not enough priced samples to chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    opts.Source + "/" + opts.SourceID,
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
