package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"listing-watch/internal/config"
	"listing-watch/internal/extractor"
	"listing-watch/internal/fetcher"
	"listing-watch/internal/ingest"
	"listing-watch/internal/results"
	"listing-watch/internal/scheduler"
	"listing-watch/internal/service"
	"listing-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.HTMLFetcher {
	return fetcher.NewPage(fetcher.PageOptions{
		UserAgent:     a.Config.Scrape.UserAgent,
		Delay:         a.Config.Scrape.Delay,
		Timeout:       a.Config.Scrape.Timeout,
		RespectRobots: a.Config.Scrape.RespectRobots,
		MaxRetries:    a.Config.Scrape.MaxRetries,
	}, nil, a.Logger)
}

func (a *App) newExtractor() extractor.Extractor {
	return extractor.NewExample()
}

func (a *App) newSyncer() ingest.Syncer {
	if !a.Config.SyncEnabled() {
		return nil
	}
	return ingest.NewClient(ingest.Options{
		BaseURL:   a.Config.Ingest.BaseURL,
		Secret:    a.Config.Ingest.Secret,
		Timeout:   a.Config.Ingest.Timeout,
		UserAgent: a.Config.Scrape.UserAgent,
	}, a.Logger)
}

func (a *App) newRecorder() *results.Recorder {
	if a.Config.Results.URL == "" {
		return nil
	}
	recorder, err := results.NewRecorder(results.Options{
		URL:        a.Config.Results.URL,
		Key:        a.Config.Results.Key,
		MaxEntries: a.Config.Results.MaxEntries,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("results recorder disabled")
		return nil
	}
	return recorder
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store) *service.Service {
	var listings storage.ListingStore
	var snapshots storage.SnapshotStore
	if store != nil {
		listings = store
		snapshots = store
	}
	return service.New(a.newFetcher(), a.newExtractor(), listings, snapshots, a.newSyncer(), a.Logger)
}

// Run executes the long-running scrape service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required for the run command")
	}
	defer closeStore()

	recorder := a.newRecorder()
	if recorder != nil {
		defer recorder.Close()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		MaxRetries:   a.Config.Scheduler.MaxRetries,
		RetryDelay:   a.Config.Scheduler.RetryDelay,
	}, a.Logger)

	svc := a.newService(store)
	syncEnabled := a.Config.SyncEnabled()
	if !syncEnabled {
		a.Logger.Warn().Msg("ingest.base_url not configured; external sync disabled")
	}

	a.Logger.Info().Str("base_url", a.Config.Scrape.BaseURL).Msg("starting scrape service")
	err = sched.Run(ctx, func(ctx context.Context, bucket time.Time) error {
		started := time.Now().UTC()
		result, cycleErr := svc.RunCycle(ctx, a.Config.Scrape.BaseURL, syncEnabled)

		outcome := results.CycleOutcome{
			Processed:  result.Processed,
			Synced:     result.Synced,
			Status:     results.StatusOK,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		if cycleErr != nil {
			outcome.Status = results.StatusFailed
			outcome.Error = cycleErr.Error()
		}
		if err := recorder.Record(ctx, outcome); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to record cycle outcome")
		}

		return cycleErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scrape service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scrape service stopped")
	return nil
}

// RunOnce executes a single scrape cycle against the database.
func (a *App) RunOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required for the once command")
	}
	defer closeStore()

	svc := a.newService(store)
	result, err := svc.RunCycle(ctx, a.Config.Scrape.BaseURL, a.Config.SyncEnabled())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Processed %d listings, synced %d to API.\n", result.Processed, result.Synced)
	return nil
}

// RunCI executes a database-less cycle for CI pipelines: fetch, extract,
// and forward straight to the ingest endpoint.
func (a *App) RunCI(ctx context.Context) error {
	if !a.Config.SyncEnabled() {
		fmt.Fprintln(os.Stdout, "ingest.base_url not configured; nothing to do")
		return nil
	}

	html, err := a.newFetcher().FetchHTML(ctx, a.Config.Scrape.BaseURL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.Config.Scrape.BaseURL, err)
	}

	items := a.newExtractor().ExtractFromHTML(html, a.Config.Scrape.BaseURL)
	if len(items) == 0 {
		return fmt.Errorf("no listings extracted from %s", a.Config.Scrape.BaseURL)
	}

	sent, err := a.newSyncer().Sync(ctx, service.Today(), ingest.RowsFromItems(items))
	if err != nil {
		return fmt.Errorf("sync listings: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Extracted %d listings, synced %d to API.\n", len(items), sent)
	return nil
}

// ExportOptions hold parameters for exporting a listing's price history.
type ExportOptions struct {
	Source    string
	SourceID  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Runs  bool
}
