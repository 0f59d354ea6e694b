package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"listing-watch/internal/extractor"
	"listing-watch/internal/fetcher"
	"listing-watch/internal/ingest"
	"listing-watch/internal/storage"
)

// CycleResult summarises one ETL cycle.
type CycleResult struct {
	Processed int
	Synced    int
}

// Service composes fetch, extract, upsert, and the optional sync step
// into one cycle.
type Service struct {
	fetcher   fetcher.HTMLFetcher
	extractor extractor.Extractor
	store     storage.ListingStore
	snapshots storage.SnapshotStore
	syncer    ingest.Syncer
	logger    zerolog.Logger
}

// New constructs the ETL service. syncer may be nil when sync is
// disabled; snapshots is only consulted for the sync step.
func New(htmlFetcher fetcher.HTMLFetcher, ext extractor.Extractor, store storage.ListingStore, snapshots storage.SnapshotStore, syncer ingest.Syncer, logger zerolog.Logger) *Service {
	return &Service{
		fetcher:   htmlFetcher,
		extractor: ext,
		store:     store,
		snapshots: snapshots,
		syncer:    syncer,
		logger:    logger.With().Str("component", "etl_service").Logger(),
	}
}

// Today returns the current UTC calendar day.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// RunCycle executes one fetch→extract→upsert(→sync) cycle against
// baseURL. A denied or failed fetch and an empty extraction are no-op
// cycles, not errors. Sync failures are absorbed and reported as zero
// synced. Only persistence failures make the cycle fail.
func (s *Service) RunCycle(ctx context.Context, baseURL string, syncEnabled bool) (CycleResult, error) {
	var result CycleResult

	html, err := s.fetcher.FetchHTML(ctx, baseURL)
	if err != nil {
		if errors.Is(err, fetcher.ErrPolicyDenied) || errors.Is(err, fetcher.ErrFetchFailed) {
			s.logger.Warn().Err(err).Str("url", baseURL).Msg("nothing fetched; skipping cycle")
			return result, nil
		}
		return result, err
	}
	if html == "" {
		s.logger.Info().Str("url", baseURL).Msg("empty page; skipping cycle")
		return result, nil
	}

	items := s.extractor.ExtractFromHTML(html, baseURL)
	if len(items) == 0 {
		s.logger.Info().Str("url", baseURL).Msg("no listings extracted; skipping cycle")
		return result, nil
	}

	day := Today()
	if err := s.store.UpsertBatch(ctx, items, day); err != nil {
		return result, fmt.Errorf("persist listings: %w", err)
	}
	result.Processed = len(items)

	s.logger.Info().Int("processed", result.Processed).Str("source", s.extractor.Source()).Msg("listings upserted")

	if syncEnabled && s.syncer != nil {
		result.Synced = s.syncDay(ctx, day)
	}

	return result, nil
}

// syncDay forwards today's snapshot, best-effort.
func (s *Service) syncDay(ctx context.Context, day time.Time) int {
	if s.snapshots == nil {
		return 0
	}

	rows, err := s.snapshots.ListDayRows(ctx, day)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load daily snapshot; nothing synced")
		return 0
	}
	if len(rows) == 0 {
		s.logger.Info().Msg("no priced listings today; nothing to sync")
		return 0
	}

	synced, err := s.syncer.Sync(ctx, day, ingest.RowsFromDaily(rows))
	if err != nil {
		s.logger.Error().Err(err).Msg("sync failed; cycle still counts as successful")
		return 0
	}
	return synced
}
