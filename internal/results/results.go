package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// StatusOK marks a cycle that completed, including no-op cycles.
	StatusOK = "ok"
	// StatusFailed marks a cycle that errored before commit.
	StatusFailed = "failed"

	defaultKey        = "listingwatch:cycles"
	defaultMaxEntries = 100
)

// CycleOutcome is one recorded ETL cycle result.
type CycleOutcome struct {
	Processed  int       `json:"processed"`
	Synced     int       `json:"synced"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Options parameterise the recorder.
type Options struct {
	URL        string
	Key        string
	MaxEntries int
}

// Recorder keeps a bounded history of cycle outcomes in Redis, newest
// first. Recording is best-effort and never fails a cycle.
type Recorder struct {
	rdb        *redis.Client
	key        string
	maxEntries int64
	logger     zerolog.Logger
}

// NewRecorder connects a recorder to the configured Redis instance.
func NewRecorder(opts Options, logger zerolog.Logger) (*Recorder, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse results url: %w", err)
	}

	key := opts.Key
	if key == "" {
		key = defaultKey
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &Recorder{
		rdb:        redis.NewClient(redisOpts),
		key:        key,
		maxEntries: int64(maxEntries),
		logger:     logger.With().Str("component", "results_recorder").Logger(),
	}, nil
}

// NewRecorderWithClient wires an existing client, for tests.
func NewRecorderWithClient(rdb *redis.Client, key string, maxEntries int, logger zerolog.Logger) *Recorder {
	if key == "" {
		key = defaultKey
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Recorder{rdb: rdb, key: key, maxEntries: int64(maxEntries), logger: logger}
}

// Record prepends outcome to the history list and trims it to the
// configured bound.
func (r *Recorder) Record(ctx context.Context, outcome CycleOutcome) error {
	if r == nil {
		return nil
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal cycle outcome: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, body)
	pipe.LTrim(ctx, r.key, 0, r.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record cycle outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]CycleOutcome, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = int(r.maxEntries)
	}

	raw, err := r.rdb.LRange(ctx, r.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read cycle outcomes: %w", err)
	}

	outcomes := make([]CycleOutcome, 0, len(raw))
	for _, entry := range raw {
		var outcome CycleOutcome
		if err := json.Unmarshal([]byte(entry), &outcome); err != nil {
			r.logger.Warn().Err(err).Msg("skipping malformed cycle outcome entry")
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Close releases the underlying Redis connection.
func (r *Recorder) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
