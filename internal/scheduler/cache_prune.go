package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// Pruner removes cache entries older than the retention window.
type Pruner interface {
	Prune(ttl time.Duration) (int64, error)
}

// CachePruneJob evicts expired price cache rows so stale market data never
// survives past its TTL.
type CachePruneJob struct {
	pruner Pruner
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachePruneJob creates a cache pruning job with the given retention.
func NewCachePruneJob(pruner Pruner, ttl time.Duration, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		pruner: pruner,
		ttl:    ttl,
		log:    log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name returns the job name.
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run deletes all cache entries past the TTL.
func (j *CachePruneJob) Run() error {
	removed, err := j.pruner.Prune(j.ttl)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned expired price cache entries")
	}
	return nil
}
