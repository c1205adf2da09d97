package match

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/edwds/mimy/internal/taste"
)

// SignalSource is the read-only data-access collaborator the batch
// computer pulls from. Both reads are batched per request, never issued
// per shop, to bound round-trips against the storage layer.
type SignalSource interface {
	// GetTasteVector returns the user's taste vector, or (nil, nil) when
	// the user has not completed a taste assessment.
	GetTasteVector(ctx context.Context, userID int64) (*taste.Vector, error)

	// GetReviewerSignals returns the reviewer signals for the candidate
	// shops, grouped by shop ID. Only reviewers whose own list size meets
	// eligibilityFloor are returned; the prefilter happens in the read
	// itself so the data pulled per request stays bounded. Shops nobody
	// reviewed are simply absent from the map.
	GetReviewerSignals(ctx context.Context, shopIDs []int64, eligibilityFloor int) (map[int64][]ReviewerSignal, error)
}

// ShopDiagnostic reports a per-shop failure inside a batch. The shop
// resolves to no-signal; the rest of the batch is unaffected.
type ShopDiagnostic struct {
	ShopID int64
	Err    error
}

// BatchResult holds one batch's scores, keyed by shop ID, with
// diagnostics for any shops whose data could not be gathered.
type BatchResult struct {
	Scores      map[int64]Score
	Diagnostics []ShopDiagnostic
}

// Computer orchestrates match-score estimation across many candidate
// shops for one viewer. Scoring itself is pure and side-effect free, so
// shops are scored concurrently; the only blocking points are the two
// batched reads against the SignalSource.
type Computer struct {
	source  SignalSource
	params  Params
	logger  *slog.Logger
	metrics *Metrics // optional
	workers int
}

// NewComputer creates a batch score computer. metrics may be nil.
func NewComputer(source SignalSource, params Params, logger *slog.Logger, metrics *Metrics) *Computer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Computer{
		source:  source,
		params:  params,
		logger:  logger,
		metrics: metrics,
		workers: runtime.NumCPU(),
	}
}

// Params returns the parameter set the computer was built with.
func (c *Computer) Params() Params {
	return c.params
}

// ComputeBatch scores every candidate shop for the viewer.
//
// The viewer's taste vector is resolved once; if absent, every shop
// resolves to no-signal without any further data access. Otherwise the
// reviewer signals for all shops are gathered in one prefiltered read
// and each shop is scored independently: shops with no signals produce
// no-signal, and a gathering failure surfaces as per-shop diagnostics
// rather than failing the batch.
func (c *Computer) ComputeBatch(ctx context.Context, viewerID int64, shopIDs []int64) (*BatchResult, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveBatch(time.Since(start).Seconds(), len(shopIDs))
		}
	}()

	result := &BatchResult{
		Scores: make(map[int64]Score, len(shopIDs)),
	}
	if len(shopIDs) == 0 {
		return result, nil
	}

	viewer, err := c.source.GetTasteVector(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve viewer taste vector: %w", err)
	}
	if viewer == nil {
		// No taste assessment: nothing can be scored for this viewer.
		for _, id := range shopIDs {
			result.Scores[id] = NoSignal()
			c.countOutcome(OutcomeNoSignal)
		}
		return result, nil
	}

	signalsByShop, err := c.source.GetReviewerSignals(ctx, shopIDs, c.params.EligibilityFloor)
	if err != nil {
		// Signal gathering failed: every shop degrades to no-signal with
		// a diagnostic. The caller still gets a complete score map.
		c.logger.Warn("reviewer signal gathering failed",
			"viewer_id", viewerID,
			"shops", len(shopIDs),
			"error", err,
		)
		for _, id := range shopIDs {
			result.Scores[id] = NoSignal()
			result.Diagnostics = append(result.Diagnostics, ShopDiagnostic{ShopID: id, Err: err})
			c.countOutcome(OutcomeError)
		}
		return result, nil
	}

	c.scoreShops(ctx, viewer, shopIDs, signalsByShop, result)

	return result, nil
}

// scoreShops scores each shop concurrently with a bounded worker pool.
// Per-shop scoring is pure; there is no ordering requirement between
// shops and no shared mutable state beyond the guarded result map.
func (c *Computer) scoreShops(ctx context.Context, viewer *taste.Vector, shopIDs []int64, signalsByShop map[int64][]ReviewerSignal, result *BatchResult) {
	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(shopIDs) {
		workers = len(shopIDs)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan int64)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shopID := range jobs {
				score := ComputeScore(viewer, signalsByShop[shopID], c.params)

				mu.Lock()
				result.Scores[shopID] = score
				mu.Unlock()

				if score.Valid {
					c.countOutcome(OutcomeScored)
				} else {
					c.countOutcome(OutcomeNoSignal)
				}
			}
		}()
	}

	for _, id := range shopIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
}

// countOutcome records a per-shop outcome if metrics are wired.
func (c *Computer) countOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.IncScore(outcome)
	}
}
