// Package bulk fans a batch of payment postings out over the ledger engine.
// Entries are independent: one entry failing never aborts the rest, and the
// caller gets a per-entry verdict.
package bulk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
)

// DefaultConcurrency bounds how many postings run at once.
const DefaultConcurrency = 4

// Collector runs bulk fee collections.
type Collector struct {
	engine      *ledger.Engine
	logger      *log.Logger
	concurrency int
}

// NewCollector creates a collector. concurrency bounds parallel postings;
// zero means DefaultConcurrency.
func NewCollector(engine *ledger.Engine, logger *log.Logger, concurrency int) *Collector {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Collector{
		engine:      engine,
		logger:      logger.WithComponent(log.ComponentBulk),
		concurrency: concurrency,
	}
}

// Result is the verdict for one batch entry, at the entry's original index.
type Result struct {
	Index   int           `json:"index"`
	Payment *core.Payment `json:"payment,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// OK reports whether the entry was posted.
func (r Result) OK() bool {
	return r.Error == ""
}

// Summary is the outcome of one batch.
type Summary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Collect posts every entry, bounded by the collector's concurrency. Entry
// failures are recorded in the summary, not returned; the error return is
// reserved for the batch being abandoned through ctx. Entries not yet
// started when ctx ends are marked failed with the context error.
func (c *Collector) Collect(ctx context.Context, entries []ledger.PostPaymentInput) (Summary, error) {
	results := make([]Result, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			results[i] = Result{Index: i}
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			payment, err := c.engine.PostPayment(ctx, entry)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Payment = &payment
			return nil
		})
	}
	g.Wait()

	summary := Summary{Total: len(entries), Results: results}
	for _, r := range results {
		if r.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	c.logger.InfoContext(ctx, "bulk collection finished",
		log.FieldOperation, log.OpBulkCollect,
		log.FieldBatchSize, summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
	return summary, ctx.Err()
}
