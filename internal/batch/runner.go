package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourneighborhoodchef/asinfetch/internal/export"
	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
	"github.com/yourneighborhoodchef/asinfetch/internal/models"
	"github.com/yourneighborhoodchef/asinfetch/internal/ramp"
	"github.com/yourneighborhoodchef/asinfetch/internal/session"
)

// SessionSource lends sessions out and takes them back. *session.Pool
// satisfies it.
type SessionSource interface {
	AcquireOrCreate(ctx context.Context) (*session.Session, error)
	Release(s *session.Session)
}

// Fetcher runs the product fetch sequence on a lent session.
// *session.Orchestrator satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, s *session.Session, asin string) (*models.ProductRecord, error)
}

// Summary is what a batch run reports back: per-identifier counts and the
// combined CSV location, when one was written.
type Summary struct {
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	CombinedCSV string `json:"combined_csv,omitempty"`
}

// Runner fans product fetches out over the session pool, every fetch
// holding a slot from the concurrency gate for its full duration.
type Runner struct {
	Sessions  SessionSource
	Fetcher   Fetcher
	Gate      *ramp.Controller
	OutputDir string

	mu   sync.Mutex
	rows []map[string]string
}

// Run fetches every ASIN, exporting each successful record as JSON and all
// of them into one combined CSV. Individual failures are logged and
// counted, never fatal to the batch.
func (r *Runner) Run(ctx context.Context, asins []string) *Summary {
	gateCtx, stopGate := context.WithCancel(ctx)
	defer stopGate()
	go r.Gate.Run(gateCtx)

	summary := &Summary{Total: len(asins)}
	var succeeded int
	var mu sync.Mutex

	var g errgroup.Group
	for _, asin := range asins {
		asin := asin
		g.Go(func() error {
			if r.processOne(ctx, asin) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	summary.Succeeded = succeeded
	summary.Failed = summary.Total - succeeded

	if len(r.rows) > 0 {
		path, err := export.WriteCombinedCSV(r.OutputDir, r.rows)
		if err != nil {
			logging.Errorf("combined CSV: %v", err)
		} else {
			summary.CombinedCSV = path
			logging.Successf("saved combined data to %s", path)
		}
	}
	return summary
}

func (r *Runner) processOne(ctx context.Context, asin string) bool {
	if err := r.Gate.Acquire(ctx); err != nil {
		logging.Errorf("%s: %v", asin, err)
		return false
	}
	defer r.Gate.Release()

	s, err := r.Sessions.AcquireOrCreate(ctx)
	if err != nil {
		r.Gate.NoteHandshakeFailure()
		logging.Errorf("%s: %v", asin, err)
		return false
	}
	defer r.Sessions.Release(s)

	logging.Infof("processing ASIN %s", asin)
	record, err := r.Fetcher.Fetch(ctx, s, asin)
	if err != nil {
		if s.State() == session.Failed {
			r.Gate.NoteHandshakeFailure()
		}
		logging.Errorf("%s: %v", asin, err)
		return false
	}

	path, err := export.WriteJSON(r.OutputDir, record)
	if err != nil {
		logging.Errorf("%s: %v", asin, err)
		return false
	}
	logging.Successf("saved %s", path)

	row, err := export.Flatten(record)
	if err != nil {
		logging.Errorf("%s: %v", asin, err)
		return false
	}
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
	return true
}
