package fetcher

import (
	"context"
	"fmt"
	"time"

	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/guide/plan"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit   = 8
	maxPreviewRune = 400
)

// Query is the narrow contract every fetcher answers.
type Query struct {
	UserID uuid.UUID
	Range  plan.TimeRange
	Limit  int
	Plan   plan.Plan
	Now    time.Time
	// ExcludeConversationID keeps the active conversation out of the
	// summary candidates; its state is sent separately.
	ExcludeConversationID *uuid.UUID
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if !q.Range.Valid() {
		q.Range = plan.RangeLastMonth
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	return q
}

// Fetcher reads candidates from exactly one source, most recent first.
type Fetcher interface {
	Source() candidate.Source
	Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error)
}

// FetchAll runs every fetcher concurrently and concatenates their output in
// fetcher order. A failing or panicking fetcher is logged and contributes nothing.
func FetchAll(ctx context.Context, fetchers []Fetcher, q Query, log logger.ILogger, m *metrics.Collector) []candidate.Candidate {
	q = q.normalized()
	results := make([][]candidate.Candidate, len(fetchers))

	var g errgroup.Group
	for i, f := range fetchers {
		g.Go(func() error {
			results[i] = runOne(ctx, f, q, log, m)
			return nil
		})
	}
	_ = g.Wait()

	var out []candidate.Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func runOne(ctx context.Context, f Fetcher, q Query, log logger.ILogger, m *metrics.Collector) (out []candidate.Candidate) {
	source := f.Source()
	defer func() {
		if r := recover(); r != nil {
			log.Error("FETCH", "Candidate fetcher panicked", map[string]interface{}{
				"source": source,
				"panic":  fmt.Sprint(r),
			})
			m.FetchFailed(string(source))
			out = nil
		}
	}()

	start := time.Now()
	cands, err := f.Fetch(ctx, q)
	if err != nil {
		log.Warn("FETCH", "Candidate source unavailable", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		m.FetchFailed(string(source))
		return nil
	}

	valid := cands[:0]
	for _, c := range cands {
		if err := c.Validate(); err != nil {
			log.Warn("FETCH", "Dropping malformed candidate", map[string]interface{}{
				"source": source,
				"error":  err.Error(),
			})
			continue
		}
		valid = append(valid, c)
	}

	log.Debug("FETCH", "Candidates fetched", map[string]interface{}{
		"source":   source,
		"count":    len(valid),
		"duration": time.Since(start).String(),
	})
	m.Fetched(string(source), len(valid))
	return valid
}
