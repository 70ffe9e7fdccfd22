package fetcher

import (
	"math"
	"strings"
	"time"

	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/plan"
)

const freshnessHalfLife = 7 * 24 * time.Hour

// decay returns 0.5^(age/halfLife), 1 for future timestamps.
func decay(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}

// baseFeatures scores a record created at createdAt and last touched at updatedAt.
func baseFeatures(q Query, createdAt time.Time, updatedAt *time.Time, refKey string) candidate.Features {
	created := createdAt
	f := candidate.Features{
		RecencyScore: candidate.Score(decay(q.Now.Sub(createdAt), q.Range.HalfLife())),
		CreatedAt:    &created,
	}

	if updatedAt != nil && !updatedAt.IsZero() {
		f.Freshness = candidate.Score(decay(q.Now.Sub(*updatedAt), freshnessHalfLife))
	}

	if q.Plan.HasTemporalHint() {
		f.TemporalMatch = candidate.Score(temporalMatch(q, createdAt, updatedAt))
	}

	if q.Plan.HasScope() && refKey != "" {
		f.ScopeMatch = candidate.Score(scopeMatch(q.Plan, refKey))
	}

	return f
}

func temporalMatch(q Query, createdAt time.Time, updatedAt *time.Time) float64 {
	since, bounded := q.Plan.Range.Since(q.Now)
	if !bounded {
		return 1
	}
	if !createdAt.Before(since) {
		return 1
	}
	if updatedAt != nil && !updatedAt.Before(since) {
		return 0.5
	}
	return 0
}

// scopeMatch is 1 when the ref key falls inside the referenced chapter or verse,
// 0.6 when only the book matches.
func scopeMatch(p plan.Plan, refKey string) float64 {
	if p.ScopeRef != "" && (refKey == p.ScopeRef || strings.HasPrefix(refKey, p.ScopeRef+":") || strings.HasPrefix(refKey, p.ScopeRef+"-")) {
		return 1
	}
	if strings.HasPrefix(refKey, p.Scope+":") {
		if p.ScopeRef == "" {
			return 1
		}
		return 0.6
	}
	return 0
}
