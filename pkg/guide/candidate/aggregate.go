package candidate

import "time"

// Dedupe collapses candidates sharing an id into one record, preserving the order
// in which each id was first seen.
//
// Scores are merged element-wise with max, a non-nil score always beats a nil one,
// and createdAt is taken from the most recently fetched record that has one.
// Label, preview and metadata come from the stronger record: higher semantic score,
// then higher recency score; on a full tie the earlier record is kept.
func Dedupe(candidates []Candidate) []Candidate {
	index := make(map[string]int, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	// winners[i] holds the unmerged scores of the record that supplied out[i]'s
	// label, preview and metadata.
	winners := make([]Features, 0, len(candidates))

	for _, c := range candidates {
		if i, seen := index[c.ID]; seen {
			out[i], winners[i] = merge(out[i], winners[i], c)
			continue
		}
		index[c.ID] = len(out)
		out = append(out, clone(c))
		winners = append(winners, c.Features)
	}

	return out
}

// GroupBySource counts candidates per source. Diagnostics only.
func GroupBySource(candidates []Candidate) map[Source]int {
	counts := make(map[Source]int)
	for _, c := range candidates {
		counts[c.Source]++
	}
	return counts
}

func merge(kept Candidate, keptOwn Features, next Candidate) (Candidate, Features) {
	winner, own := kept, keptOwn
	if outranks(next.Features, keptOwn) {
		winner = clone(next)
		winner.ID = kept.ID
		winner.Source = kept.Source
		own = next.Features
	}
	winner.Features = mergeFeatures(kept.Features, next.Features)
	return winner, own
}

// outranks reports whether challenger should replace the incumbent's
// label/preview/metadata.
func outranks(challenger, incumbent Features) bool {
	if c := compareScore(challenger.SemanticScore, incumbent.SemanticScore); c != 0 {
		return c > 0
	}
	return compareScore(challenger.RecencyScore, incumbent.RecencyScore) > 0
}

func compareScore(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a > *b:
		return 1
	case *a < *b:
		return -1
	}
	return 0
}

func mergeFeatures(kept, next Features) Features {
	merged := Features{
		RecencyScore:  maxScore(kept.RecencyScore, next.RecencyScore),
		SemanticScore: maxScore(kept.SemanticScore, next.SemanticScore),
		TemporalMatch: maxScore(kept.TemporalMatch, next.TemporalMatch),
		ScopeMatch:    maxScore(kept.ScopeMatch, next.ScopeMatch),
		Freshness:     maxScore(kept.Freshness, next.Freshness),
		CreatedAt:     copyTime(kept.CreatedAt),
	}
	if next.CreatedAt != nil {
		merged.CreatedAt = copyTime(next.CreatedAt)
	}
	return merged
}

func maxScore(a, b *float64) *float64 {
	if compareScore(b, a) > 0 {
		return copyScore(b)
	}
	return copyScore(a)
}

func clone(c Candidate) Candidate {
	out := c
	out.Features = Features{
		RecencyScore:  copyScore(c.Features.RecencyScore),
		SemanticScore: copyScore(c.Features.SemanticScore),
		TemporalMatch: copyScore(c.Features.TemporalMatch),
		ScopeMatch:    copyScore(c.Features.ScopeMatch),
		Freshness:     copyScore(c.Features.Freshness),
		CreatedAt:     copyTime(c.Features.CreatedAt),
	}
	return out
}

func copyScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
