package candidate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteCandidate(id, label string, f Features) Candidate {
	return Candidate{
		ID:       id,
		Source:   SourceNote,
		Label:    label,
		Preview:  label + " preview",
		Metadata: Metadata{Note: &NoteMeta{NoteID: label}},
		Features: f,
	}
}

func TestDedupe_SampleScenario(t *testing.T) {
	in := []Candidate{
		noteCandidate("a", "first", Features{SemanticScore: Score(0.4)}),
		noteCandidate("a", "second", Features{SemanticScore: Score(0.9)}),
	}

	out := Dedupe(in)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Features.SemanticScore)
	assert.Equal(t, 0.9, *out[0].Features.SemanticScore)
	assert.Equal(t, "second", out[0].Label)
}

func TestDedupe_WinnerSelection(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	tests := []struct {
		name          string
		in            []Candidate
		wantLabel     string
		wantRecency   *float64
		wantSemantic  *float64
		wantCreatedAt *time.Time
	}{
		{
			name: "higher semantic wins",
			in: []Candidate{
				noteCandidate("n:1:x", "low", Features{SemanticScore: Score(0.2), RecencyScore: Score(0.9)}),
				noteCandidate("n:1:x", "high", Features{SemanticScore: Score(0.7)}),
			},
			wantLabel:    "high",
			wantRecency:  Score(0.9),
			wantSemantic: Score(0.7),
		},
		{
			name: "semantic tie falls back to recency",
			in: []Candidate{
				noteCandidate("n:1:x", "stale", Features{RecencyScore: Score(0.1)}),
				noteCandidate("n:1:x", "recent", Features{RecencyScore: Score(0.8)}),
			},
			wantLabel:   "recent",
			wantRecency: Score(0.8),
		},
		{
			name: "full tie keeps earlier record",
			in: []Candidate{
				noteCandidate("n:1:x", "earlier", Features{RecencyScore: Score(0.5)}),
				noteCandidate("n:1:x", "later", Features{RecencyScore: Score(0.5)}),
			},
			wantLabel:   "earlier",
			wantRecency: Score(0.5),
		},
		{
			name: "present score beats absent score",
			in: []Candidate{
				noteCandidate("n:1:x", "none", Features{}),
				noteCandidate("n:1:x", "scored", Features{SemanticScore: Score(0.1)}),
			},
			wantLabel:    "scored",
			wantSemantic: Score(0.1),
		},
		{
			name: "createdAt comes from later non-nil record",
			in: []Candidate{
				noteCandidate("n:1:x", "a", Features{CreatedAt: &older}),
				noteCandidate("n:1:x", "b", Features{CreatedAt: &newer}),
				noteCandidate("n:1:x", "c", Features{}),
			},
			wantLabel:     "a",
			wantCreatedAt: &newer,
		},
		{
			name: "winner is compared on its own scores, not merged maxima",
			in: []Candidate{
				noteCandidate("n:1:x", "A", Features{SemanticScore: Score(0.5), RecencyScore: Score(0.9)}),
				noteCandidate("n:1:x", "B", Features{SemanticScore: Score(0.9), RecencyScore: Score(0.1)}),
				noteCandidate("n:1:x", "C", Features{SemanticScore: Score(0.9), RecencyScore: Score(0.5)}),
			},
			wantLabel:    "C",
			wantRecency:  Score(0.9),
			wantSemantic: Score(0.9),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Dedupe(tt.in)

			require.Len(t, out, 1)
			assert.Equal(t, tt.wantLabel, out[0].Label)
			assert.Equal(t, tt.wantRecency, out[0].Features.RecencyScore)
			assert.Equal(t, tt.wantSemantic, out[0].Features.SemanticScore)
			assert.Equal(t, tt.wantCreatedAt, out[0].Features.CreatedAt)
		})
	}
}

func TestDedupe_WinnerIndependentOfOrder(t *testing.T) {
	a := noteCandidate("n:1:x", "A", Features{SemanticScore: Score(0.5), RecencyScore: Score(0.9)})
	b := noteCandidate("n:1:x", "B", Features{SemanticScore: Score(0.9), RecencyScore: Score(0.1)})
	c := noteCandidate("n:1:x", "C", Features{SemanticScore: Score(0.9), RecencyScore: Score(0.5)})

	orders := [][]Candidate{{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a}}
	for _, in := range orders {
		out := Dedupe(in)
		require.Len(t, out, 1)
		assert.Equal(t, "C", out[0].Label, "order %s%s%s", in[0].Label, in[1].Label, in[2].Label)
	}
}

func TestDedupe_PreservesFirstAppearanceOrder(t *testing.T) {
	in := []Candidate{
		noteCandidate("b", "b", Features{}),
		noteCandidate("a", "a", Features{}),
		noteCandidate("b", "b2", Features{}),
		noteCandidate("c", "c", Features{}),
	}

	out := Dedupe(in)

	ids := make([]string, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestDedupe_Idempotent(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	in := []Candidate{
		noteCandidate("x", "x1", Features{SemanticScore: Score(0.3), Freshness: Score(0.2)}),
		noteCandidate("y", "y1", Features{RecencyScore: Score(0.6), CreatedAt: &created}),
		noteCandidate("x", "x2", Features{SemanticScore: Score(0.5), ScopeMatch: Score(1)}),
		noteCandidate("z", "z1", Features{}),
		noteCandidate("y", "y2", Features{TemporalMatch: Score(1)}),
	}

	once := Dedupe(in)
	twice := Dedupe(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("dedupe is not idempotent (-once +twice):\n%s", diff)
	}

	seen := map[string]bool{}
	for _, c := range once {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestDedupe_MergeIsMonotonic(t *testing.T) {
	a := Features{RecencyScore: Score(0.7), SemanticScore: Score(0.2), Freshness: Score(0.9)}
	b := Features{RecencyScore: Score(0.3), SemanticScore: Score(0.6), TemporalMatch: Score(1)}

	out := Dedupe([]Candidate{noteCandidate("m", "a", a), noteCandidate("m", "b", b)})
	require.Len(t, out, 1)
	merged := out[0].Features.scores()

	for _, input := range []Features{a, b} {
		for name, v := range input.scores() {
			if v == nil {
				continue
			}
			require.NotNil(t, merged[name], name)
			assert.GreaterOrEqual(t, *merged[name], *v, name)
		}
	}
}

func TestDedupe_DoesNotAliasInput(t *testing.T) {
	in := []Candidate{noteCandidate("a", "a", Features{SemanticScore: Score(0.4)})}

	out := Dedupe(in)
	*out[0].Features.SemanticScore = 0.1

	assert.Equal(t, 0.4, *in[0].Features.SemanticScore)
}

func TestGroupBySource(t *testing.T) {
	in := []Candidate{
		{ID: "note:u:1", Source: SourceNote},
		{ID: "note:u:2", Source: SourceNote},
		{ID: "highlight:u:1", Source: SourceHighlight},
	}

	assert.Equal(t, map[Source]int{SourceNote: 2, SourceHighlight: 1}, GroupBySource(in))
	assert.Empty(t, GroupBySource(nil))
}

func TestCandidate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Candidate
		wantErr bool
	}{
		{
			name: "valid note",
			c: Candidate{
				ID:       NewID(SourceNote, "u1", "n1"),
				Source:   SourceNote,
				Metadata: Metadata{Note: &NoteMeta{NoteID: "n1"}},
			},
		},
		{
			name: "id prefix replaces underscores",
			c: Candidate{
				ID:       NewID(SourceReadingSession, "u1", "JHN:3"),
				Source:   SourceReadingSession,
				Metadata: Metadata{Reading: &ReadingMeta{RefKey: "JHN:3"}},
			},
		},
		{
			name:    "empty id",
			c:       Candidate{Source: SourceNote},
			wantErr: true,
		},
		{
			name:    "unknown source",
			c:       Candidate{ID: "post:u:1", Source: Source("post")},
			wantErr: true,
		},
		{
			name:    "prefix mismatch",
			c:       Candidate{ID: NewID(SourceNote, "u", "1"), Source: SourceHighlight},
			wantErr: true,
		},
		{
			name: "metadata variant mismatch",
			c: Candidate{
				ID:       NewID(SourceNote, "u", "1"),
				Source:   SourceNote,
				Metadata: Metadata{Highlight: &HighlightMeta{RefKey: "JHN:3:16"}},
			},
			wantErr: true,
		},
		{
			name: "score out of range",
			c: Candidate{
				ID:       NewID(SourceNote, "u", "1"),
				Source:   SourceNote,
				Features: Features{RecencyScore: func() *float64 { v := 1.5; return &v }()},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCandidate)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCandidate_Priority(t *testing.T) {
	low := Candidate{Features: Features{RecencyScore: Score(0.2)}}
	high := Candidate{Features: Features{SemanticScore: Score(0.9), RecencyScore: Score(0.2)}}

	assert.Greater(t, high.Priority(), low.Priority())
	assert.Zero(t, Candidate{}.Priority())
}
