package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/pkg/cache"
	"devotion-guide-be/pkg/embedding"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/guide/plan"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser = uuid.MustParse("6f1c2e0a-8d7b-4a53-9a1e-0c4b5d6e7f80")
	testNow  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

type stubFetcher struct {
	source candidate.Source
	out    []candidate.Candidate
	err    error
	panics bool
	delay  time.Duration
}

func (s *stubFetcher) Source() candidate.Source { return s.source }

func (s *stubFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("boom")
	}
	return s.out, s.err
}

func noteCand(id string) candidate.Candidate {
	return candidate.Candidate{
		ID:       candidate.NewID(candidate.SourceNote, testUser.String(), id),
		Source:   candidate.SourceNote,
		Label:    id,
		Metadata: candidate.Metadata{Note: &candidate.NoteMeta{NoteID: id}},
	}
}

func ids(cands []candidate.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func TestFetchAll(t *testing.T) {
	m := metrics.NewCollector("test")

	fetchers := []Fetcher{
		&stubFetcher{source: candidate.SourceNote, out: []candidate.Candidate{noteCand("n1"), noteCand("n2")}, delay: 20 * time.Millisecond},
		&stubFetcher{source: candidate.SourceHighlight, err: errors.New("connection refused")},
		&stubFetcher{source: candidate.SourceLifeContext, panics: true},
		&stubFetcher{source: candidate.SourceNote, out: []candidate.Candidate{noteCand("n3")}},
	}

	got := FetchAll(context.Background(), fetchers, Query{UserID: testUser}, logger.NewNopLogger(), m)

	assert.Equal(t, []string{
		candidate.NewID(candidate.SourceNote, testUser.String(), "n1"),
		candidate.NewID(candidate.SourceNote, testUser.String(), "n2"),
		candidate.NewID(candidate.SourceNote, testUser.String(), "n3"),
	}, ids(got))
	failing, err := testutil.GatherAndCount(m.Registry(), "test_guide_fetcher_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failing)
}

func TestFetchAll_DropsMalformedCandidates(t *testing.T) {
	bad := noteCand("n2")
	bad.Source = candidate.SourceHighlight

	fetchers := []Fetcher{
		&stubFetcher{source: candidate.SourceNote, out: []candidate.Candidate{noteCand("n1"), bad}},
	}

	got := FetchAll(context.Background(), fetchers, Query{UserID: testUser}, logger.NewNopLogger(), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].Label)
}

func TestQuery_Normalized(t *testing.T) {
	q := Query{}.normalized()
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, plan.RangeLastMonth, q.Range)
	assert.False(t, q.Now.IsZero())
}

func TestBaseFeatures(t *testing.T) {
	created := testNow.Add(-12 * time.Hour)
	updated := testNow.Add(-7 * 24 * time.Hour)

	t.Run("recency and freshness", func(t *testing.T) {
		q := Query{Range: plan.RangeLastDay, Now: testNow}
		f := baseFeatures(q, created, &updated, "")
		require.NotNil(t, f.RecencyScore)
		assert.InDelta(t, 0.5, *f.RecencyScore, 1e-9)
		require.NotNil(t, f.Freshness)
		assert.InDelta(t, 0.5, *f.Freshness, 1e-9)
		assert.Nil(t, f.TemporalMatch)
		assert.Nil(t, f.ScopeMatch)
		assert.Equal(t, created, *f.CreatedAt)
	})

	t.Run("temporal match only with explicit hint", func(t *testing.T) {
		p := plan.Plan{Range: plan.RangeLastWeek, RangeExplicit: true}
		q := Query{Range: plan.RangeLastWeek, Now: testNow, Plan: p}

		old := testNow.Add(-30 * 24 * time.Hour)
		recentEdit := testNow.Add(-time.Hour)

		assert.Equal(t, 1.0, *baseFeatures(q, created, nil, "").TemporalMatch)
		assert.Equal(t, 0.5, *baseFeatures(q, old, &recentEdit, "").TemporalMatch)
		assert.Equal(t, 0.0, *baseFeatures(q, old, nil, "").TemporalMatch)
	})

	t.Run("scope match", func(t *testing.T) {
		tests := []struct {
			name     string
			plan     plan.Plan
			refKey   string
			expected float64
		}{
			{"book only", plan.Plan{Scope: "PSA"}, "PSA:23:1", 1},
			{"chapter hit", plan.Plan{Scope: "JHN", ScopeRef: "JHN:3"}, "JHN:3:16", 1},
			{"same book other chapter", plan.Plan{Scope: "JHN", ScopeRef: "JHN:3"}, "JHN:4:1", 0.6},
			{"other book", plan.Plan{Scope: "JHN"}, "ROM:8:28", 0},
			{"prefix is not a book match", plan.Plan{Scope: "JHN", ScopeRef: "JHN:3"}, "JHN:31", 0.6},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				q := Query{Range: plan.RangeAllTime, Now: testNow, Plan: tt.plan}
				f := baseFeatures(q, created, nil, tt.refKey)
				require.NotNil(t, f.ScopeMatch)
				assert.Equal(t, tt.expected, *f.ScopeMatch)
			})
		}
	})
}

type fakeReadingRepo struct {
	contract.ReadingSessionRepository
	rows []*entity.ReadingSession
}

func (f *fakeReadingRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReadingSession, error) {
	return f.rows, nil
}

func TestReadingSessionFetcher_GroupsByPassage(t *testing.T) {
	repo := &fakeReadingRepo{rows: []*entity.ReadingSession{
		{Id: uuid.New(), UserId: testUser, RefKey: "JHN:3", Progress: 0.4, StartedAt: testNow.Add(-time.Hour)},
		{Id: uuid.New(), UserId: testUser, RefKey: "PSA:23", Progress: 1, StartedAt: testNow.Add(-2 * time.Hour)},
		{Id: uuid.New(), UserId: testUser, RefKey: "JHN:3", Progress: 0.9, StartedAt: testNow.Add(-48 * time.Hour)},
	}}

	got, err := NewReadingSessionFetcher(repo).Fetch(context.Background(),
		Query{UserID: testUser, Range: plan.RangeLastWeek, Limit: 8, Now: testNow})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, candidate.NewID(candidate.SourceReadingSession, testUser.String(), "JHN:3"), got[0].ID)
	assert.Equal(t, 2, got[0].Metadata.Reading.Sessions)
	assert.Equal(t, 0.9, got[0].Metadata.Reading.Progress)
	assert.Equal(t, "PSA:23", got[1].Metadata.Reading.RefKey)
	for _, c := range got {
		assert.NoError(t, c.Validate())
	}
}

type fakeLifeContextRepo struct {
	contract.LifeContextRepository
	calls int
	rows  []*entity.LifeContext
}

func (f *fakeLifeContextRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LifeContext, error) {
	f.calls++
	return f.rows, nil
}

func TestLifeContextFetcher_CachesRows(t *testing.T) {
	repo := &fakeLifeContextRepo{rows: []*entity.LifeContext{
		{Id: uuid.New(), UserId: testUser, Kind: "season", Title: "New job", Content: "Started at the clinic, call me at 555-123-4567", CreatedAt: testNow.Add(-90 * 24 * time.Hour)},
	}}
	store := cache.NewMemoryStore(time.Minute, time.Minute)
	f := NewLifeContextFetcher(repo, store, time.Minute, nil)
	q := Query{UserID: testUser, Range: plan.RangeLastDay, Limit: 4, Now: testNow}

	first, err := f.Fetch(context.Background(), q)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "season", second[0].Metadata.LifeContext.Kind)
	assert.NotContains(t, second[0].Preview, "555-123-4567")
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, task embedding.TaskType) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeEmbeddingRepo struct {
	contract.NoteEmbeddingRepository
	scored []*contract.ScoredNoteEmbedding
	last   contract.SimilarityQuery
}

func (f *fakeEmbeddingRepo) SearchSimilar(ctx context.Context, q contract.SimilarityQuery) ([]*contract.ScoredNoteEmbedding, error) {
	f.last = q
	return f.scored, nil
}

type fakeNoteRepo struct {
	contract.NoteRepository
	notes []*entity.Note
}

func (f *fakeNoteRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error) {
	return f.notes, nil
}

func TestSemanticNoteFetcher(t *testing.T) {
	noteA := &entity.Note{Id: uuid.New(), UserId: testUser, Title: "Anxiety", Content: "Cast your cares", RefKey: "1PE:5:7", CreatedAt: testNow.Add(-24 * time.Hour)}
	noteB := &entity.Note{Id: uuid.New(), UserId: testUser, Kind: entity.NoteKindPrayer, Title: "Rest", Content: "Come to me", CreatedAt: testNow.Add(-72 * time.Hour)}

	embeddings := &fakeEmbeddingRepo{scored: []*contract.ScoredNoteEmbedding{
		{Embedding: &entity.NoteEmbedding{NoteId: noteA.Id, ChunkIndex: 0}, Similarity: 0.62},
		{Embedding: &entity.NoteEmbedding{NoteId: noteB.Id, ChunkIndex: 0}, Similarity: 0.55},
		{Embedding: &entity.NoteEmbedding{NoteId: noteA.Id, ChunkIndex: 1}, Similarity: 0.81},
	}}
	notes := &fakeNoteRepo{notes: []*entity.Note{noteB, noteA}}
	f := NewSemanticNoteFetcher(&fakeEmbedder{}, "nomic-embed-text", embeddings, notes, 0.3)

	q := Query{UserID: testUser, Range: plan.RangeAllTime, Limit: 8, Now: testNow, Plan: plan.Plan{Query: "feeling anxious"}}
	got, err := f.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, candidate.NewID(candidate.SourceNote, testUser.String(), noteA.Id.String()), got[0].ID)
	assert.InDelta(t, 0.81, *got[0].Features.SemanticScore, 1e-9)
	assert.InDelta(t, 0.55, *got[1].Features.SemanticScore, 1e-9)
	assert.Equal(t, entity.NoteKindPrayer, got[1].Metadata.Note.Kind)

	assert.Equal(t, "nomic-embed-text", embeddings.last.Model)
	assert.Equal(t, testUser, embeddings.last.UserId)
	assert.Equal(t, 24, embeddings.last.Limit)
	assert.InDelta(t, 0.3, embeddings.last.Threshold, 1e-9)

	t.Run("same id as recency fetcher", func(t *testing.T) {
		recent, err := NewNoteFetcher(notes).Fetch(context.Background(), q)
		require.NoError(t, err)
		merged := candidate.Dedupe(append(recent, got...))
		assert.Len(t, merged, 2)
	})

	t.Run("empty query skips search", func(t *testing.T) {
		out, err := f.Fetch(context.Background(), Query{UserID: testUser, Now: testNow})
		assert.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("embedder failure surfaces", func(t *testing.T) {
		broken := NewSemanticNoteFetcher(&fakeEmbedder{err: errors.New("timeout")}, "nomic-embed-text", embeddings, notes, 0.3)
		_, err := broken.Fetch(context.Background(), q)
		assert.Error(t, err)
	})
}

type fakeConversationRepo struct {
	contract.ConversationStateRepository
	rows []*entity.ConversationState
}

func (f *fakeConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationState, error) {
	return f.rows, nil
}

func TestConversationSummaryFetcher_ExcludesActiveConversation(t *testing.T) {
	active := uuid.New()
	earlier := uuid.New()
	repo := &fakeConversationRepo{rows: []*entity.ConversationState{
		{ConversationId: active, UserId: testUser, Summary: "current", TurnCount: 3, CreatedAt: testNow, UpdatedAt: testNow},
		{ConversationId: earlier, UserId: testUser, Summary: "Talked about grief", TurnCount: 9, CreatedAt: testNow.Add(-72 * time.Hour), UpdatedAt: testNow.Add(-48 * time.Hour)},
	}}

	got, err := NewConversationSummaryFetcher(repo).Fetch(context.Background(),
		Query{UserID: testUser, Range: plan.RangeLastWeek, Limit: 8, Now: testNow, ExcludeConversationID: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, earlier.String(), got[0].Metadata.Summary.ConversationID)
	assert.Equal(t, 9, got[0].Metadata.Summary.TurnCount)
}
