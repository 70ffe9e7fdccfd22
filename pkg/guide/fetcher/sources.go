package fetcher

import (
	"context"
	"fmt"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/pkg/cache"
	"devotion-guide-be/pkg/embedding"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/lexical"

	"github.com/google/uuid"
)

func rangeSpecs(q Query, column string) []specification.Specification {
	var specs []specification.Specification
	if since, ok := q.Range.Since(q.Now); ok {
		specs = append(specs, specification.Since{Column: column, Time: since})
	}
	return specs
}

// LifeContextFetcher reads long-lived memories. It is cache-through: entries are
// kept in the store for ttl since they change rarely.
type LifeContextFetcher struct {
	repo    contract.LifeContextRepository
	store   cache.Store
	ttl     time.Duration
	metrics *metrics.Collector
}

func NewLifeContextFetcher(repo contract.LifeContextRepository, store cache.Store, ttl time.Duration, m *metrics.Collector) *LifeContextFetcher {
	return &LifeContextFetcher{repo: repo, store: store, ttl: ttl, metrics: m}
}

func (f *LifeContextFetcher) Source() candidate.Source { return candidate.SourceLifeContext }

func (f *LifeContextFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	rows, err := f.load(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(rows))
	for _, lc := range rows {
		out = append(out, candidate.Candidate{
			ID:       candidate.NewID(candidate.SourceLifeContext, q.UserID.String(), lc.Id.String()),
			Source:   candidate.SourceLifeContext,
			Label:    candidate.Truncate(lc.Title, 80),
			Preview:  candidate.Preview(lc.Content, maxPreviewRune),
			Metadata: candidate.Metadata{LifeContext: &candidate.LifeContextMeta{Kind: lc.Kind}},
			Features: baseFeatures(q, lc.CreatedAt, lc.UpdatedAt, ""),
		})
	}
	return out, nil
}

// load ignores the time range: life context is long-lived by definition.
func (f *LifeContextFetcher) load(ctx context.Context, q Query) ([]*entity.LifeContext, error) {
	key := fmt.Sprintf("life_context:%s:%d", q.UserID, q.Limit)

	if f.store != nil {
		var cached []*entity.LifeContext
		found, err := f.store.Get(ctx, key, &cached)
		f.metrics.CacheLookup("life_context", err == nil && found)
		if err == nil && found {
			return cached, nil
		}
	}

	rows, err := f.repo.FindAll(ctx,
		specification.UserOwnedBy{UserID: q.UserID},
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: q.Limit},
	)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		_ = f.store.Set(ctx, key, rows, f.ttl)
	}
	return rows, nil
}

// ReadingSessionFetcher groups sessions by passage so repeated reads of one
// passage become one candidate.
type ReadingSessionFetcher struct {
	repo contract.ReadingSessionRepository
}

func NewReadingSessionFetcher(repo contract.ReadingSessionRepository) *ReadingSessionFetcher {
	return &ReadingSessionFetcher{repo: repo}
}

func (f *ReadingSessionFetcher) Source() candidate.Source { return candidate.SourceReadingSession }

func (f *ReadingSessionFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	specs := append([]specification.Specification{specification.UserOwnedBy{UserID: q.UserID}}, rangeSpecs(q, "started_at")...)
	specs = append(specs,
		specification.OrderBy{Field: "started_at", Desc: true},
		specification.Pagination{Limit: q.Limit * 4},
	)
	rows, err := f.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	type passage struct {
		latest   *entity.ReadingSession
		sessions int
		progress float64
	}
	var order []string
	byRef := make(map[string]*passage)
	for _, rs := range rows {
		p, ok := byRef[rs.RefKey]
		if !ok {
			p = &passage{latest: rs}
			byRef[rs.RefKey] = p
			order = append(order, rs.RefKey)
		}
		p.sessions++
		if rs.Progress > p.progress {
			p.progress = rs.Progress
		}
	}

	out := make([]candidate.Candidate, 0, len(order))
	for _, ref := range order {
		if len(out) == q.Limit {
			break
		}
		p := byRef[ref]
		progress := p.progress
		if progress > 1 {
			progress = 1
		}
		out = append(out, candidate.Candidate{
			ID:      candidate.NewID(candidate.SourceReadingSession, q.UserID.String(), ref),
			Source:  candidate.SourceReadingSession,
			Label:   "Reading " + ref,
			Preview: fmt.Sprintf("Read %d time(s), %d%% through", p.sessions, int(progress*100)),
			Metadata: candidate.Metadata{Reading: &candidate.ReadingMeta{
				RefKey:   ref,
				Progress: progress,
				Sessions: p.sessions,
			}},
			Features: baseFeatures(q, p.latest.StartedAt, p.latest.UpdatedAt, ref),
		})
	}
	return out, nil
}

type HighlightFetcher struct {
	repo contract.VerseHighlightRepository
}

func NewHighlightFetcher(repo contract.VerseHighlightRepository) *HighlightFetcher {
	return &HighlightFetcher{repo: repo}
}

func (f *HighlightFetcher) Source() candidate.Source { return candidate.SourceHighlight }

func (f *HighlightFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	specs := append([]specification.Specification{specification.UserOwnedBy{UserID: q.UserID}}, rangeSpecs(q, "created_at")...)
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: q.Limit},
	)
	rows, err := f.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(rows))
	for _, h := range rows {
		out = append(out, candidate.Candidate{
			ID:       candidate.NewID(candidate.SourceHighlight, q.UserID.String(), h.Id.String()),
			Source:   candidate.SourceHighlight,
			Label:    "Highlight " + h.RefKey,
			Preview:  candidate.Preview(h.VerseText, maxPreviewRune),
			Metadata: candidate.Metadata{Highlight: &candidate.HighlightMeta{RefKey: h.RefKey, Color: h.Color}},
			Features: baseFeatures(q, h.CreatedAt, h.UpdatedAt, h.RefKey),
		})
	}
	return out, nil
}

// NoteFetcher lists recently edited notes.
type NoteFetcher struct {
	repo contract.NoteRepository
}

func NewNoteFetcher(repo contract.NoteRepository) *NoteFetcher {
	return &NoteFetcher{repo: repo}
}

func (f *NoteFetcher) Source() candidate.Source { return candidate.SourceNote }

func (f *NoteFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	specs := append([]specification.Specification{specification.UserOwnedBy{UserID: q.UserID}}, rangeSpecs(q, "updated_at")...)
	specs = append(specs,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: q.Limit},
	)
	rows, err := f.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(rows))
	for _, n := range rows {
		out = append(out, noteCandidate(q, n, nil))
	}
	return out, nil
}

func noteCandidate(q Query, n *entity.Note, similarity *float64) candidate.Candidate {
	f := baseFeatures(q, n.CreatedAt, n.UpdatedAt, n.RefKey)
	if similarity != nil {
		f.SemanticScore = candidate.Score(*similarity)
	}
	return candidate.Candidate{
		ID:       candidate.NewID(candidate.SourceNote, q.UserID.String(), n.Id.String()),
		Source:   candidate.SourceNote,
		Label:    candidate.Truncate(n.Title, 80),
		Preview:  candidate.Preview(lexical.PlainText(n.Content), maxPreviewRune),
		Metadata: candidate.Metadata{Note: &candidate.NoteMeta{NoteID: n.Id.String(), Kind: n.Kind, RefKey: n.RefKey}},
		Features: f,
	}
}

// SemanticNoteFetcher finds notes close to the user's message. It emits the
// same ids as NoteFetcher so the aggregator merges the two views of a note.
type SemanticNoteFetcher struct {
	embedder   embedding.EmbeddingProvider
	model      string
	embeddings contract.NoteEmbeddingRepository
	notes      contract.NoteRepository
	threshold  float64
}

// NewSemanticNoteFetcher searches only chunks embedded by model, the same
// model embedder uses for queries.
func NewSemanticNoteFetcher(embedder embedding.EmbeddingProvider, model string, embeddings contract.NoteEmbeddingRepository, notes contract.NoteRepository, threshold float64) *SemanticNoteFetcher {
	return &SemanticNoteFetcher{embedder: embedder, model: model, embeddings: embeddings, notes: notes, threshold: threshold}
}

func (f *SemanticNoteFetcher) Source() candidate.Source { return candidate.SourceNote }

func (f *SemanticNoteFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	if q.Plan.Query == "" {
		return nil, nil
	}

	vec, err := f.embedder.Embed(ctx, q.Plan.Query, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := f.embeddings.SearchSimilar(ctx, contract.SimilarityQuery{
		Vector:    vec,
		UserId:    q.UserID,
		Model:     f.model,
		Limit:     q.Limit * 3,
		Threshold: f.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	// Chunks of one note collapse to the best scoring chunk.
	var order []uuid.UUID
	best := make(map[uuid.UUID]float64)
	for _, s := range scored {
		id := s.Embedding.NoteId
		if prev, ok := best[id]; !ok {
			order = append(order, id)
			best[id] = s.Similarity
		} else if s.Similarity > prev {
			best[id] = s.Similarity
		}
	}
	if len(order) > q.Limit {
		order = order[:q.Limit]
	}
	if len(order) == 0 {
		return nil, nil
	}

	notes, err := f.notes.FindAll(ctx,
		specification.ByIDs{IDs: order},
		specification.UserOwnedBy{UserID: q.UserID},
	)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*entity.Note, len(notes))
	for _, n := range notes {
		byID[n.Id] = n
	}

	out := make([]candidate.Candidate, 0, len(order))
	for _, id := range order {
		n, ok := byID[id]
		if !ok {
			continue
		}
		sim := best[id]
		out = append(out, noteCandidate(q, n, &sim))
	}
	return out, nil
}

// ConversationSummaryFetcher surfaces earlier conversations that have a rolling summary.
type ConversationSummaryFetcher struct {
	repo contract.ConversationStateRepository
}

func NewConversationSummaryFetcher(repo contract.ConversationStateRepository) *ConversationSummaryFetcher {
	return &ConversationSummaryFetcher{repo: repo}
}

func (f *ConversationSummaryFetcher) Source() candidate.Source {
	return candidate.SourceConversationSummary
}

func (f *ConversationSummaryFetcher) Fetch(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	specs := append([]specification.Specification{
		specification.UserOwnedBy{UserID: q.UserID},
		specification.HasSummary{},
	}, rangeSpecs(q, "updated_at")...)
	specs = append(specs,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: q.Limit + 1},
	)
	rows, err := f.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(rows))
	for _, s := range rows {
		if q.ExcludeConversationID != nil && s.ConversationId == *q.ExcludeConversationID {
			continue
		}
		if len(out) == q.Limit {
			break
		}
		updated := s.UpdatedAt
		out = append(out, candidate.Candidate{
			ID:      candidate.NewID(candidate.SourceConversationSummary, q.UserID.String(), s.ConversationId.String()),
			Source:  candidate.SourceConversationSummary,
			Label:   "Conversation from " + s.CreatedAt.Format("Jan 2"),
			Preview: candidate.Preview(s.Summary, maxPreviewRune),
			Metadata: candidate.Metadata{Summary: &candidate.SummaryMeta{
				ConversationID: s.ConversationId.String(),
				TurnCount:      s.TurnCount,
			}},
			Features: baseFeatures(q, s.CreatedAt, &updated, ""),
		})
	}
	return out, nil
}
