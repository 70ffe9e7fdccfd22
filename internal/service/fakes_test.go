package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/internal/repository/unitofwork"
	"devotion-guide-be/pkg/embedding"
	"devotion-guide-be/pkg/events"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/fetcher"
	"devotion-guide-be/pkg/llm"

	"github.com/google/uuid"
)

// --- model ---

type chunkStream struct{ chunks [][]byte }

func (s *chunkStream) Next() ([]byte, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *chunkStream) Close() error { return nil }

type scriptedModel struct {
	llm.LLMProvider
	lines []string
}

func (m *scriptedModel) Stream(context.Context, []llm.Message, ...llm.Option) (llm.ChunkStream, error) {
	// One chunk per line so cancellation can interleave.
	chunks := make([][]byte, len(m.lines))
	for i, l := range m.lines {
		chunks[i] = []byte(l + "\n")
	}
	return &chunkStream{chunks: chunks}, nil
}

func suggestionLine(rank int, evidence string) string {
	return fmt.Sprintf(`{"type":"suggestion","rank":%d,"title":"Pray","subtitle":"Bring this to God.","normalized_action":"pray","grounding":"note","target_label":"Prayer","action":{"type":"start_prayer"},"evidence_ids":[%q],"confidence":0.7}`, rank, evidence)
}

// --- sources ---

type staticFetcher struct{ cands []candidate.Candidate }

func (f staticFetcher) Source() candidate.Source { return candidate.SourceNote }

func (f staticFetcher) Fetch(context.Context, fetcher.Query) ([]candidate.Candidate, error) {
	return append([]candidate.Candidate(nil), f.cands...), nil
}

func noteCandidate(user uuid.UUID) candidate.Candidate {
	return candidate.Candidate{
		ID:       candidate.NewID(candidate.SourceNote, user.String(), "n1"),
		Source:   candidate.SourceNote,
		Label:    "Worried about work",
		Preview:  "I keep waking up at night thinking about the project.",
		Metadata: candidate.Metadata{Note: &candidate.NoteMeta{NoteID: "n1"}},
		Features: candidate.Features{RecencyScore: candidate.Score(0.7)},
	}
}

// --- stores ---

type convRepo struct {
	contract.ConversationStateRepository
	mu   sync.Mutex
	rows map[uuid.UUID]entity.ConversationState
}

func newConvRepo() *convRepo { return &convRepo{rows: map[uuid.UUID]entity.ConversationState{}} }

func (r *convRepo) Save(_ context.Context, s *entity.ConversationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.RecentMessages = append([]entity.ConversationMessage(nil), s.RecentMessages...)
	r.rows[s.ConversationId] = cp
	return nil
}

func (r *convRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *convRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range specs {
		if byID, ok := s.(specification.ByConversationID); ok {
			row, found := r.rows[byID.ConversationID]
			if !found {
				return nil, nil
			}
			return &row, nil
		}
	}
	return nil, errors.New("unsupported query")
}

type runRepo struct {
	contract.DebugRunRepository
	rows map[uuid.UUID]entity.DebugRun
}

func (r *runRepo) Create(_ context.Context, run *entity.DebugRun) error {
	r.rows[run.Id] = *run
	return nil
}

func (r *runRepo) Update(_ context.Context, run *entity.DebugRun) error {
	r.rows[run.Id] = *run
	return nil
}

func (r *runRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.DebugRun, error) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByID); ok {
			if row, found := r.rows[byID.ID]; found {
				return &row, nil
			}
		}
	}
	return nil, nil
}

type artifactRepo struct {
	contract.PipelineArtifactRepository
	rows []entity.PipelineArtifact
}

func (r *artifactRepo) Create(_ context.Context, a *entity.PipelineArtifact) error {
	r.rows = append(r.rows, *a)
	return nil
}

func (r *artifactRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.PipelineArtifact, error) {
	var runID uuid.UUID
	for _, s := range specs {
		if byRun, ok := s.(specification.ByRunID); ok {
			runID = byRun.RunID
		}
	}
	var out []*entity.PipelineArtifact
	for i := range r.rows {
		if r.rows[i].RunId == runID {
			cp := r.rows[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type sessionLogRepo struct {
	contract.GuideSessionLogRepository
	created chan *entity.GuideSessionLog
	err     error
}

func (r *sessionLogRepo) Create(_ context.Context, l *entity.GuideSessionLog) error {
	if r.err != nil {
		return r.err
	}
	r.created <- l
	return nil
}

type noteRepo struct {
	contract.NoteRepository
	notes   map[uuid.UUID]*entity.Note
	indexed map[uuid.UUID]time.Time
}

func (r *noteRepo) MarkIndexed(_ context.Context, noteId uuid.UUID, at time.Time) error {
	if r.indexed == nil {
		r.indexed = make(map[uuid.UUID]time.Time)
	}
	r.indexed[noteId] = at
	return nil
}

func (r *noteRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Note, error) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByID); ok {
			return r.notes[byID.ID], nil
		}
	}
	return nil, errors.New("unsupported query")
}

type embeddingRepo struct {
	contract.NoteEmbeddingRepository
	deleted []uuid.UUID
	stored  []*entity.NoteEmbedding
}

func (r *embeddingRepo) DeleteByNoteId(_ context.Context, noteId uuid.UUID) error {
	r.deleted = append(r.deleted, noteId)
	return nil
}

func (r *embeddingRepo) CreateBulk(_ context.Context, e []*entity.NoteEmbedding) error {
	r.stored = append(r.stored, e...)
	return nil
}

// fakeUow serves whichever repositories a test sets.
type fakeUow struct {
	unitofwork.UnitOfWork
	notes      *noteRepo
	embeddings *embeddingRepo
	sessions   *sessionLogRepo
	commits    int
}

func (u *fakeUow) Begin(context.Context) error { return nil }
func (u *fakeUow) Rollback() error              { return nil }

func (u *fakeUow) Commit() error {
	u.commits++
	return nil
}

func (u *fakeUow) NoteRepository() contract.NoteRepository                   { return u.notes }
func (u *fakeUow) NoteEmbeddingRepository() contract.NoteEmbeddingRepository { return u.embeddings }
func (u *fakeUow) GuideSessionLogRepository() contract.GuideSessionLogRepository {
	return u.sessions
}

type fakeFactory struct{ uow *fakeUow }

func (f fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func (f fakeFactory) Transaction(_ context.Context, fn func(unitofwork.UnitOfWork) error) error {
	if err := fn(f.uow); err != nil {
		return err
	}
	f.uow.commits++
	return nil
}

// --- embeddings and bus ---

type fakeEmbedder struct {
	texts []string
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string, task embedding.TaskType) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if task != embedding.TaskDocument {
		return nil, fmt.Errorf("unexpected task %s", task)
	}
	e.texts = append(e.texts, text)
	return []float32{float32(len(strings.Fields(text))), 1}, nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturedEvents) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

type capturedSessions struct {
	mu   sync.Mutex
	msgs []dto.GuideSessionMessage
}

func (c *capturedSessions) SendGuideSession(_ context.Context, msg dto.GuideSessionMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturedSessions) all() []dto.GuideSessionMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dto.GuideSessionMessage(nil), c.msgs...)
}
