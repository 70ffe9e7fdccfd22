package service

import (
	"context"
	"testing"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/events"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/fetcher"
	"devotion-guide-be/pkg/guide/pipeline"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDebugRunService() (IDebugRunService, *capturedEvents) {
	log := logger.NewNopLogger()
	stages := pipeline.NewStages(pipeline.StagesConfig{
		Fetchers:     []fetcher.Fetcher{staticFetcher{cands: []candidate.Candidate{noteCandidate(testUser)}}},
		Runner:       protocol.NewRunner(&scriptedModel{lines: threeSuggestions()}, nil, log, nil),
		Logger:       log,
		FetchLimit:   5,
		DefaultRange: plan.RangeLastMonth,
	})
	orchestrator := pipeline.NewOrchestrator(stages, &runRepo{rows: map[uuid.UUID]entity.DebugRun{}}, &artifactRepo{}, log, nil)
	bus := &capturedEvents{}
	return NewDebugRunService(orchestrator, bus, log), bus
}

func artifactStages(res *dto.DebugRunResponse) []string {
	var out []string
	for _, a := range res.Artifacts {
		out = append(out, a.Stage)
	}
	return out
}

func TestDebugRunService_StopThenContinue(t *testing.T) {
	svc, bus := newDebugRunService()
	ctx := context.Background()
	admin := uuid.New()

	started, err := svc.Start(ctx, admin, &dto.StartDebugRunRequest{
		TargetUserId: testUser,
		Entrypoint:   "chat",
		Message:      "Help me pray",
		History: []dto.ConversationMessageDTO{
			{Role: "user", Content: "yesterday was hard"},
		},
		StopAt: "prompt_assembly",
	})
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusStopped), started.Status)
	require.NotNil(t, started.StoppedAtStage)
	assert.Equal(t, "PROMPT_ASSEMBLY", *started.StoppedAtStage)
	assert.Equal(t, []string{"INGRESS", "CONTEXT_CANDIDATES"}, artifactStages(started))
	assert.NotEmpty(t, started.TraceId)

	continued, err := svc.Continue(ctx, started.Id, &dto.ContinueDebugRunRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusCompleted), continued.Status)
	assert.Nil(t, continued.StoppedAtStage)
	assert.Equal(t, []string{"INGRESS", "CONTEXT_CANDIDATES", "PROMPT_ASSEMBLY", "MODEL_CALL"}, artifactStages(continued))

	published := bus.all()
	require.Len(t, published, 2)
	assert.Equal(t, events.TypeDebugRunSettled, published[0].EventType())
	assert.Equal(t, "stopped", events.String(published[0], "status"))
	assert.Equal(t, "PROMPT_ASSEMBLY", events.String(published[0], "stopped_at_stage"))
	assert.Equal(t, "completed", events.String(published[1], "status"))

	_, err = svc.Continue(ctx, started.Id, &dto.ContinueDebugRunRequest{})
	assert.ErrorIs(t, err, pipeline.ErrRunNotResumable)
}

func TestDebugRunService_Rejections(t *testing.T) {
	svc, bus := newDebugRunService()
	ctx := context.Background()

	_, err := svc.Start(ctx, uuid.New(), &dto.StartDebugRunRequest{TargetUserId: testUser, Entrypoint: "home", StopAt: "DEPLOY"})
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)

	_, err = svc.Continue(ctx, uuid.New(), &dto.ContinueDebugRunRequest{StopAt: "model_call"})
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)

	assert.Empty(t, bus.all())
}

func TestDebugRunService_StageErrorIsARunState(t *testing.T) {
	svc, _ := newDebugRunService()

	// A missing target user fails INGRESS; the run itself is still returned.
	res, err := svc.Start(context.Background(), uuid.New(), &dto.StartDebugRunRequest{Entrypoint: "home"})
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.StatusError), res.Status)
	assert.Contains(t, res.Error, "INGRESS")
	assert.Empty(t, res.Artifacts)
}
