package service

import (
	"context"
	"fmt"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/events"
	"devotion-guide-be/pkg/guide/pipeline"
	"devotion-guide-be/pkg/guide/plan"

	"github.com/google/uuid"
)

type IDebugRunService interface {
	Start(ctx context.Context, adminId uuid.UUID, req *dto.StartDebugRunRequest) (*dto.DebugRunResponse, error)
	Continue(ctx context.Context, runId uuid.UUID, req *dto.ContinueDebugRunRequest) (*dto.DebugRunResponse, error)
	Get(ctx context.Context, runId uuid.UUID) (*dto.DebugRunResponse, error)
}

type debugRunService struct {
	orchestrator *pipeline.Orchestrator
	events       events.Publisher
	logger       logger.ILogger
}

func NewDebugRunService(orchestrator *pipeline.Orchestrator, eventPublisher events.Publisher, log logger.ILogger) IDebugRunService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &debugRunService{
		orchestrator: orchestrator,
		events:       eventPublisher,
		logger:       log,
	}
}

func (ds *debugRunService) Start(ctx context.Context, adminId uuid.UUID, req *dto.StartDebugRunRequest) (*dto.DebugRunResponse, error) {
	stopAt, err := parseStopAt(req.StopAt)
	if err != nil {
		return nil, err
	}

	run, err := ds.orchestrator.Run(ctx, pipeline.RunInput{
		Params: pipeline.RunParams{
			UserID:         req.TargetUserId,
			ConversationID: req.ConversationId,
			Entrypoint:     plan.Entrypoint(req.Entrypoint),
			Message:        req.Message,
			History:        fromMessageDTOs(req.History),
			EnabledActions: req.EnabledActions,
		},
		StopAt:    stopAt,
		CreatedBy: adminId,
	})
	if err != nil {
		return nil, err
	}
	return ds.settled(ctx, run)
}

func (ds *debugRunService) Continue(ctx context.Context, runId uuid.UUID, req *dto.ContinueDebugRunRequest) (*dto.DebugRunResponse, error) {
	stopAt, err := parseStopAt(req.StopAt)
	if err != nil {
		return nil, err
	}
	run, err := ds.orchestrator.Continue(ctx, runId, stopAt)
	if err != nil {
		return nil, err
	}
	return ds.settled(ctx, run)
}

func (ds *debugRunService) Get(ctx context.Context, runId uuid.UUID) (*dto.DebugRunResponse, error) {
	run, artifacts, err := ds.orchestrator.Get(ctx, runId)
	if err != nil {
		return nil, err
	}
	return toDebugRunResponse(run, artifacts), nil
}

// settled reloads the run with its artifacts and announces the new status.
func (ds *debugRunService) settled(ctx context.Context, run *entity.DebugRun) (*dto.DebugRunResponse, error) {
	event := events.New(events.TypeDebugRunSettled, map[string]interface{}{
		"run_id":   run.Id.String(),
		"trace_id": run.TraceId,
		"status":   run.Status,
	})
	if run.StoppedAtStage != nil {
		event.Data["stopped_at_stage"] = *run.StoppedAtStage
	}
	if err := ds.events.Publish(ctx, event); err != nil {
		ds.logger.Warn("DEBUG_RUN", "Failed to publish settled event", map[string]interface{}{
			"run_id": run.Id.String(),
			"error":  err.Error(),
		})
	}
	return ds.Get(ctx, run.Id)
}

func parseStopAt(raw string) (*pipeline.Stage, error) {
	if raw == "" {
		return nil, nil
	}
	stage, err := pipeline.ParseStage(raw)
	if err != nil {
		return nil, fmt.Errorf("stop_at: %w", err)
	}
	return &stage, nil
}

func toDebugRunResponse(run *entity.DebugRun, artifacts []*entity.PipelineArtifact) *dto.DebugRunResponse {
	res := &dto.DebugRunResponse{
		Id:             run.Id,
		TraceId:        run.TraceId,
		TargetUserId:   run.TargetUserId,
		ConversationId: run.ConversationId,
		Entrypoint:     run.Entrypoint,
		Status:         run.Status,
		StoppedAtStage: run.StoppedAtStage,
		Error:          run.Error,
		CreatedAt:      run.CreatedAt,
		UpdatedAt:      run.UpdatedAt,
	}
	for _, a := range artifacts {
		res.Artifacts = append(res.Artifacts, dto.PipelineArtifactDTO{
			Stage:     a.Stage,
			Payload:   a.Payload,
			CreatedAt: a.CreatedAt,
		})
	}
	return res
}
