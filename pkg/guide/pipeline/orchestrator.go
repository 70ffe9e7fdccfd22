package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/pkg/guide/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrRunNotFound     = errors.New("debug run not found")
	ErrRunNotResumable = errors.New("debug run cannot be continued")
	ErrStopStageBehind = errors.New("stop stage is not ahead of the next stage")
)

// Executor runs the four stage functions. Each receives only the original
// run parameters and the artifacts of earlier stages.
type Executor interface {
	Ingress(ctx context.Context, params RunParams) (*IngressArtifact, error)
	ContextCandidates(ctx context.Context, params RunParams, ingress *IngressArtifact) (*CandidatesArtifact, error)
	PromptAssembly(ctx context.Context, params RunParams, ingress *IngressArtifact, cands *CandidatesArtifact) (*PromptArtifact, error)
	ModelCall(ctx context.Context, params RunParams, p *PromptArtifact) (*ModelCallArtifact, error)
}

type RunInput struct {
	Params    RunParams
	StopAt    *Stage
	CreatedBy uuid.UUID
}

// artifacts holds the decoded outputs of completed stages.
type artifacts struct {
	ingress    *IngressArtifact
	candidates *CandidatesArtifact
	prompt     *PromptArtifact
	model      *ModelCallArtifact
}

type Orchestrator struct {
	executor  Executor
	runs      contract.DebugRunRepository
	artifacts contract.PipelineArtifactRepository
	logger    logger.ILogger
	metrics   *metrics.Collector
}

func NewOrchestrator(executor Executor, runs contract.DebugRunRepository, artifacts contract.PipelineArtifactRepository, log logger.ILogger, m *metrics.Collector) *Orchestrator {
	return &Orchestrator{executor: executor, runs: runs, artifacts: artifacts, logger: log, metrics: m}
}

// Run creates a debug run and executes stages in order, halting before
// in.StopAt when it is set.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*entity.DebugRun, error) {
	if in.StopAt != nil && in.StopAt.index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, *in.StopAt)
	}

	ctx, span := otel.Tracer("guide/pipeline").Start(ctx, "pipeline.run")
	defer span.End()

	traceID := uuid.NewString()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	run := &entity.DebugRun{
		Id:             uuid.New(),
		TraceId:        traceID,
		TargetUserId:   in.Params.UserID,
		ConversationId: in.Params.ConversationID,
		Entrypoint:     string(in.Params.Entrypoint),
		Message:        in.Params.Message,
		History:        in.Params.History,
		EnabledActions: in.Params.EnabledActions,
		Status:         string(StatusRunning),
		CreatedBy:      in.CreatedBy,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create debug run: %w", err)
	}
	span.SetAttributes(attribute.String("guide.run_id", run.Id.String()))

	o.logger.Info("PIPELINE", "Debug run started", map[string]interface{}{
		"run_id":  run.Id.String(),
		"user_id": run.TargetUserId.String(),
		"stop_at": stageName(in.StopAt),
	})

	params := in.Params
	params.Debug = true
	return o.advance(ctx, span, run, params, &artifacts{}, StageIngress, in.StopAt)
}

// Continue resumes a stopped (or failed) run from the stage after its last
// persisted artifact. Completed stages are never executed again.
func (o *Orchestrator) Continue(ctx context.Context, runID uuid.UUID, stopAt *Stage) (*entity.DebugRun, error) {
	if stopAt != nil && stopAt.index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, *stopAt)
	}

	run, err := o.runs.FindOne(ctx, specification.ByID{ID: runID})
	if err != nil {
		return nil, fmt.Errorf("load debug run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.Status != string(StatusStopped) && run.Status != string(StatusError) {
		return nil, fmt.Errorf("%w: status is %s", ErrRunNotResumable, run.Status)
	}

	loaded, last, err := o.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	next := StageIngress
	if last != "" {
		n, ok := Next(last)
		if !ok {
			return nil, fmt.Errorf("%w: every stage already has an artifact", ErrRunNotResumable)
		}
		next = n
	}
	if stopAt != nil && stopAt.index() <= next.index() {
		return nil, fmt.Errorf("%w: next is %s, stop at %s", ErrStopStageBehind, next, *stopAt)
	}

	ctx, span := otel.Tracer("guide/pipeline").Start(ctx, "pipeline.continue",
		trace.WithAttributes(attribute.String("guide.run_id", runID.String())))
	defer span.End()

	run.Status = string(StatusRunning)
	run.StoppedAtStage = nil
	run.Error = ""
	if err := o.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("update debug run: %w", err)
	}

	o.logger.Info("PIPELINE", "Debug run continued", map[string]interface{}{
		"run_id":  runID.String(),
		"from":    string(next),
		"stop_at": stageName(stopAt),
	})
	return o.advance(ctx, span, run, paramsFromRun(run), loaded, next, stopAt)
}

// Get returns a run with its artifacts in stage order.
func (o *Orchestrator) Get(ctx context.Context, runID uuid.UUID) (*entity.DebugRun, []*entity.PipelineArtifact, error) {
	run, err := o.runs.FindOne(ctx, specification.ByID{ID: runID})
	if err != nil {
		return nil, nil, fmt.Errorf("load debug run: %w", err)
	}
	if run == nil {
		return nil, nil, ErrRunNotFound
	}
	stored, err := o.artifacts.FindAll(ctx, specification.ByRunID{RunID: runID})
	if err != nil {
		return nil, nil, fmt.Errorf("load artifacts: %w", err)
	}
	byStage := make(map[Stage]*entity.PipelineArtifact, len(stored))
	for _, a := range stored {
		byStage[Stage(a.Stage)] = a
	}
	ordered := make([]*entity.PipelineArtifact, 0, len(stored))
	for _, s := range Order {
		if a, ok := byStage[s]; ok {
			ordered = append(ordered, a)
		}
	}
	return run, ordered, nil
}

func (o *Orchestrator) advance(ctx context.Context, span trace.Span, run *entity.DebugRun, params RunParams, loaded *artifacts, from Stage, stopAt *Stage) (*entity.DebugRun, error) {
	for stage := from; ; {
		if stopAt != nil && stage == *stopAt {
			name := string(stage)
			run.Status = string(StatusStopped)
			run.StoppedAtStage = &name
			span.SetAttributes(attribute.String("guide.stopped_at", name))
			return o.finish(ctx, run)
		}

		if err := o.step(ctx, run.Id, params, loaded, stage); err != nil {
			run.Status = string(StatusError)
			run.Error = fmt.Sprintf("%s: %s", stage, err.Error())
			span.RecordError(err)
			span.SetStatus(codes.Error, run.Error)
			o.logger.Error("PIPELINE", "Stage failed", map[string]interface{}{
				"run_id": run.Id.String(),
				"stage":  string(stage),
				"error":  err.Error(),
			})
			return o.finish(ctx, run)
		}

		next, ok := Next(stage)
		if !ok {
			run.Status = string(StatusCompleted)
			return o.finish(ctx, run)
		}
		stage = next
	}
}

func (o *Orchestrator) finish(ctx context.Context, run *entity.DebugRun) (*entity.DebugRun, error) {
	if err := o.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("update debug run: %w", err)
	}
	o.logger.Info("PIPELINE", "Debug run settled", map[string]interface{}{
		"run_id": run.Id.String(),
		"status": run.Status,
	})
	return run, nil
}

// step executes one stage and persists its artifact before returning.
func (o *Orchestrator) step(ctx context.Context, runID uuid.UUID, params RunParams, loaded *artifacts, stage Stage) (err error) {
	ctx, span := otel.Tracer("guide/pipeline").Start(ctx, "pipeline."+strings.ToLower(string(stage)))
	defer span.End()

	start := time.Now()
	defer func() {
		o.metrics.ObserveStage(string(stage), time.Since(start))
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()

	var out interface{}
	switch stage {
	case StageIngress:
		loaded.ingress, err = o.executor.Ingress(ctx, params)
		out = loaded.ingress
	case StageContextCandidates:
		if loaded.ingress == nil {
			return errors.New("missing INGRESS artifact")
		}
		loaded.candidates, err = o.executor.ContextCandidates(ctx, params, loaded.ingress)
		out = loaded.candidates
	case StagePromptAssembly:
		if loaded.ingress == nil || loaded.candidates == nil {
			return errors.New("missing CONTEXT_CANDIDATES artifact")
		}
		loaded.prompt, err = o.executor.PromptAssembly(ctx, params, loaded.ingress, loaded.candidates)
		out = loaded.prompt
	case StageModelCall:
		if loaded.prompt == nil {
			return errors.New("missing PROMPT_ASSEMBLY artifact")
		}
		loaded.model, err = o.executor.ModelCall(ctx, params, loaded.prompt)
		out = loaded.model
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return o.artifacts.Create(ctx, &entity.PipelineArtifact{
		Id:      uuid.New(),
		RunId:   runID,
		Stage:   string(stage),
		Payload: payload,
	})
}

// load decodes the persisted artifacts and returns the last completed stage
// of the contiguous prefix of Order.
func (o *Orchestrator) load(ctx context.Context, runID uuid.UUID) (*artifacts, Stage, error) {
	stored, err := o.artifacts.FindAll(ctx, specification.ByRunID{RunID: runID})
	if err != nil {
		return nil, "", fmt.Errorf("load artifacts: %w", err)
	}
	byStage := make(map[Stage]json.RawMessage, len(stored))
	for _, a := range stored {
		byStage[Stage(a.Stage)] = a.Payload
	}

	loaded := &artifacts{}
	var last Stage
	for _, stage := range Order {
		raw, ok := byStage[stage]
		if !ok {
			break
		}
		var target interface{}
		switch stage {
		case StageIngress:
			loaded.ingress = &IngressArtifact{}
			target = loaded.ingress
		case StageContextCandidates:
			loaded.candidates = &CandidatesArtifact{}
			target = loaded.candidates
		case StagePromptAssembly:
			loaded.prompt = &PromptArtifact{}
			target = loaded.prompt
		case StageModelCall:
			loaded.model = &ModelCallArtifact{}
			target = loaded.model
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, "", fmt.Errorf("decode %s artifact: %w", stage, err)
		}
		last = stage
	}
	return loaded, last, nil
}

func stageName(s *Stage) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
