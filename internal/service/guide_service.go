package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/guide/conversation"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/guide/pipeline"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/protocol"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	outcomeCompleted = "completed"
	outcomeSynthetic = "synthetic_done"
	outcomeError     = "error"
)

type IGuideService interface {
	Start(ctx context.Context, userId uuid.UUID, req *dto.SuggestionRequest) (*GuideStream, error)
}

type guideService struct {
	stages         *pipeline.Stages
	runner         *protocol.Runner
	conversations  *conversation.Manager
	publisher      IPublisherService
	logger         logger.ILogger
	metrics        *metrics.Collector
	defaultActions []string
}

func NewGuideService(
	stages *pipeline.Stages,
	runner *protocol.Runner,
	conversations *conversation.Manager,
	publisher IPublisherService,
	log logger.ILogger,
	m *metrics.Collector,
	defaultActions []string,
) IGuideService {
	return &guideService{
		stages:         stages,
		runner:         runner,
		conversations:  conversations,
		publisher:      publisher,
		logger:         log,
		metrics:        m,
		defaultActions: defaultActions,
	}
}

// GuideStream relays suggestion events to one client. Drain Events until it
// closes, then call Wait for the session outcome.
type GuideStream struct {
	TraceId string
	events  chan protocol.Event
	done    chan struct{}
	summary protocol.Summary
	err     error
}

func (s *GuideStream) Events() <-chan protocol.Event { return s.events }

func (s *GuideStream) Wait() (protocol.Summary, error) {
	<-s.done
	return s.summary, s.err
}

// Start assembles the prompt synchronously and returns once the model stream
// is open. Failures before the first event are returned here so the caller
// can still answer with a normal error response.
func (gs *guideService) Start(ctx context.Context, userId uuid.UUID, req *dto.SuggestionRequest) (*GuideStream, error) {
	ctx, span := otel.Tracer("guide/service").Start(ctx, "guide.session",
		trace.WithAttributes(attribute.String("guide.entrypoint", req.Entrypoint)))

	traceID := uuid.NewString()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	params := pipeline.RunParams{
		UserID:         userId,
		ConversationID: req.ConversationId,
		Entrypoint:     plan.Entrypoint(req.Entrypoint),
		Message:        req.Message,
		EnabledActions: req.EnabledActions,
		Debug:          req.Debug,
	}
	if len(params.EnabledActions) == 0 {
		params.EnabledActions = gs.defaultActions
	}

	prepared, err := gs.stages.Prepare(ctx, params)
	if err != nil {
		gs.fail(span, params, traceID, err)
		return nil, err
	}

	inner, err := gs.runner.Start(ctx, gs.stages.Request(prepared.Prompt, params.Debug))
	if err != nil {
		gs.fail(span, params, traceID, err)
		return nil, err
	}

	out := &GuideStream{
		TraceId: traceID,
		events:  make(chan protocol.Event),
		done:    make(chan struct{}),
	}
	go func() {
		defer span.End()
		defer close(out.done)

		accepted := gs.relay(ctx, inner, out.events)
		out.summary, out.err = inner.Wait()
		if out.err == nil && ctx.Err() != nil {
			// Nobody received the stream, so the turn must not be recorded.
			out.err = ctx.Err()
		}
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
		}
		// The client may already be gone; bookkeeping still has to land.
		gs.settle(context.WithoutCancel(ctx), params, traceID, accepted, out.summary, out.err)
	}()
	return out, nil
}

// relay forwards events until the runner closes its channel. Once the
// client's context ends, remaining events are discarded so the producer can
// observe the cancellation and exit.
func (gs *guideService) relay(ctx context.Context, inner *protocol.Stream, out chan<- protocol.Event) []*protocol.Suggestion {
	defer close(out)

	var accepted []*protocol.Suggestion
	for ev := range inner.Events() {
		if ev.Type == protocol.EventSuggestion {
			accepted = append(accepted, ev.Suggestion)
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			for range inner.Events() {
			}
			return accepted
		}
	}
	return accepted
}

func (gs *guideService) settle(ctx context.Context, params pipeline.RunParams, traceID string, accepted []*protocol.Suggestion, summary protocol.Summary, streamErr error) {
	outcome := outcomeCompleted
	switch {
	case streamErr != nil:
		outcome = outcomeError
	case summary.SyntheticDone:
		outcome = outcomeSynthetic
	}
	gs.metrics.Session(string(params.Entrypoint), outcome)

	if streamErr == nil && params.Entrypoint == plan.EntrypointChat && params.ConversationID != nil && gs.conversations != nil {
		_, err := gs.conversations.RecordTurn(ctx, conversation.TurnInput{
			ConversationID:   *params.ConversationID,
			UserID:           params.UserID,
			UserMessage:      params.Message,
			AssistantMessage: renderSuggestions(accepted),
		})
		if err != nil {
			gs.logger.Error("GUIDE", "Failed to record conversation turn", map[string]interface{}{
				"conversation_id": params.ConversationID.String(),
				"error":           err.Error(),
			})
		}
	}

	gs.publish(ctx, params, traceID, summary, streamErr)
}

func (gs *guideService) fail(span trace.Span, params pipeline.RunParams, traceID string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	gs.metrics.Session(string(params.Entrypoint), outcomeError)
	gs.logger.Warn("GUIDE", "Session failed before streaming", map[string]interface{}{
		"user_id":  params.UserID.String(),
		"trace_id": traceID,
		"error":    err.Error(),
	})
}

func (gs *guideService) publish(ctx context.Context, params pipeline.RunParams, traceID string, summary protocol.Summary, streamErr error) {
	if gs.publisher == nil {
		return
	}
	drops := make(map[string]int, len(summary.Drops))
	for reason, n := range summary.Drops {
		drops[string(reason)] = n
	}
	msg := dto.GuideSessionMessage{
		UserId:         params.UserID,
		ConversationId: params.ConversationID,
		Entrypoint:     string(params.Entrypoint),
		TraceId:        traceID,
		Accepted:       summary.Accepted,
		Drops:          drops,
		SyntheticDone:  summary.SyntheticDone,
		DurationMs:     summary.Duration.Milliseconds(),
		FinishedAt:     time.Now().UTC(),
	}
	if streamErr != nil {
		msg.Error = streamErr.Error()
	}
	if err := gs.publisher.SendGuideSession(ctx, msg); err != nil {
		gs.logger.Warn("GUIDE", "Failed to publish session telemetry", map[string]interface{}{
			"trace_id": traceID,
			"error":    err.Error(),
		})
	}
}

// renderSuggestions is the assistant side of a chat turn as stored in the
// conversation window.
func renderSuggestions(suggestions []*protocol.Suggestion) string {
	var b strings.Builder
	for _, s := range suggestions {
		fmt.Fprintf(&b, "%d. %s: %s\n", s.Rank, s.Title, s.Subtitle)
	}
	return strings.TrimSpace(b.String())
}
