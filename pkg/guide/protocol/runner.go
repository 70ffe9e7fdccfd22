package protocol

import (
	"context"
	"errors"
	"io"
	"time"

	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ToolHandler executes a tool_call line. The runner waits for it before
// reading further upstream output.
type ToolHandler func(ctx context.Context, call ToolCall) error

type Request struct {
	Messages []llm.Message
	Options  []llm.Option
	Allow    AllowList
	// Debug adds a DebugSummary event right before done.
	Debug bool
	Tools ToolHandler
}

// Summary is the bookkeeping of one finished stream.
type Summary struct {
	Accepted      int
	Drops         map[DropReason]int
	Lines         int
	DoneAccepted  bool
	SyntheticDone bool
	Duration      time.Duration
}

type Runner struct {
	provider llm.StreamingProvider
	schema   *Schema
	logger   logger.ILogger
	metrics  *metrics.Collector
	buffer   int
}

func NewRunner(provider llm.StreamingProvider, schema *Schema, log logger.ILogger, m *metrics.Collector) *Runner {
	if schema == nil {
		schema = NewSchema()
	}
	return &Runner{provider: provider, schema: schema, logger: log, metrics: m, buffer: 8}
}

// Stream is the caller side of a running session: drain Events until it is
// closed, then call Wait.
type Stream struct {
	events  chan Event
	done    chan struct{}
	summary Summary
	err     error
}

func (s *Stream) Events() <-chan Event { return s.events }

// Wait blocks until the producer has exited.
func (s *Stream) Wait() (Summary, error) {
	<-s.done
	return s.summary, s.err
}

// Start opens the upstream completion and returns once it is known to be
// streaming. A failure to open is returned directly.
func (r *Runner) Start(ctx context.Context, req Request) (*Stream, error) {
	ctx, span := otel.Tracer("guide/protocol").Start(ctx, "protocol.stream")

	upstream, err := r.provider.Stream(ctx, req.Messages, req.Options...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	s := &Stream{
		events: make(chan Event, r.buffer),
		done:   make(chan struct{}),
	}
	go func() {
		defer span.End()
		defer close(s.done)
		defer close(s.events)
		defer upstream.Close()

		s.summary, s.err = r.produce(ctx, upstream, req, s.events)

		span.SetAttributes(
			attribute.Int("guide.accepted", s.summary.Accepted),
			attribute.Int("guide.lines", s.summary.Lines),
			attribute.Bool("guide.synthetic_done", s.summary.SyntheticDone),
		)
		if s.err != nil {
			span.RecordError(s.err)
			span.SetStatus(codes.Error, s.err.Error())
		}
	}()
	return s, nil
}

type producer struct {
	r         *Runner
	ctx       context.Context
	req       Request
	out       chan<- Event
	validator *Validator
	session   *Session
	lines     int
}

func (r *Runner) produce(ctx context.Context, upstream llm.ChunkStream, req Request, out chan<- Event) (Summary, error) {
	start := time.Now()
	p := &producer{
		r:         r,
		ctx:       ctx,
		req:       req,
		out:       out,
		validator: r.schema.Bind(req.Allow),
		session: NewSession(func(reason DropReason) {
			r.metrics.Drop(string(reason))
		}),
	}

	var splitter LineSplitter
	var decoder utf8Decoder
	err := func() error {
		for !p.session.IsDone() {
			chunk, err := upstream.Next()
			if errors.Is(err, io.EOF) {
				// Residual bytes form the last line.
				splitter.Push(decoder.Flush())
				if line := splitter.Flush(); line != nil {
					if err := p.handle(line); err != nil {
						return err
					}
				}
				return nil
			}
			if err != nil {
				return err
			}

			for _, line := range splitter.Push(decoder.Decode(chunk)) {
				if err := p.handle(line); err != nil {
					return err
				}
			}
		}
		return nil
	}()

	summary := Summary{
		Accepted:     p.session.Accepted(),
		Lines:        p.lines,
		DoneAccepted: p.session.IsDone(),
	}

	// A transport failure or cancellation ends the stream without done.
	if err != nil {
		summary.Drops = p.session.Drops()
		summary.Duration = time.Since(start)
		r.logger.Warn("PROTOCOL", "Stream aborted", map[string]interface{}{
			"accepted":      summary.Accepted,
			"lines":         summary.Lines,
			"pending_bytes": splitter.Pending(),
			"error":         err.Error(),
		})
		return summary, err
	}

	if !p.session.IsDone() {
		summary.SyntheticDone = true
		if emitErr := p.finish(); emitErr != nil {
			summary.Drops = p.session.Drops()
			summary.Duration = time.Since(start)
			return summary, emitErr
		}
		p.session.Close()
		summary.DoneAccepted = false
	}

	summary.Drops = p.session.Drops()
	summary.Duration = time.Since(start)
	r.logger.Info("PROTOCOL", "Stream finished", map[string]interface{}{
		"accepted":       summary.Accepted,
		"lines":          summary.Lines,
		"drops":          summary.Drops,
		"synthetic_done": summary.SyntheticDone,
		"duration_ms":    summary.Duration.Milliseconds(),
	})
	return summary, nil
}

// handle processes one complete line. Only a failure to deliver to the
// caller is returned; protocol anomalies are counted and skipped.
func (p *producer) handle(line []byte) error {
	p.lines++
	ev, reason := p.validator.Check(line)
	if reason != "" {
		p.drop(reason, line)
		return nil
	}

	switch ev.Type {
	case EventSuggestion:
		if !p.session.AcceptSuggestion() {
			return nil
		}
		p.r.metrics.Accepted()
		return p.emit(ev)

	case EventDone:
		if !p.session.CanAcceptDone() {
			p.session.AcceptDone()
			return nil
		}
		return p.finish()

	case EventToolCall:
		if p.session.IsDone() {
			p.session.Drop(DropAfterDone)
			return nil
		}
		if p.req.Tools == nil {
			p.drop(DropUnknownEventType, line)
			return nil
		}
		if err := p.req.Tools(p.ctx, *ev.ToolCall); err != nil {
			p.r.logger.Warn("PROTOCOL", "Tool call failed", map[string]interface{}{
				"tool":  ev.ToolCall.Name,
				"error": err.Error(),
			})
			p.session.Drop(DropToolCallFailed)
		}
		return p.ctx.Err()
	}
	return nil
}

// finish emits the optional debug line followed by done.
func (p *producer) finish() error {
	if p.req.Debug {
		summary := p.session.Summary()
		summary.Lines = p.lines
		if err := p.emit(Event{Type: EventDebug, Debug: &summary}); err != nil {
			return err
		}
	}
	if p.session.CanAcceptDone() {
		p.session.AcceptDone()
	}
	return p.emit(Event{Type: EventDone})
}

func (p *producer) drop(reason DropReason, line []byte) {
	p.session.Drop(reason)
	p.r.logger.Debug("PROTOCOL", "Dropped line", map[string]interface{}{
		"reason": reason,
		"line":   truncateLine(line),
	})
}

func (p *producer) emit(ev Event) error {
	select {
	case p.out <- ev:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func truncateLine(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
