package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/compress"
	"devotion-guide-be/pkg/guide/conversation"
	"devotion-guide-be/pkg/guide/fetcher"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/prompt"
	"devotion-guide-be/pkg/guide/protocol"
	"devotion-guide-be/pkg/llm"

	"github.com/google/uuid"
)

var (
	ErrMissingUser       = errors.New("target user is required")
	ErrInvalidEntrypoint = errors.New("entrypoint must be home or chat")
	ErrEmptyChatMessage  = errors.New("chat entrypoint needs a message")
)

type StagesConfig struct {
	Fetchers      []fetcher.Fetcher
	Compressor    *compress.Compressor
	Conversations *conversation.Manager
	Profiles      contract.UserProfileRepository
	Runner        *protocol.Runner
	Logger        logger.ILogger
	Metrics       *metrics.Collector
	FetchLimit    int
	DefaultRange  plan.TimeRange
	ModelOptions  []llm.Option
}

// Stages is the production Executor.
type Stages struct {
	fetchers      []fetcher.Fetcher
	compressor    *compress.Compressor
	conversations *conversation.Manager
	profiles      contract.UserProfileRepository
	runner        *protocol.Runner
	logger        logger.ILogger
	metrics       *metrics.Collector
	fetchLimit    int
	defaultRange  plan.TimeRange
	modelOptions  []llm.Option
	now           func() time.Time
}

func NewStages(cfg StagesConfig) *Stages {
	if cfg.Compressor == nil {
		cfg.Compressor = compress.NewCompressor(0, 0)
	}
	return &Stages{
		fetchers:      cfg.Fetchers,
		compressor:    cfg.Compressor,
		conversations: cfg.Conversations,
		profiles:      cfg.Profiles,
		runner:        cfg.Runner,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		fetchLimit:    cfg.FetchLimit,
		defaultRange:  cfg.DefaultRange,
		modelOptions:  cfg.ModelOptions,
		now:           time.Now,
	}
}

func (s *Stages) Ingress(_ context.Context, params RunParams) (*IngressArtifact, error) {
	if params.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}
	if !params.Entrypoint.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntrypoint, params.Entrypoint)
	}
	if params.Entrypoint == plan.EntrypointChat && strings.TrimSpace(params.Message) == "" {
		return nil, ErrEmptyChatMessage
	}

	p := plan.Derive(params.Message, params.Entrypoint, s.defaultRange)
	return &IngressArtifact{Plan: p, Query: p.Query, Now: s.now().UTC()}, nil
}

func (s *Stages) ContextCandidates(ctx context.Context, params RunParams, ingress *IngressArtifact) (*CandidatesArtifact, error) {
	q := fetcher.Query{
		UserID:                params.UserID,
		Range:                 ingress.Plan.Range,
		Limit:                 s.fetchLimit,
		Plan:                  ingress.RetrievalPlan(),
		Now:                   ingress.Now,
		ExcludeConversationID: params.ConversationID,
	}
	raw := fetcher.FetchAll(ctx, s.fetchers, q, s.logger, s.metrics)
	deduped := candidate.Dedupe(raw)
	bySource := candidate.GroupBySource(deduped)

	s.logger.Debug("PIPELINE", "Candidates gathered", map[string]interface{}{
		"user_id":   params.UserID.String(),
		"fetched":   len(raw),
		"deduped":   len(deduped),
		"by_source": bySource,
	})
	return &CandidatesArtifact{Candidates: deduped, Fetched: len(raw), BySource: bySource}, nil
}

func (s *Stages) PromptAssembly(ctx context.Context, params RunParams, ingress *IngressArtifact, cands *CandidatesArtifact) (*PromptArtifact, error) {
	payload, err := s.compressor.Compress(cands.Candidates, ingress.Plan, params.EnabledActions)
	if err != nil {
		return nil, err
	}

	summary, recent, err := s.conversationContext(ctx, params)
	if err != nil {
		return nil, err
	}

	built, err := prompt.Build(prompt.Input{
		Entrypoint: params.Entrypoint,
		Message:    params.Message,
		Payload:    payload,
		Profile:    s.profile(ctx, params.UserID),
		Summary:    summary,
		Recent:     recent,
	})
	if err != nil {
		return nil, err
	}
	body, err := payload.JSON()
	if err != nil {
		return nil, err
	}

	return &PromptArtifact{
		Prompt:             built,
		Payload:            body,
		AllowedEvidenceIDs: payload.AllowedEvidenceIDs,
		AllowedActionTypes: payload.AllowedActionTypes,
		Chars:              payload.Chars,
		EstimatedTokens:    payload.EstimatedTokens,
		Elided:             payload.Elided,
	}, nil
}

// conversationContext returns the stored summary and window. Explicit
// history in params replaces the stored window, which is how debug runs
// impersonate a conversation.
func (s *Stages) conversationContext(ctx context.Context, params RunParams) (string, []entity.ConversationMessage, error) {
	var summary string
	var recent []entity.ConversationMessage

	if params.ConversationID != nil && s.conversations != nil {
		state, err := s.conversations.Load(ctx, *params.ConversationID, params.UserID)
		switch {
		case errors.Is(err, conversation.ErrNotFound):
		case err != nil:
			return "", nil, err
		default:
			summary = state.Summary
			recent = state.RecentMessages
		}
	}

	if len(params.History) > 0 {
		recent = params.History
		if s.conversations != nil {
			if window := s.conversations.WindowSize(); len(recent) > window {
				recent = recent[len(recent)-window:]
			}
		}
	}
	return summary, recent, nil
}

// profile is best effort: a missing or unreadable profile only drops the
// <profile> section.
func (s *Stages) profile(ctx context.Context, userID uuid.UUID) *prompt.Profile {
	if s.profiles == nil {
		return nil
	}
	p, err := s.profiles.FindByUserId(ctx, userID)
	if err != nil {
		s.logger.Warn("PIPELINE", "User profile unavailable", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return nil
	}
	return prompt.ProfileFromEntity(p)
}

// Request applies the configured model options to a prompt's request.
func (s *Stages) Request(p *PromptArtifact, debug bool) protocol.Request {
	req := p.Request(debug)
	req.Options = s.modelOptions
	return req
}

func (s *Stages) ModelCall(ctx context.Context, params RunParams, p *PromptArtifact) (*ModelCallArtifact, error) {
	if s.runner == nil {
		return nil, errors.New("no model runner configured")
	}
	stream, err := s.runner.Start(ctx, s.Request(p, params.Debug))
	if err != nil {
		return nil, err
	}

	out := &ModelCallArtifact{}
	var encodeErr error
	for ev := range stream.Events() {
		line, err := protocol.Encode(ev)
		if err != nil {
			encodeErr = err
			continue
		}
		out.Events = append(out.Events, json.RawMessage(bytes.TrimRight(line, "\n")))
	}
	summary, err := stream.Wait()
	if err != nil {
		return nil, err
	}
	if encodeErr != nil {
		return nil, fmt.Errorf("encode event: %w", encodeErr)
	}
	out.Summary = summary
	return out, nil
}

// Prepared is the in-memory result of the first three stages.
type Prepared struct {
	Ingress    *IngressArtifact
	Candidates *CandidatesArtifact
	Prompt     *PromptArtifact
}

// Prepare runs INGRESS through PROMPT_ASSEMBLY without persisting anything.
// Production traffic uses it and then streams the prompt itself.
func (s *Stages) Prepare(ctx context.Context, params RunParams) (*Prepared, error) {
	ingress, err := s.Ingress(ctx, params)
	if err != nil {
		return nil, err
	}
	cands, err := s.ContextCandidates(ctx, params, ingress)
	if err != nil {
		return nil, err
	}
	p, err := s.PromptAssembly(ctx, params, ingress, cands)
	if err != nil {
		return nil, err
	}
	return &Prepared{Ingress: ingress, Candidates: cands, Prompt: p}, nil
}
