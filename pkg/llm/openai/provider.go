package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	"devotion-guide-be/pkg/llm"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Provider talks to any OpenAI compatible chat-completions endpoint.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.StreamingProvider = &Provider{}

func NewProvider(apiKey, baseURL, model string) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &Provider{client: oai.NewClient(opts...), model: model}
}

func (p *Provider) params(history []llm.Message, opts []llm.Option) oai.ChatCompletionNewParams {
	options := llm.ApplyOptions(llm.Options{Model: p.model, Temperature: 0.7}, opts...)

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "system":
			messages = append(messages, oai.SystemMessage(msg.Content))
		case "assistant", "model":
			messages = append(messages, oai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, oai.UserMessage(msg.Content))
		}
	}

	params := oai.ChatCompletionNewParams{
		Model:       options.Model,
		Messages:    messages,
		Temperature: oai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(options.MaxTokens))
	}
	return params
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(history, opts))
	if err != nil {
		return "", upstream(err)
	}
	if len(resp.Choices) == 0 {
		return "", &llm.UpstreamError{Provider: "openai", Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// Stream opens a streaming completion. The first event is read eagerly so a
// rejected request fails here instead of on the first Next.
func (p *Provider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.ChunkStream, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(history, opts))

	s := &chunkStream{stream: stream}
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, upstream(err)
		}
		s.exhausted = true
		return s, nil
	}
	s.pending = delta(stream.Current())
	return s, nil
}

type chunkStream struct {
	stream    *ssestream.Stream[oai.ChatCompletionChunk]
	pending   []byte
	exhausted bool
}

func (s *chunkStream) Next() ([]byte, error) {
	if s.pending != nil {
		chunk := s.pending
		s.pending = nil
		if len(chunk) > 0 {
			return chunk, nil
		}
	}
	if s.exhausted {
		return nil, io.EOF
	}

	for s.stream.Next() {
		if chunk := delta(s.stream.Current()); len(chunk) > 0 {
			return chunk, nil
		}
	}
	s.exhausted = true
	if err := s.stream.Err(); err != nil {
		return nil, upstream(err)
	}
	return nil, io.EOF
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

func delta(chunk oai.ChatCompletionChunk) []byte {
	if len(chunk.Choices) == 0 {
		return []byte{}
	}
	return []byte(chunk.Choices[0].Delta.Content)
}

func upstream(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: apiErr.Message, Err: err}
	}
	return &llm.UpstreamError{Provider: "openai", Err: err}
}
