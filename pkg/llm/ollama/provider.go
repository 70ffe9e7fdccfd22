package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"devotion-guide-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements StreamingProvider
var _ llm.StreamingProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		// No client timeout: streams stay open as long as the model writes.
		// Deadlines come from the request context.
		Client: &http.Client{},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (o *OllamaProvider) newRequest(ctx context.Context, history []llm.Message, stream bool, opts []llm.Option) (*http.Request, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and returns the response once the status is known to be 200.
func (o *OllamaProvider) do(req *http.Request) (*http.Response, error) {
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: "ollama", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &llm.UpstreamError{Provider: "ollama", StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &llm.UpstreamError{Provider: "ollama", Err: errors.New("empty response body")}
	}
	return resp, nil
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	req, err := o.newRequest(ctx, history, false, opts)
	if err != nil {
		return "", err
	}

	resp, err := o.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", &llm.UpstreamError{Provider: "ollama", Err: errors.New(ollamaResp.Error)}
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// Reuse Chat for simplicity as most new LLMs are chat-optimized
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// Stream opens a streaming chat. Ollama answers with one JSON object per line,
// each carrying the next piece of the message content.
func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.ChunkStream, error) {
	req, err := o.newRequest(ctx, history, true, opts)
	if err != nil {
		return nil, err
	}

	resp, err := o.do(req)
	if err != nil {
		return nil, err
	}

	return &chunkStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type chunkStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

func (s *chunkStream) Next() ([]byte, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var frame ollamaChatResponse
			if jerr := json.Unmarshal(line, &frame); jerr != nil {
				return nil, &llm.UpstreamError{Provider: "ollama", Err: fmt.Errorf("malformed stream frame: %w", jerr)}
			}
			if frame.Error != "" {
				return nil, &llm.UpstreamError{Provider: "ollama", Err: errors.New(frame.Error)}
			}
			if frame.Done {
				s.done = true
			}
			if frame.Message.Content != "" {
				return []byte(frame.Message.Content), nil
			}
			continue
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				return nil, io.EOF
			}
			return nil, &llm.UpstreamError{Provider: "ollama", Err: err}
		}
	}
}

func (s *chunkStream) Close() error {
	return s.body.Close()
}
