package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/httpclient"
	"github.com/puku-sh/gateway/internal/llm"
	"github.com/puku-sh/gateway/internal/platform/logger"
	"github.com/puku-sh/gateway/pkg/api"
	"go.uber.org/zap"
)

func init() {
	llm.Register(string(llm.Anthropic), NewAdapter)
}

const defaultVersion = "2023-06-01"

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string { return a.config.ID }
func (a *Adapter) Type() string { return string(llm.Anthropic) }

// Wire shapes for the Anthropic messages API.

type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []content
}

type request struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	Tools         []tool   `json:"tools,omitempty"`
}

type tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type content struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`          // tool_use
	Name      string          `json:"name,omitempty"`        // tool_use
	Input     json.RawMessage `json:"input,omitempty"`       // tool_use
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Result    string          `json:"content,omitempty"`     // tool_result
}

type response struct {
	ID         string    `json:"id"`
	Content    []content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
	Usage      usage     `json:"usage"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Type         string   `json:"type"`
	Index        int      `json:"index,omitempty"`
	Delta        *delta   `json:"delta,omitempty"`
	ContentBlock *content `json:"content_block,omitempty"`
	Message      *struct {
		ID    string `json:"id"`
		Usage usage  `json:"usage"`
	} `json:"message,omitempty"`
	Usage *usage `json:"usage,omitempty"`
}

type delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// toUpstream converts a canonical request. System messages fold into the
// dedicated system field; the rest become alternating user/assistant
// messages.
func toUpstream(req *api.ChatRequest) request {
	ar := request{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = 4096
	}
	if req.Stop != nil {
		ar.StopSequences = req.Stop.Val
	}
	for _, t := range req.Tools {
		ar.Tools = append(ar.Tools, tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}

	for _, m := range req.Messages {
		if m.Role == "system" {
			if ar.System != "" {
				ar.System += "\n"
			}
			ar.System += m.Content.Text
			continue
		}

		// Tool results come back as user messages carrying a tool_result
		// block keyed on the originating call id.
		if m.Role == "tool" {
			ar.Messages = append(ar.Messages, message{Role: "user", Content: []content{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Result:    textOf(m.Content),
			}}})
			continue
		}

		var parts []content
		if m.Content.Text != "" && len(m.Content.Parts) == 0 {
			parts = append(parts, content{Type: "text", Text: m.Content.Text})
		}
		for _, p := range m.Content.Parts {
			if p.Type == "text" {
				parts = append(parts, content{Type: "text", Text: p.Text})
			}
		}
		for _, tc := range m.ToolCalls {
			input := json.RawMessage(tc.Function.Arguments)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			parts = append(parts, content{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: input,
			})
		}
		if len(parts) > 0 {
			ar.Messages = append(ar.Messages, message{Role: m.Role, Content: parts})
		}
	}
	return ar
}

func textOf(c api.Content) string {
	if c.Text != "" {
		return c.Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

func (a *Adapter) mapError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		return api.UpstreamError(upstreamErr.StatusCode, string(upstreamErr.Body), err)
	}
	var emptyErr *httpclient.EmptyBodyError
	if errors.As(err, &emptyErr) {
		return api.TransportError(emptyErr.Error(), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return api.TransportError("upstream request failed", err)
}

func (a *Adapter) headers() map[string]string {
	h := map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": defaultVersion,
	}
	if v, ok := a.config.Config["version"]; ok {
		h["anthropic-version"] = v
	}
	return h
}

func (a *Adapter) url(path string) string {
	return strings.TrimRight(a.config.BaseURL, "/") + path
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	ar := toUpstream(req)
	ar.Stream = false

	var resp response
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.url("/messages"), a.headers(), ar, &resp); err != nil {
		return nil, a.mapError(err)
	}

	msg := &api.ChatMessage{Role: "assistant"}
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			msg.Content.Text += c.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID:   c.ID,
				Type: "function",
				Function: api.FunctionCall{
					Name:      c.Name,
					Arguments: string(c.Input),
				},
			})
		}
	}

	return &api.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []api.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: &api.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	ar := toUpstream(req)
	ar.Stream = true

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		var (
			msgID       string
			promptToks  int
			toolIndex   = -1
			currentTool string
		)

		emit := func(chunk *api.ChatResponse) error {
			select {
			case ch <- api.StreamResult{Response: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := httpclient.StreamRequest(ctx, a.client, "POST", a.url("/messages"), a.headers(), ar, func(line string) error {
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				// "event:" framing lines carry no payload
				return nil
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				logger.Warn("skipping malformed stream event",
					zap.String("provider", a.config.ID), zap.Error(err))
				return nil
			}

			chunk := &api.ChatResponse{
				ID:      msgID,
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   req.Model,
			}

			switch ev.Type {
			case "message_start":
				if ev.Message != nil {
					msgID = ev.Message.ID
					promptToks = ev.Message.Usage.InputTokens
				}
				return nil
			case "content_block_start":
				if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
					toolIndex++
					currentTool = ev.ContentBlock.Name
					idx := toolIndex
					chunk.Choices = []api.Choice{{Delta: &api.ChatMessage{
						Role: "assistant",
						ToolCalls: []api.ToolCall{{
							ID:       ev.ContentBlock.ID,
							Index:    &idx,
							Type:     "function",
							Function: api.FunctionCall{Name: currentTool},
						}},
					}}}
					return emit(chunk)
				}
				return nil
			case "content_block_delta":
				if ev.Delta == nil {
					return nil
				}
				switch ev.Delta.Type {
				case "text_delta":
					chunk.Choices = []api.Choice{{Delta: &api.ChatMessage{
						Role:    "assistant",
						Content: api.Content{Text: ev.Delta.Text},
					}}}
				case "input_json_delta":
					idx := toolIndex
					chunk.Choices = []api.Choice{{Delta: &api.ChatMessage{
						ToolCalls: []api.ToolCall{{
							Index:    &idx,
							Function: api.FunctionCall{Arguments: ev.Delta.PartialJSON},
						}},
					}}}
				default:
					return nil
				}
				return emit(chunk)
			case "message_delta":
				finish := ""
				if ev.Delta != nil {
					finish = mapStopReason(ev.Delta.StopReason)
				}
				chunk.Choices = []api.Choice{{Delta: &api.ChatMessage{}, FinishReason: finish}}
				if ev.Usage != nil {
					chunk.Usage = &api.Usage{
						PromptTokens:     promptToks,
						CompletionTokens: ev.Usage.OutputTokens,
						TotalTokens:      promptToks + ev.Usage.OutputTokens,
					}
				}
				return emit(chunk)
			case "message_stop":
				return httpclient.ErrStopStream
			default:
				// ping and future event types
				return nil
			}
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			ch <- api.StreamResult{Err: a.mapError(err)}
		}
	}()

	return ch, nil
}

func (a *Adapter) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	return nil, fmt.Errorf("anthropic: fill-in-middle: %w", llm.ErrUnsupported)
}

func (a *Adapter) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	return nil, fmt.Errorf("anthropic: fill-in-middle: %w", llm.ErrUnsupported)
}

func (a *Adapter) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	return nil, fmt.Errorf("anthropic: embeddings: %w", llm.ErrUnsupported)
}

func (a *Adapter) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.url("/models"), nil)
	if err != nil {
		return err
	}
	for k, v := range a.headers() {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
