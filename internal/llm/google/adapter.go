package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/httpclient"
	"github.com/puku-sh/gateway/internal/llm"
	"github.com/puku-sh/gateway/internal/platform/logger"
	"github.com/puku-sh/gateway/pkg/api"
)

func init() {
	llm.Register(string(llm.Google), NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Adapter{
		config: config,
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string { return a.config.ID }
func (a *Adapter) Type() string { return string(llm.Google) }

// Wire shapes for the Gemini generateContent API.

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (a *Adapter) mapError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		msg := string(upstreamErr.Body)
		var parsed geminiErrorResponse
		if jsonErr := json.Unmarshal(upstreamErr.Body, &parsed); jsonErr == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return api.UpstreamError(upstreamErr.StatusCode, msg, err)
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

func (a *Adapter) url(format string, args ...interface{}) string {
	base := strings.TrimRight(a.config.BaseURL, "/")
	return base + fmt.Sprintf(format, args...)
}

// headers carries the API key. Header auth keeps the key out of URLs,
// which end up in error strings and logs.
func (a *Adapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.config.APIKey}
}

func contentText(c api.Content) string {
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

// toUpstream translates the canonical request. Gemini carries system
// messages out of band and names the assistant role "model".
func toUpstream(req *api.ChatRequest) geminiRequest {
	out := geminiRequest{}

	for _, m := range req.Messages {
		text := contentText(m.Content)
		switch m.Role {
		case "system":
			if out.SystemInstruction == nil {
				out.SystemInstruction = &geminiContent{}
			}
			out.SystemInstruction.Parts = append(out.SystemInstruction.Parts, geminiPart{Text: text})
		case "assistant":
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}})
		default:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}})
		}
	}

	if req.Temperature != nil || req.TopP != 0 || req.MaxTokens != 0 || req.Stop != nil {
		gc := &geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
		}
		if req.Stop != nil {
			gc.StopSequences = req.Stop.Val
		}
		out.GenerationConfig = gc
	}

	return out
}

func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "":
		return ""
	default:
		return "stop"
	}
}

func mapUsage(u *geminiUsage) *api.Usage {
	if u == nil {
		return nil
	}
	return &api.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	shape := toUpstream(req)
	url := a.url("/models/%s:generateContent", req.Model)

	var gResp geminiResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(), shape, &gResp); err != nil {
		return nil, a.mapError(err)
	}

	if len(gResp.Candidates) == 0 {
		return nil, api.TransportError("empty candidate list from upstream", nil)
	}

	var text strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &api.ChatResponse{
		ID:      fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []api.Choice{{
			Index: 0,
			Message: &api.ChatMessage{
				Role:    "assistant",
				Content: api.TextContent(text.String()),
			},
			FinishReason: mapFinishReason(gResp.Candidates[0].FinishReason),
		}},
		Usage: mapUsage(gResp.UsageMetadata),
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	shape := toUpstream(req)
	url := a.url("/models/%s:streamGenerateContent?alt=sse", req.Model)
	id := fmt.Sprintf("gemini-%d", time.Now().UnixNano())

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", url, a.headers(), shape, func(line string) error {
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				return nil
			}

			var gResp geminiResponse
			if err := json.Unmarshal([]byte(data), &gResp); err != nil {
				logger.Warn("skipping malformed stream chunk",
					zap.String("provider", a.config.ID), zap.Error(err))
				return nil
			}
			if len(gResp.Candidates) == 0 {
				return nil
			}

			var text strings.Builder
			for _, p := range gResp.Candidates[0].Content.Parts {
				text.WriteString(p.Text)
			}

			chunk := &api.ChatResponse{
				ID:     id,
				Object: "chat.completion.chunk",
				Model:  req.Model,
				Choices: []api.Choice{{
					Delta:        &api.ChatMessage{Content: api.TextContent(text.String())},
					FinishReason: mapFinishReason(gResp.Candidates[0].FinishReason),
				}},
				Usage: mapUsage(gResp.UsageMetadata),
			}

			select {
			case ch <- api.StreamResult{Response: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			ch <- api.StreamResult{Err: a.mapError(err)}
		}
	}()

	return ch, nil
}

func (a *Adapter) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	return nil, fmt.Errorf("gemini fill-in-middle: %w", llm.ErrUnsupported)
}

func (a *Adapter) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	return nil, fmt.Errorf("gemini fill-in-middle: %w", llm.ErrUnsupported)
}

// Embeddings use the batchEmbedContents endpoint.

type geminiEmbedRequest struct {
	Requests []geminiEmbedEntry `json:"requests"`
}

type geminiEmbedEntry struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

func (a *Adapter) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	shape := geminiEmbedRequest{}
	for _, input := range req.Input.Val {
		shape.Requests = append(shape.Requests, geminiEmbedEntry{
			Model:   "models/" + req.Model,
			Content: geminiContent{Parts: []geminiPart{{Text: input}}},
		})
	}

	url := a.url("/models/%s:batchEmbedContents", req.Model)

	var gResp geminiEmbedResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(), shape, &gResp); err != nil {
		return nil, a.mapError(err)
	}

	resp := &api.EmbeddingsResponse{Object: "list", Model: req.Model}
	for i, e := range gResp.Embeddings {
		resp.Data = append(resp.Data, api.Embedding{
			Object:    "embedding",
			Index:     i,
			Embedding: e.Values,
		})
	}
	return resp, nil
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
