package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/httpclient"
	"github.com/puku-sh/gateway/internal/llm"
	"github.com/puku-sh/gateway/internal/platform/logger"
	"github.com/puku-sh/gateway/pkg/api"
	"go.uber.org/zap"
)

func init() {
	llm.Register(string(llm.OpenAI), NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

// NewAdapter builds an adapter for any OpenAI-compatible upstream. The
// client carries no overall timeout: completion calls are bounded only by
// the caller's context.
func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{},
	}, nil
}

func (a *Adapter) Name() string { return a.config.ID }
func (a *Adapter) Type() string { return string(llm.OpenAI) }

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// mapError converts transport-layer failures into the caller-facing
// taxonomy, preserving upstream status and body text verbatim.
func (a *Adapter) mapError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		msg := string(upstreamErr.Body)
		var parsed upstreamErrorResponse
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

func (a *Adapter) headers() map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + a.config.APIKey,
	}
	if org, ok := a.config.Config["organization"]; ok {
		h["OpenAI-Organization"] = org
	}
	return h
}

func (a *Adapter) url(path string) string {
	return strings.TrimRight(a.config.BaseURL, "/") + path
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	out := *req
	out.Stream = false

	var resp api.ChatResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.url("/chat/completions"), a.headers(), &out, &resp); err != nil {
		return nil, a.mapError(err)
	}
	return &resp, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	out := *req
	out.Stream = true
	out.StreamOptions = &api.StreamOptions{IncludeUsage: true}

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", a.url("/chat/completions"), a.headers(), &out, func(line string) error {
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				// comment or other non-data SSE line
				return nil
			}
			if data == "[DONE]" {
				return httpclient.ErrStopStream
			}

			var chunk api.ChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// A malformed chunk must not abort the rest of the stream.
				logger.Warn("skipping malformed stream chunk",
					zap.String("provider", a.config.ID), zap.Error(err))
				return nil
			}

			select {
			case ch <- api.StreamResult{Response: &chunk}:
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
	out := *req
	out.Stream = false

	var resp api.CompletionResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.url("/completions"), a.headers(), &out, &resp); err != nil {
		return nil, a.mapError(err)
	}
	return &resp, nil
}

func (a *Adapter) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	out := *req
	out.Stream = true

	ch := make(chan api.CompletionStreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", a.url("/completions"), a.headers(), &out, func(line string) error {
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				return nil
			}
			if data == "[DONE]" {
				return httpclient.ErrStopStream
			}

			var chunk api.CompletionResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logger.Warn("skipping malformed completion chunk",
					zap.String("provider", a.config.ID), zap.Error(err))
				return nil
			}

			select {
			case ch <- api.CompletionStreamResult{Response: &chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			ch <- api.CompletionStreamResult{Err: a.mapError(err)}
		}
	}()

	return ch, nil
}

func (a *Adapter) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	var resp api.EmbeddingsResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", a.url("/embeddings"), a.headers(), req, &resp); err != nil {
		return nil, a.mapError(err)
	}
	return &resp, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.url("/models"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

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
