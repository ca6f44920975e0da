package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/httpclient"
	"github.com/puku-sh/gateway/internal/llm"
	"github.com/puku-sh/gateway/internal/llm/openai"
	"github.com/puku-sh/gateway/pkg/api"
)

func init() {
	llm.Register(string(llm.Ollama), NewAdapter)
}

// Adapter fronts an upstream Ollama instance. Chat and fill-in-middle go
// through Ollama's OpenAI-compatible /v1 surface, so the OpenAI adapter is
// embedded for those; embeddings use the native /api/embed route, which
// supports batching.
type Adapter struct {
	llm.Provider
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	rootURL := strings.TrimSuffix(strings.TrimRight(config.BaseURL, "/"), "/v1")

	oaiCfg := config
	oaiCfg.BaseURL = rootURL + "/v1"
	oaAdapter, err := openai.NewAdapter(oaiCfg)
	if err != nil {
		return nil, err
	}

	config.BaseURL = rootURL
	return &Adapter{
		Provider: oaAdapter,
		config:   config,
		client:   &http.Client{},
	}, nil
}

func (a *Adapter) Name() string { return a.config.ID }
func (a *Adapter) Type() string { return string(llm.Ollama) }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

func (a *Adapter) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	body := embedRequest{Model: req.Model, Input: req.Input.Val}

	var resp embedResponse
	url := fmt.Sprintf("%s/api/embed", a.config.BaseURL)
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, nil, body, &resp); err != nil {
		var upstreamErr *httpclient.UpstreamError
		if errors.As(err, &upstreamErr) {
			return nil, api.UpstreamError(upstreamErr.StatusCode, string(upstreamErr.Body), err)
		}
		return nil, api.TransportError("upstream request failed", err)
	}

	out := &api.EmbeddingsResponse{
		Object: "list",
		Model:  req.Model,
		Usage:  &api.Usage{PromptTokens: resp.PromptEvalCount, TotalTokens: resp.PromptEvalCount},
	}
	for i, vec := range resp.Embeddings {
		out.Data = append(out.Data, api.Embedding{Object: "embedding", Index: i, Embedding: vec})
	}
	return out, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.config.BaseURL+"/api/version", nil)
	if err != nil {
		return err
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
