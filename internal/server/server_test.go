package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/internal/usage"
	"github.com/puku-sh/gateway/pkg/api"
)

// stubProvider answers canned responses and records the model id it was
// asked for, so tests can observe upstream-id substitution.
type stubProvider struct {
	id        string
	lastModel string
	streamErr error
}

func (s *stubProvider) Name() string { return s.id }
func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	s.lastModel = req.Model
	return &api.ChatResponse{
		ID:     "resp-1",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []api.Choice{{
			Message:      &api.ChatMessage{Role: "assistant", Content: api.TextContent("stub reply")},
			FinishReason: "stop",
		}},
		Usage: &api.Usage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4},
	}, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	s.lastModel = req.Model
	out := make(chan api.StreamResult)
	go func() {
		defer close(out)
		chunks := []string{"streamed ", "reply"}
		for _, text := range chunks {
			out <- api.StreamResult{Response: &api.ChatResponse{
				ID:      "resp-2",
				Object:  "chat.completion.chunk",
				Model:   req.Model,
				Choices: []api.Choice{{Delta: &api.ChatMessage{Content: api.TextContent(text)}}},
			}}
		}
		if s.streamErr != nil {
			out <- api.StreamResult{Err: s.streamErr}
			return
		}
		out <- api.StreamResult{Response: &api.ChatResponse{
			ID:      "resp-2",
			Object:  "chat.completion.chunk",
			Model:   req.Model,
			Choices: []api.Choice{{FinishReason: "stop"}},
		}}
	}()
	return out, nil
}

func (s *stubProvider) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	s.lastModel = req.Model
	return &api.CompletionResponse{
		ID:      "cmpl-1",
		Object:  "text_completion",
		Model:   req.Model,
		Choices: []api.CompletionChoice{{Text: "return a + b"}},
	}, nil
}

func (s *stubProvider) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	out := make(chan api.CompletionStreamResult)
	close(out)
	return out, nil
}

func (s *stubProvider) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	s.lastModel = req.Model
	return &api.EmbeddingsResponse{
		Object: "list",
		Model:  req.Model,
		Data:   []api.Embedding{{Object: "embedding", Embedding: []float64{0.1, 0.2}}},
	}, nil
}

func (s *stubProvider) Health(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test"},
		Auth: config.AuthConfig{
			Enforce:                true,
			TrustFirstToken:        false,
			SessionTokenTTLMinutes: 30,
		},
		Puku: config.PukuConfig{
			FIMModel:        "puku-fim",
			EmbeddingsModel: "puku-embed",
		},
		Models: []api.ModelDescriptor{
			{
				ID: "puku-chat", DisplayName: "Puku Chat", ProviderID: "stub",
				UpstreamID:   "vendor-chat",
				Capabilities: api.Capabilities{Chat: true, Tools: true, ContextLength: 128000},
				Family:       "puku", ParameterSize: "70B", Quantization: "Q4_K_M",
			},
			{
				ID: "puku-fim", DisplayName: "Puku FIM", ProviderID: "stub",
				UpstreamID:   "vendor-fim",
				Capabilities: api.Capabilities{FIM: true},
			},
			{
				ID: "puku-embed", DisplayName: "Puku Embed", ProviderID: "stub",
				UpstreamID:   "vendor-embed",
				Capabilities: api.Capabilities{Embeddings: true},
			},
		},
	}
}

type fixture struct {
	ts       *httptest.Server
	provider *stubProvider
	tokens   *token.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	log := zap.NewNop()

	tokens := token.NewStore(token.Options{
		DefaultToken:    cfg.Auth.DefaultToken,
		TrustFirstToken: cfg.Auth.TrustFirstToken,
	}, log)

	provider := &stubProvider{id: "stub"}
	service := gateway.NewService(log, usage.NopRecorder{}, cfg.Models)
	service.RegisterProvider(provider)

	quotas := usage.NewService(nil, usage.Entitlements{})

	ts := httptest.NewServer(New(cfg, log, service, tokens, quotas).Handler())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, provider: provider, tokens: tokens}
}

func (f *fixture) request(t *testing.T, method, path, body, bearer string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) *api.Error {
	t.Helper()
	var envelope api.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func TestChatCompletionRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"puku-chat","messages":[{"role":"user","content":"hello"}]}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "puku-chat", body.Model)
	assert.Equal(t, "stub reply", body.Choices[0].Message.Content.Text)

	// The provider saw the upstream id, not the public one.
	assert.Equal(t, "vendor-chat", f.provider.lastModel)
}

func TestChatCompletionStreaming(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"puku-chat","stream":true,"messages":[{"role":"user","content":"hello"}]}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}

	require.GreaterOrEqual(t, len(events), 4)
	assert.Equal(t, "[DONE]", events[len(events)-1])

	var text string
	for _, ev := range events[:len(events)-1] {
		var chunk api.ChatResponse
		require.NoError(t, json.Unmarshal([]byte(ev), &chunk))
		assert.Equal(t, "puku-chat", chunk.Model)
		if delta := chunk.Choices[0].Delta; delta != nil {
			text += delta.Content.Text
		}
	}
	assert.Equal(t, "streamed reply", text)
}

func TestChatStreamAbnormalEndOmitsDone(t *testing.T) {
	f := newFixture(t)
	f.provider.streamErr = api.TransportError("upstream closed connection", nil)

	resp := f.request(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"puku-chat","stream":true,"messages":[{"role":"user","content":"hello"}]}`, "")
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	// Flushed chunks stand, the failure is reported in-band, and the
	// normal-termination sentinel is absent.
	assert.Contains(t, body, "streamed ")
	assert.Contains(t, body, "transport_error")
	assert.NotContains(t, body, "[DONE]")
}

func TestUnknownModelIsNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"no-such-model","messages":[{"role":"user","content":"hello"}]}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	apiErr := decodeError(t, resp)
	assert.Equal(t, api.TypeNotFound, apiErr.Type)
	assert.Contains(t, apiErr.Message, "no-such-model")
}

func TestValidationErrorShape(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/chat/completions",
		`{"model":"puku-chat","messages":[]}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decodeError(t, resp)
	assert.Equal(t, api.TypeValidation, apiErr.Type)
}

func TestFIMCompletionDefaultsModel(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/completions",
		`{"prompt":"func add(a, b int) int {","suffix":"}"}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.CompletionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "puku-fim", body.Model)
	assert.Equal(t, "return a + b", body.Choices[0].Text)
	assert.Equal(t, "vendor-fim", f.provider.lastModel)
}

func TestMalformedAuthHeaderRejectedOnOptionalRoute(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/v1/chat/completions",
		strings.NewReader(`{"model":"puku-chat","messages":[{"role":"user","content":"hello"}]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, api.TypeAuthentication, decodeError(t, resp).Type)
}

func TestTokenLifecycle(t *testing.T) {
	f := newFixture(t)

	// Issue
	resp := f.request(t, http.MethodPost, "/api/tokens/issue", `{"owner":"amy"}`, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var issued api.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(issued.Token, "pk-"))

	// Validate with the issued token
	resp = f.request(t, http.MethodGet, "/api/tokens/validate", "", issued.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var validated api.ValidateTokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&validated))
	resp.Body.Close()
	assert.True(t, validated.Valid)
	assert.Equal(t, "amy", validated.Owner)

	// List requires auth
	resp = f.request(t, http.MethodGet, "/api/tokens", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/api/tokens", "", issued.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list api.TokenListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, 1, list.Count)

	// Revoke, then the token no longer authenticates
	resp = f.request(t, http.MethodDelete, "/api/tokens/"+issued.Token, "", issued.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/api/tokens/validate", "", issued.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestTagsListingIsIdempotent(t *testing.T) {
	f := newFixture(t)

	read := func() string {
		resp := f.request(t, http.MethodGet, "/api/tags", "", "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(raw)
	}

	first := read()
	second := read()
	assert.Equal(t, first, second)

	var tags api.LocalTagsResponse
	require.NoError(t, json.Unmarshal([]byte(first), &tags))
	require.Len(t, tags.Models, 3)
	for _, m := range tags.Models {
		assert.NotEmpty(t, m.Digest)
		assert.Positive(t, m.Size)
		assert.Equal(t, "gguf", m.Details.Format)
	}
}

func TestShowKnownAndUnknownModel(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/api/show", `{"name":"puku-chat"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var show api.LocalShowResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&show))
	resp.Body.Close()
	assert.Equal(t, "70B", show.Details.ParameterSize)
	assert.Contains(t, show.Capabilities, "completion")
	assert.Contains(t, show.Capabilities, "tools")

	resp = f.request(t, http.MethodPost, "/api/show", `{"model":"ghost"}`, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPullCompletesSynthetically(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/api/pull", `{"name":"puku-chat"}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []api.LocalPullStatus
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var s api.LocalPullStatus
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		statuses = append(statuses, s)
	}

	require.NotEmpty(t, statuses)
	assert.Equal(t, "success", statuses[len(statuses)-1].Status)
}

func TestPullSucceedsForUnknownModel(t *testing.T) {
	f := newFixture(t)

	// Unlike /api/show, pulling never 404s: there is no download to fail.
	resp := f.request(t, http.MethodPost, "/api/pull",
		`{"name":"totally-unknown-model","stream":false}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s api.LocalPullStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "success", s.Status)
}

func TestVersionRoute(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/api/version", "", "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v api.LocalVersionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.NotEmpty(t, v.Version)
}

func TestProductModelsListsChatCapableOnly(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/puku/v1/models", "", "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list api.ModelList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "puku-chat", list.Data[0].ID)
}

func TestProductEmbeddingsUsesFixedModel(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/puku/v1/embeddings",
		`{"model":"attacker-chosen","input":"some text"}`, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.EmbeddingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "puku-embed", body.Model)

	// The caller-supplied model id was discarded before dispatch.
	assert.Equal(t, "vendor-embed", f.provider.lastModel)
}

func TestSessionTokenMintAndUse(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/puku/v1/token", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session api.SessionTokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	resp.Body.Close()

	assert.Equal(t, "bearer", session.TokenType)
	assert.True(t, strings.HasPrefix(session.Token, "pk-"))
	assert.False(t, session.ExpiresAt.IsZero())

	// The minted token authenticates on a required-auth route.
	resp = f.request(t, http.MethodGet, "/puku/v1/usage", "", session.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report api.UsageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()

	require.Contains(t, report.QuotaSnapshots, "chat")
	assert.True(t, report.QuotaSnapshots["chat"].Unlimited)
	assert.NotEmpty(t, report.QuotaResetDateUTC)
}

func TestStatusRoute(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/puku/v1/status", "", "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status api.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.Providers)
	assert.Equal(t, "enforced", status.Auth)
}

func TestUsageRequiresAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/puku/v1/usage", "", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
