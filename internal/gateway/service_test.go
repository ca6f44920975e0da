package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/usage"
	"github.com/puku-sh/gateway/pkg/api"
)

type fakeProvider struct {
	id        string
	lastModel string

	chatResp  *api.ChatResponse
	chunks    []*api.ChatResponse
	embedResp *api.EmbeddingsResponse
}

func (f *fakeProvider) Name() string { return f.id }
func (f *fakeProvider) Type() string { return "fake" }

func (f *fakeProvider) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	f.lastModel = req.Model
	if f.chatResp == nil {
		return nil, errors.New("no response configured")
	}
	return f.chatResp, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	f.lastModel = req.Model
	out := make(chan api.StreamResult)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			out <- api.StreamResult{Response: c}
		}
	}()
	return out, nil
}

func (f *fakeProvider) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	f.lastModel = req.Model
	return &api.CompletionResponse{Model: req.Model, Choices: []api.CompletionChoice{{Text: "done"}}}, nil
}

func (f *fakeProvider) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	out := make(chan api.CompletionStreamResult)
	close(out)
	return out, nil
}

func (f *fakeProvider) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	f.lastModel = req.Model
	if f.embedResp == nil {
		return nil, errors.New("no response configured")
	}
	return f.embedResp, nil
}

func (f *fakeProvider) Health(ctx context.Context) error { return nil }

type captureRecorder struct {
	mu      sync.Mutex
	records []*usage.Record
	done    chan struct{}
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{done: make(chan struct{}, 16)}
}

func (c *captureRecorder) Record(rec *usage.Record) {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *captureRecorder) last() *usage.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[len(c.records)-1]
}

func testDescriptors() []api.ModelDescriptor {
	return []api.ModelDescriptor{
		{
			ID:         "puku-chat",
			ProviderID: "upstream-a",
			UpstreamID: "vendor-chat-large",
			Capabilities: api.Capabilities{
				Chat: true, Tools: true, ContextLength: 128000,
			},
		},
		{
			ID:         "puku-embed",
			ProviderID: "upstream-a",
			UpstreamID: "vendor-embed",
			Capabilities: api.Capabilities{
				Embeddings: true,
			},
		},
	}
}

func TestResolveUnknownModel(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testDescriptors())

	_, err := svc.Resolve("no-such-model")
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.TypeNotFound, apiErr.Type)
}

func TestResolveIsDeterministic(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testDescriptors())

	for i := 0; i < 10; i++ {
		desc, err := svc.Resolve("puku-chat")
		require.NoError(t, err)
		assert.Equal(t, "upstream-a", desc.ProviderID)
		assert.Equal(t, "vendor-chat-large", desc.Upstream())
	}
}

func TestModelsStableOrder(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testDescriptors())

	first := svc.Models()
	second := svc.Models()
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "puku-chat", first[0].ID)
	assert.Equal(t, "puku-embed", first[1].ID)
}

func TestChatSwapsUpstreamIDAndRestoresPublicID(t *testing.T) {
	p := &fakeProvider{
		id: "upstream-a",
		chatResp: &api.ChatResponse{
			ID:    "resp-1",
			Model: "vendor-chat-large",
			Choices: []api.Choice{
				{Message: &api.ChatMessage{Role: "assistant", Content: api.TextContent("hi")}},
			},
			Usage: &api.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		},
	}
	rec := newCaptureRecorder()
	svc := NewService(zap.NewNop(), rec, testDescriptors())
	svc.RegisterProvider(p)

	resp, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "puku-chat",
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hello")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "vendor-chat-large", p.lastModel)
	assert.Equal(t, "puku-chat", resp.Model)

	<-rec.done
	last := rec.last()
	assert.Equal(t, usage.KindChat, last.Kind)
	assert.Equal(t, "puku-chat", last.ModelID)
	assert.Equal(t, 3, last.PromptTokens)
	assert.False(t, last.Streamed)
}

func TestChatCapabilityGate(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testDescriptors())
	svc.RegisterProvider(&fakeProvider{id: "upstream-a"})

	_, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "puku-embed",
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hello")}},
	})
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.TypeValidation, apiErr.Type)
}

func TestChatStreamPreservesOrderAndRewritesModel(t *testing.T) {
	p := &fakeProvider{
		id: "upstream-a",
		chunks: []*api.ChatResponse{
			{ID: "c", Model: "vendor-chat-large", Choices: []api.Choice{{Delta: &api.ChatMessage{Content: api.TextContent("a")}}}},
			{ID: "c", Model: "vendor-chat-large", Choices: []api.Choice{{Delta: &api.ChatMessage{Content: api.TextContent("b")}}}},
			{ID: "c", Model: "vendor-chat-large", Choices: []api.Choice{{FinishReason: "stop"}}, Usage: &api.Usage{PromptTokens: 2, CompletionTokens: 2}},
		},
	}
	rec := newCaptureRecorder()
	svc := NewService(zap.NewNop(), rec, testDescriptors())
	svc.RegisterProvider(p)

	stream, err := svc.ChatStream(context.Background(), &api.ChatRequest{
		Model:    "puku-chat",
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hello")}},
	})
	require.NoError(t, err)

	var got []*api.ChatResponse
	for result := range stream {
		require.NoError(t, result.Err)
		got = append(got, result.Response)
	}

	require.Len(t, got, 3)
	for _, chunk := range got {
		assert.Equal(t, "puku-chat", chunk.Model)
	}
	assert.Equal(t, "stop", got[2].Choices[0].FinishReason)

	<-rec.done
	last := rec.last()
	assert.True(t, last.Streamed)
	assert.Equal(t, 2, last.CompletionTokens)
}

func TestEmbedRoutesByCapability(t *testing.T) {
	p := &fakeProvider{
		id: "upstream-a",
		embedResp: &api.EmbeddingsResponse{
			Object: "list",
			Model:  "vendor-embed",
			Data:   []api.Embedding{{Object: "embedding", Embedding: []float64{0.1, 0.2}}},
		},
	}
	svc := NewService(zap.NewNop(), nil, testDescriptors())
	svc.RegisterProvider(p)

	resp, err := svc.Embed(context.Background(), &api.EmbeddingsRequest{
		Model: "puku-embed",
		Input: api.EmbeddingInput{Val: []string{"some text"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "vendor-embed", p.lastModel)
	assert.Equal(t, "puku-embed", resp.Model)
}

func TestInactiveProvider(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testDescriptors())

	_, err := svc.Chat(context.Background(), &api.ChatRequest{
		Model:    "puku-chat",
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hello")}},
	})
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.TypeInternal, apiErr.Type)
}
