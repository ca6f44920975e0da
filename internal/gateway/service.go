package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/llm"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/internal/usage"
	"github.com/puku-sh/gateway/pkg/api"
)

// Service routes canonical requests to the provider that serves the
// requested model.
type Service interface {
	// RegisterProvider makes a provider available for dispatch.
	RegisterProvider(p llm.Provider)

	// Resolve returns the descriptor for a public model id.
	Resolve(modelID string) (api.ModelDescriptor, error)

	// Models lists every configured descriptor in stable order.
	Models() []api.ModelDescriptor

	ProviderCount() int
	ProviderNames() []string

	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)
	Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)
	CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error)
	Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error)
}

type service struct {
	logger   *zap.Logger
	recorder usage.Recorder
	registry *registry

	mu        sync.RWMutex
	providers map[string]llm.Provider
}

func NewService(logger *zap.Logger, recorder usage.Recorder, descriptors []api.ModelDescriptor) Service {
	if recorder == nil {
		recorder = usage.NopRecorder{}
	}
	return &service{
		logger:    logger,
		recorder:  recorder,
		registry:  newRegistry(descriptors),
		providers: make(map[string]llm.Provider),
	}
}

func (s *service) RegisterProvider(p llm.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
}

func (s *service) Resolve(modelID string) (api.ModelDescriptor, error) {
	m, ok := s.registry.resolve(modelID)
	if !ok {
		return api.ModelDescriptor{}, api.NotFoundError(fmt.Sprintf("model not found: %s", modelID))
	}
	return m, nil
}

func (s *service) Models() []api.ModelDescriptor {
	return s.registry.list()
}

func (s *service) ProviderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.providers)
}

func (s *service) ProviderNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// route resolves a model id to its provider and upstream id, gated on the
// named capability.
func (s *service) route(modelID string, capable func(api.Capabilities) bool, op string) (llm.Provider, api.ModelDescriptor, error) {
	desc, err := s.Resolve(modelID)
	if err != nil {
		return nil, api.ModelDescriptor{}, err
	}

	if !capable(desc.Capabilities) {
		return nil, api.ModelDescriptor{}, api.ValidationError(fmt.Sprintf("model %s does not support %s", modelID, op))
	}

	s.mu.RLock()
	p, ok := s.providers[desc.ProviderID]
	s.mu.RUnlock()
	if !ok {
		return nil, api.ModelDescriptor{}, api.InternalError(fmt.Sprintf("provider %s configured but not active", desc.ProviderID), nil)
	}

	return p, desc, nil
}

func ownerFrom(ctx context.Context) string {
	if owner, ok := ctx.Value(token.ContextKeyOwner).(string); ok {
		return owner
	}
	return ""
}

func (s *service) record(ctx context.Context, kind string, desc api.ModelDescriptor, start time.Time, u *api.Usage, streamed bool) {
	rec := &usage.Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		ModelID:    desc.ID,
		ProviderID: desc.ProviderID,
		Owner:      ownerFrom(ctx),
		LatencyMS:  time.Since(start).Milliseconds(),
		StatusCode: 200,
		Streamed:   streamed,
		CreatedAt:  time.Now().UTC(),
	}
	if u != nil {
		rec.PromptTokens = u.PromptTokens
		rec.CompletionTokens = u.CompletionTokens
	}
	s.recorder.Record(rec)
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	p, desc, err := s.route(req.Model, func(c api.Capabilities) bool { return c.Chat }, "chat")
	if err != nil {
		return nil, err
	}

	upstream := *req
	upstream.Model = desc.Upstream()

	start := time.Now()
	resp, err := p.Chat(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	// Callers address models by public id only; the upstream id never
	// leaks back out.
	resp.Model = desc.ID

	s.record(ctx, usage.KindChat, desc, start, resp.Usage, false)

	return resp, nil
}

func (s *service) ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	p, desc, err := s.route(req.Model, func(c api.Capabilities) bool { return c.Chat }, "chat")
	if err != nil {
		return nil, err
	}

	upstream := *req
	upstream.Model = desc.Upstream()

	start := time.Now()
	in, err := p.ChatStream(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	out := make(chan api.StreamResult)

	go func() {
		defer close(out)

		var tallied api.Usage
		for result := range in {
			if result.Response != nil {
				result.Response.Model = desc.ID
				if result.Response.Usage != nil {
					tallied = *result.Response.Usage
				}
			}
			select {
			case out <- result:
			case <-ctx.Done():
				// Drain so the adapter goroutine can exit.
				for range in {
				}
				s.record(ctx, usage.KindChat, desc, start, &tallied, true)
				return
			}
		}

		s.record(ctx, usage.KindChat, desc, start, &tallied, true)
	}()

	return out, nil
}

func (s *service) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	p, desc, err := s.route(req.Model, func(c api.Capabilities) bool { return c.FIM }, "fill-in-middle completion")
	if err != nil {
		return nil, err
	}

	upstream := *req
	upstream.Model = desc.Upstream()

	start := time.Now()
	resp, err := p.Complete(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	resp.Model = desc.ID

	s.record(ctx, usage.KindCompletions, desc, start, resp.Usage, false)

	return resp, nil
}

func (s *service) CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error) {
	p, desc, err := s.route(req.Model, func(c api.Capabilities) bool { return c.FIM }, "fill-in-middle completion")
	if err != nil {
		return nil, err
	}

	upstream := *req
	upstream.Model = desc.Upstream()

	start := time.Now()
	in, err := p.CompleteStream(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	out := make(chan api.CompletionStreamResult)

	go func() {
		defer close(out)

		var tallied api.Usage
		for result := range in {
			if result.Response != nil {
				result.Response.Model = desc.ID
				if result.Response.Usage != nil {
					tallied = *result.Response.Usage
				}
			}
			select {
			case out <- result:
			case <-ctx.Done():
				for range in {
				}
				s.record(ctx, usage.KindCompletions, desc, start, &tallied, true)
				return
			}
		}

		s.record(ctx, usage.KindCompletions, desc, start, &tallied, true)
	}()

	return out, nil
}

func (s *service) Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	p, desc, err := s.route(req.Model, func(c api.Capabilities) bool { return c.Embeddings }, "embeddings")
	if err != nil {
		return nil, err
	}

	upstream := *req
	upstream.Model = desc.Upstream()

	start := time.Now()
	resp, err := p.Embed(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	resp.Model = desc.ID

	s.record(ctx, usage.KindEmbeddings, desc, start, resp.Usage, false)

	return resp, nil
}
