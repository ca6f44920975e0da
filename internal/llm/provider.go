package llm

import (
	"context"
	"errors"

	"github.com/puku-sh/gateway/pkg/api"
)

type ProviderName string

const (
	OpenAI    ProviderName = "openai"
	Anthropic ProviderName = "anthropic"
	Google    ProviderName = "google"
	Ollama    ProviderName = "ollama"
)

// ErrUnsupported is returned by adapters for operations the upstream has
// no native support for. The router gates on descriptor capabilities
// before dispatch, so reaching this indicates a configuration mistake.
var ErrUnsupported = errors.New("operation not supported by this provider")

// Provider adapts the canonical request shapes to one upstream vendor's
// wire format. Streamed sequences are lazy, finite, and non-restartable:
// the channel closes on the upstream end marker or on transport closure.
type Provider interface {
	Name() string
	Type() string

	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	ChatStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)

	// Complete and CompleteStream carry fill-in-middle requests. FIM is a
	// distinct wire shape (prompt/suffix), not a chat variant.
	Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)
	CompleteStream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionStreamResult, error)

	Embed(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error)

	// Health is a lightweight liveness probe; callers bound it with a
	// short timeout. Completion calls are never time-bounded here.
	Health(ctx context.Context) error
}
