package api

// ModelDescriptor is the static configuration record for one addressable
// model. The table is loaded at process start and immutable thereafter;
// model-to-provider resolution is a pure lookup over it.
type ModelDescriptor struct {
	ID          string `mapstructure:"id" json:"id"`
	DisplayName string `mapstructure:"display_name" json:"display_name"`
	ProviderID  string `mapstructure:"provider_id" json:"provider_id"`

	// UpstreamID is the id sent to the provider. Defaults to ID.
	UpstreamID string `mapstructure:"upstream_id" json:"upstream_id,omitempty"`

	Capabilities Capabilities `mapstructure:"capabilities" json:"capabilities"`

	// Synthetic metadata rendered on the local-inference surface, where
	// callers expect weight-file details that do not exist here.
	Family        string `mapstructure:"family" json:"family,omitempty"`
	ParameterSize string `mapstructure:"parameter_size" json:"parameter_size,omitempty"`
	Quantization  string `mapstructure:"quantization" json:"quantization,omitempty"`
}

type Capabilities struct {
	Chat          bool `mapstructure:"chat" json:"chat"`
	FIM           bool `mapstructure:"fim" json:"fim"`
	Embeddings    bool `mapstructure:"embeddings" json:"embeddings"`
	Tools         bool `mapstructure:"tools" json:"tools"`
	Vision        bool `mapstructure:"vision" json:"vision"`
	ContextLength int  `mapstructure:"context_length" json:"context_length"`
}

// Upstream returns the id to send to the provider.
func (m ModelDescriptor) Upstream() string {
	if m.UpstreamID != "" {
		return m.UpstreamID
	}
	return m.ID
}

// Model is the OpenAI-style list entry rendered by the model listing
// routes.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // "model"
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
	Name    string `json:"name,omitempty"`
}

// ModelList wraps Model entries the way the OpenAI surface expects.
type ModelList struct {
	Object string  `json:"object"` // "list"
	Data   []Model `json:"data"`
}
