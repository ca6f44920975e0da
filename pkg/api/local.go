package api

import "time"

// Wire shapes for the local-inference-compatible surface (family A). The
// gateway emulates the Ollama HTTP protocol closely enough for editor BYOK
// clients pointed at localhost:11434 to work unchanged.

type LocalVersionResponse struct {
	Version string `json:"version"`
}

type LocalTagsResponse struct {
	Models []LocalModel `json:"models"`
}

type LocalModel struct {
	Name       string            `json:"name"`
	Model      string            `json:"model"`
	ModifiedAt time.Time         `json:"modified_at"`
	Size       int64             `json:"size"`
	Digest     string            `json:"digest"`
	Details    LocalModelDetails `json:"details"`
}

type LocalModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

type LocalShowRequest struct {
	// Older clients send "name", newer ones "model". Either is accepted.
	Name  string `json:"name"`
	Model string `json:"model"`
}

func (r LocalShowRequest) ModelName() string {
	if r.Model != "" {
		return r.Model
	}
	return r.Name
}

type LocalShowResponse struct {
	License      string                 `json:"license,omitempty"`
	Modelfile    string                 `json:"modelfile,omitempty"`
	Parameters   string                 `json:"parameters,omitempty"`
	Template     string                 `json:"template,omitempty"`
	Details      LocalModelDetails      `json:"details"`
	ModelInfo    map[string]interface{} `json:"model_info,omitempty"`
	Capabilities []string               `json:"capabilities,omitempty"`
}

type LocalPullRequest struct {
	Name   string `json:"name"`
	Model  string `json:"model"`
	Stream *bool  `json:"stream,omitempty"`
}

func (r LocalPullRequest) ModelName() string {
	if r.Model != "" {
		return r.Model
	}
	return r.Name
}

// LocalPullStatus is one NDJSON progress line of a pull. The gateway has
// no artifacts to fetch, so pulls complete synthetically.
type LocalPullStatus struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
