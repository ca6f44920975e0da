package api

// ChatResponse carries both complete responses ("chat.completion") and
// stream chunks ("chat.completion.chunk"); chunks put their payload in
// Choice.Delta instead of Choice.Message.
type ChatResponse struct {
	ID                string `json:"id"`
	Object            string `json:"object"`
	Created           int64  `json:"created"`
	Model             string `json:"model"`
	SystemFingerprint string `json:"system_fingerprint,omitempty"`

	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Error *Error `json:"error,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"` // non-streaming
	Delta        *ChatMessage `json:"delta,omitempty"`   // streaming
	FinishReason string       `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Index    *int         `json:"index,omitempty"` // set on streamed fragments
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // JSON string, possibly partial in deltas
}

// StreamResult is the unit flowing through the streaming relay for chat.
// Exactly one of Response or Err is set.
type StreamResult struct {
	Response *ChatResponse
	Err      error
}

// CompletionResponse is the fill-in-middle response shape: plain text
// choices, no message structure.
type CompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // "text_completion"
	Created int64  `json:"created"`
	Model   string `json:"model"`

	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`

	Error *Error `json:"error,omitempty"`
}

type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// CompletionStreamResult is the relay unit for streamed fill-in-middle
// completions.
type CompletionStreamResult struct {
	Response *CompletionResponse
	Err      error
}

type EmbeddingsResponse struct {
	Object string      `json:"object"` // "list"
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  *Usage      `json:"usage,omitempty"`
}

type Embedding struct {
	Object    string    `json:"object"` // "embedding"
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}
