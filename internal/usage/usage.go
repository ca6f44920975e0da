package usage

import "time"

// Quota kinds tracked by the ledger. These match the snapshot keys the
// editor's entitlement UI reads.
const (
	KindChat        = "chat"
	KindCompletions = "completions"
	KindEmbeddings  = "embeddings"
)

// Record is one completed request's accounting row. It carries token
// counts and routing metadata only; prompt and completion content are
// never persisted.
type Record struct {
	ID               string    `db:"id"`
	Kind             string    `db:"kind"`
	ModelID          string    `db:"model_id"`
	ProviderID       string    `db:"provider_id"`
	Owner            string    `db:"owner"`
	PromptTokens     int       `db:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"`
	LatencyMS        int64     `db:"latency_ms"`
	StatusCode       int       `db:"status_code"`
	Streamed         bool      `db:"streamed"`
	CreatedAt        time.Time `db:"created_at"`
}

// Totals aggregates request counts per kind over a period.
type Totals struct {
	Kind     string `db:"kind"`
	Requests int64  `db:"requests"`
}

// Recorder is the write-side interface the gateway dispatch path uses.
type Recorder interface {
	Record(rec *Record)
}

// NopRecorder discards records, for deployments without a usage ledger
// and for tests.
type NopRecorder struct{}

func (NopRecorder) Record(*Record) {}
