// Load generator for the gateway. It runs a stub upstream that answers
// the OpenAI wire shapes instantly, so measured latency is gateway
// overhead, then drives the chat route with vegeta.
//
// Point a running gateway at the stub first:
//
//	go run ./cmd/benchmark -upstream :9091
//	# gateway config: base_url: http://localhost:9091/v1
//	go run ./cmd/benchmark -target http://localhost:11434 -rate 100 -duration 30s
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

var (
	streamChunks = []string{
		`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"delta":{"content":"Bench"}}]}`,
		`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"delta":{"content":"mark"}}]}`,
		`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	}
	unaryResp = []byte(`{"id":"bench","object":"chat.completion","model":"bench-model","choices":[{"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
)

func main() {
	target := flag.String("target", "http://localhost:11434", "Gateway base URL")
	upstream := flag.String("upstream", "", "Run the stub upstream on this address instead of attacking")
	model := flag.String("model", "puku-chat", "Model id to request")
	tokenFlag := flag.String("token", "pk-bench", "Bearer token")
	rate := flag.Int("rate", 50, "Requests per second")
	duration := flag.Duration("duration", 10*time.Second, "Attack duration")
	stream := flag.Bool("stream", false, "Use streaming requests")
	flag.Parse()

	if *upstream != "" {
		log.Printf("stub upstream listening on %s", *upstream)
		log.Fatal(http.ListenAndServe(*upstream, stubUpstream()))
	}

	body := fmt.Sprintf(`{"model":%q,"stream":%t,"messages":[{"role":"user","content":"Hello"}]}`, *model, *stream)

	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = *target + "/v1/chat/completions"
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer " + *tokenFlag},
		}
		return nil
	}

	mode := "unary"
	if *stream {
		mode = "streaming"
	}
	fmt.Printf("running %s benchmark: %s at %d req/s\n", mode, *duration, *rate)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "gateway") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("mean:            ", metrics.Latencies.Mean)
	fmt.Println("max:             ", metrics.Latencies.Max)
	fmt.Printf("success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	for i, msg := range metrics.Errors {
		if i >= 5 {
			break
		}
		fmt.Println(msg)
	}
}

func stubUpstream() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"bench-model","object":"model"}]}`))
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if streaming, _ := req["stream"].(bool); streaming {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)
			for _, chunk := range streamChunks {
				fmt.Fprintf(w, "%s\n\n", chunk)
				flusher.Flush()
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(unaryResp)
	})

	return mux
}
