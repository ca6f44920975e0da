package httpclient

import "fmt"

// UpstreamError carries a non-2xx upstream response. Body text is kept
// verbatim for diagnosability; the gateway never retries.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// EmptyBodyError reports a response that should have carried a body (a
// stream was requested) but did not. Fatal for the request, not the
// process.
type EmptyBodyError struct {
	URL string
}

func (e *EmptyBodyError) Error() string {
	return fmt.Sprintf("upstream returned no body where a stream was expected: %s", e.URL)
}
