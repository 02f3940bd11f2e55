// Package forward implements the gateway's forwarder (spec §4.11): plain
// reverse-proxying of HTTP requests, and WebSocket proxying, to a chosen
// upstream server. Hop-by-hop headers are stripped in both directions and
// bodies are streamed rather than buffered whole.
package forward

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// chunkSize matches the original aiohttp forwarder's iter_chunked(8192).
const chunkSize = 8192

// hopByHopHeaders must never appear in a forwarded request or response,
// per spec §8 testable property 10.
var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

func isHopByHop(header string) bool {
	_, ok := hopByHopHeaders[strings.ToLower(header)]
	return ok
}

func copyHeadersExceptHopByHop(dst, src http.Header) {
	for k, vs := range src {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// UpstreamTransportError wraps a transport-level failure reaching the
// backend, surfaced as a 502 per spec §7.
type UpstreamTransportError struct {
	Cause error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("forward: proxy error: %v", e.Cause)
}

func (e *UpstreamTransportError) Unwrap() error { return e.Cause }

// Forwarder proxies HTTP requests to a fixed target base URL.
type Forwarder struct {
	client    *http.Client
	targetURL string
}

// New creates a Forwarder proxying to targetURL (scheme://host[:port]).
func New(targetURL string, client *http.Client) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Forwarder{client: client, targetURL: strings.TrimRight(targetURL, "/")}
}

func (f *Forwarder) buildTargetURL(path, rawQuery string) string {
	url := f.targetURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	return url
}

// ServeHTTP proxies r to the target, streaming the response body back in
// chunkSize pieces. On a transport error it writes a 502 JSON body.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	targetURL := f.buildTargetURL(r.URL.Path, r.URL.RawQuery)

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		writeProxyError(w, &UpstreamTransportError{Cause: err})
		return
	}
	copyHeadersExceptHopByHop(outReq.Header, r.Header)

	resp, err := f.client.Do(outReq)
	if err != nil {
		writeProxyError(w, &UpstreamTransportError{Cause: err})
		return
	}
	defer resp.Body.Close()

	copyHeadersExceptHopByHop(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	streamBody(w, resp.Body)
}

func streamBody(w http.ResponseWriter, r io.Reader) {
	buf := make([]byte, chunkSize)
	flusher, _ := w.(http.Flusher)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func writeProxyError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	fmt.Fprintf(w, `{"error":"Proxy error: %s"}`, err.(*UpstreamTransportError).Cause.Error())
}
