package cache

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

type hitRecorderKey struct{}

// WithHitRecorder returns a context in which HTTPMiddleware reports
// whether it served the response from cache by setting *hit to true.
// Callers that need to distinguish a hit from a miss (e.g. to update
// request stats) pass such a context through r.Context().
func WithHitRecorder(ctx context.Context, hit *bool) context.Context {
	return context.WithValue(ctx, hitRecorderKey{}, hit)
}

// responseRecorder captures the opaque (start, body) pair spec §4.4
// describes: when used as HTTP middleware, the cached value is the
// response start message and body captured verbatim; replay emits both
// unchanged.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// KeyFunc derives a cache key from an inbound request.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc keys by method and URL path+query.
func DefaultKeyFunc(r *http.Request) string {
	return r.Method + ":" + r.URL.RequestURI()
}

// HTTPMiddleware wraps next so that responses are cached for ttl and
// replayed byte-for-byte on a subsequent hit, matching the ASGI gateway's
// apply_cache decorator.
func HTTPMiddleware(provider Provider, ttl time.Duration, keyFn KeyFunc, next http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = DefaultKeyFunc
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := "http:" + keyFn(r)

		if raw, ok, err := provider.Get(ctx, key); err == nil && ok {
			if hitPtr, ok := ctx.Value(hitRecorderKey{}).(*bool); ok {
				*hitPtr = true
			}
			replay(w, raw)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		captured := encodeCapture(rec.status, rec.Header(), rec.body.Bytes())
		_ = provider.Set(ctx, key, captured, ttl)
	})
}

func replay(w http.ResponseWriter, raw []byte) {
	status, header, body := decodeCapture(raw)
	for k, vs := range header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// encodeCapture/decodeCapture use a tiny length-prefixed wire format so a
// captured response survives a round trip through a []byte-valued store
// (including a Redis string) without reflection or gob registration.
func encodeCapture(status int, header http.Header, body []byte) []byte {
	var buf bytes.Buffer
	writeInt(&buf, status)
	writeInt(&buf, len(header))
	for k, vs := range header {
		writeString(&buf, k)
		writeInt(&buf, len(vs))
		for _, v := range vs {
			writeString(&buf, v)
		}
	}
	writeInt(&buf, len(body))
	buf.Write(body)
	return buf.Bytes()
}

func decodeCapture(raw []byte) (int, http.Header, []byte) {
	r := bytes.NewReader(raw)
	status := readInt(r)
	headerCount := readInt(r)
	header := make(http.Header, headerCount)
	for i := 0; i < headerCount; i++ {
		k := readString(r)
		n := readInt(r)
		for j := 0; j < n; j++ {
			header.Add(k, readString(r))
		}
	}
	bodyLen := readInt(r)
	body := make([]byte, bodyLen)
	_, _ = r.Read(body)
	return status, header, body
}

func writeInt(buf *bytes.Buffer, n int) {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(n >> (8 * i))
	}
	buf.Write(tmp[:])
}

func readInt(r *bytes.Reader) int {
	var tmp [8]byte
	_, _ = r.Read(tmp[:])
	var n int
	for i := 0; i < 8; i++ {
		n |= int(tmp[i]) << (8 * i)
	}
	return n
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt(buf, len(s))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	n := readInt(r)
	b := make([]byte, n)
	_, _ = r.Read(b)
	return string(b)
}
