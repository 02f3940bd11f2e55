package forward

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestForwarder_StripsHopByHopHeadersFromRequest(t *testing.T) {
	var seenConnection string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenConnection = r.Header.Get("Connection")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := New(upstream.URL, upstream.Client())
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Custom", "value")
	rec := httptest.NewRecorder()

	f.ServeHTTP(rec, req)

	if seenConnection != "" {
		t.Fatalf("expected Connection header stripped, got %q", seenConnection)
	}
}

func TestForwarder_TransportErrorReturns502(t *testing.T) {
	f := New("http://127.0.0.1:1", nil) // nothing listens here
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	f.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestForwarder_StreamsResponseBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	f := New(upstream.URL, upstream.Client())
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	f.ServeHTTP(rec, req)

	if rec.Body.String() != "hello" {
		t.Fatalf("expected body 'hello', got %q", rec.Body.String())
	}
}

func TestWSTargetURL_RewritesScheme(t *testing.T) {
	if got := wsTargetURL("https://example.com", "/ws", ""); got != "wss://example.com/ws" {
		t.Fatalf("expected wss rewrite, got %q", got)
	}
	if got := wsTargetURL("http://example.com", "/ws", "a=1"); got != "ws://example.com/ws?a=1" {
		t.Fatalf("expected ws rewrite with query, got %q", got)
	}
}
