package forward

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTargetURL rewrites an http(s) target base URL to ws(s), matching the
// original forward_websocket_connection's scheme swap.
func wsTargetURL(targetURL, path, rawQuery string) string {
	url := targetURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	url += path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	return url
}

// ServeWS upgrades r to a WebSocket connection, dials the same path on the
// target over ws(s), and proxies frames bidirectionally until either side
// closes or errors. On error, both sides are closed with code 1011
// (internal error), matching forward_websocket_connection's exception
// handling.
func (f *Forwarder) ServeWS(w http.ResponseWriter, r *http.Request) error {
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return &UpstreamTransportError{Cause: err}
	}
	defer clientConn.Close()

	target := wsTargetURL(f.targetURL, r.URL.Path, r.URL.RawQuery)
	header := http.Header{}
	copyHeadersExceptHopByHop(header, r.Header)

	upstreamConn, _, err := websocket.DefaultDialer.Dial(target, header)
	if err != nil {
		closeWithInternalError(clientConn)
		return &UpstreamTransportError{Cause: err}
	}
	defer upstreamConn.Close()

	var wg sync.WaitGroup
	var retErr error
	var mu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pump(clientConn, upstreamConn); err != nil {
			mu.Lock()
			if retErr == nil {
				retErr = err
			}
			mu.Unlock()
		}
		upstreamConn.SetReadDeadline(time.Now())
	}()
	go func() {
		defer wg.Done()
		if err := pump(upstreamConn, clientConn); err != nil {
			mu.Lock()
			if retErr == nil {
				retErr = err
			}
			mu.Unlock()
		}
		clientConn.SetReadDeadline(time.Now())
	}()
	wg.Wait()

	if retErr != nil && !websocket.IsCloseError(retErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		closeWithInternalError(clientConn)
		closeWithInternalError(upstreamConn)
	}
	return retErr
}

func pump(from, to *websocket.Conn) error {
	for {
		msgType, data, err := from.ReadMessage()
		if err != nil {
			return err
		}
		if err := to.WriteMessage(msgType, data); err != nil {
			return err
		}
	}
}

func closeWithInternalError(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
