// Package testhelpers provides websocket and HTTP helpers shared by the
// relay tests.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestOrigin is the browser origin the helpers present on the handshake.
const TestOrigin = "http://localhost:8080"

// Event is one decoded websocket frame.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// CreateTestServer creates a running test HTTP server with the given handler.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket dials url presenting token in the auth cookie. The
// handshake response is returned so callers can check a rejection status.
func ConnectWebSocket(url, cookieName, token string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)
	if token != "" {
		headers.Set("Cookie", (&http.Cookie{Name: cookieName, Value: token}).String())
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// SendEvent writes one envelope.
func SendEvent(conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(Event{Event: event, Data: payload})
}

// ReceiveEvent reads the next envelope, failing after timeout.
func ReceiveEvent(conn *websocket.Conn, timeout time.Duration) (Event, error) {
	var evt Event
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return evt, err
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return evt, err
	}
	err = json.Unmarshal(frame, &evt)
	return evt, err
}

// ReceiveEventNamed skips frames until one carries the given event name.
func ReceiveEventNamed(conn *websocket.Conn, event string, timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, errors.New("timed out waiting for " + event)
		}
		evt, err := ReceiveEvent(conn, remaining)
		if err != nil {
			return evt, err
		}
		if evt.Event == event {
			return evt, nil
		}
	}
}

// ExpectNoEvent fails the test if a frame arrives within wait. A read
// timeout leaves the gorilla connection unusable, so this must be the last
// read on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	evt, err := ReceiveEvent(conn, wait)
	if err == nil {
		t.Fatalf("Expected no event, got %q: %s", evt.Event, evt.Data)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
