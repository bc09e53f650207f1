// Package testutil provides push stream test clients for integration tests.
package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one decoded push payload.
type Event map[string]any

// Action returns the payload's "action" field, or "" when absent.
func (e Event) Action() string {
	s, _ := e["action"].(string)
	return s
}

// Int returns a numeric field as int64, or 0 when absent.
func (e Event) Int(key string) int64 {
	f, _ := e[key].(float64)
	return int64(f)
}

// SSEClient reads "data:" frames from an event stream.
type SSEClient struct {
	Header http.Header
	events chan Event
	errs   chan error
	t      *testing.T
}

// NewSSEClient opens url as an event stream and starts decoding frames.
//
// Precondition: url must serve text/event-stream.
// Postcondition: Returns a connected SSEClient or fails the test. The stream
// is closed when the test ends.
func NewSSEClient(t *testing.T, url string, header http.Header) *SSEClient {
	t.Helper()
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		t.Fatalf("building request for %s: %v", url, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("subscribing to %s: status %d", url, resp.StatusCode)
	}

	c := &SSEClient{
		Header: resp.Header,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		t:      t,
	}
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	go c.decode(bufio.NewReader(resp.Body))

	t.Logf("sse client connected to %s [%s]", url, time.Since(start))
	return c
}

func (c *SSEClient) decode(r *bufio.Reader) {
	defer close(c.events)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			c.errs <- err
			return
		}
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if blank, err := r.ReadString('\n'); err != nil || blank != "\n" {
			c.errs <- fmt.Errorf("frame %q not terminated by a blank line", line)
			return
		}
		var e Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			c.errs <- fmt.Errorf("decoding frame %q: %w", line, err)
			return
		}
		c.events <- e
	}
}

// ReadEvent returns the next frame, skipping keep-alive comments.
//
// Postcondition: Returns the decoded event, or fails the test on timeout or
// stream error.
func (c *SSEClient) ReadEvent(timeout time.Duration) Event {
	c.t.Helper()
	select {
	case e, ok := <-c.events:
		if !ok {
			c.t.Fatalf("stream ended: %v", <-c.errs)
		}
		return e
	case <-time.After(timeout):
		c.t.Fatalf("no event within %s", timeout)
		return nil
	}
}

// ReadUntil reads events until one carries the given action.
//
// Precondition: action must be non-empty.
// Postcondition: Returns the matching event, or fails the test on timeout.
func (c *SSEClient) ReadUntil(action string, timeout time.Duration) Event {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("no %q event within %s", action, timeout)
		}
		if e := c.ReadEvent(remaining); e.Action() == action {
			return e
		}
	}
}

// WSClient reads JSON text messages from a WebSocket push stream.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials a ws:// url.
//
// Precondition: url must use the ws or wss scheme.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string, header http.Header) *WSClient {
	t.Helper()
	start := time.Now()

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("ws client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// ReadEvent returns the next message.
//
// Postcondition: Returns the decoded event, or fails the test on timeout.
func (c *WSClient) ReadEvent(timeout time.Duration) Event {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	var e Event
	if err := c.conn.ReadJSON(&e); err != nil {
		c.t.Fatalf("reading event: %v", err)
	}
	return e
}

// ReadUntil reads messages until one carries the given action.
//
// Precondition: action must be non-empty.
// Postcondition: Returns the matching event, or fails the test on timeout.
func (c *WSClient) ReadUntil(action string, timeout time.Duration) Event {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("no %q event within %s", action, timeout)
		}
		if e := c.ReadEvent(remaining); e.Action() == action {
			return e
		}
	}
}

// Close closes the connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
