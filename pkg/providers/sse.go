package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// SSEEvent is one server-sent event: an optional event name and its data
// payload with multi-line data fields joined by newlines.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEStream reads server-sent events from a provider response body.
// Adapters decode the vendor-specific event payloads themselves.
type SSEStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
}

// maxSSELineSize bounds a single SSE line; large generations arrive as many
// small deltas, so this is generous headroom rather than a real limit.
const maxSSELineSize = 1 << 20

// OpenSSEStream POSTs a streaming request and returns the event stream.
func OpenSSEStream(ctx context.Context, c *HTTPClient, url string, reqBody any, headers map[string]string) (*SSEStream, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ParseError{Provider: c.Name(), Cause: err}
	}

	merged := map[string]string{"Accept": "text/event-stream"}
	for k, v := range headers {
		merged[k] = v
	}

	resp, err := c.Do(ctx, http.MethodPost, url, bodyBytes, merged)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxSSELineSize)

	return &SSEStream{
		provider: c.Name(),
		body:     resp.Body,
		scanner:  scanner,
	}, nil
}

// Next returns the next event. It returns nil and io.EOF at the normal end
// of the stream, and a StreamError if the connection breaks mid-stream.
func (s *SSEStream) Next(ctx context.Context) (*SSEEvent, error) {
	event := &SSEEvent{}
	var data []string

	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := s.scanner.Text()

		// Blank line terminates the event.
		if line == "" {
			if len(data) == 0 && event.Event == "" {
				continue
			}
			event.Data = strings.Join(data, "\n")
			return event, nil
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// Comment / keepalive.
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, &StreamError{Provider: s.provider, Message: "stream read failed", Cause: err}
	}

	if len(data) > 0 {
		event.Data = strings.Join(data, "\n")
		return event, nil
	}
	return nil, io.EOF
}

// Close closes the underlying response body.
func (s *SSEStream) Close() error {
	return s.body.Close()
}
