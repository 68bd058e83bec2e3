package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

type streamEvent struct {
	Type           string            `json:"type"`
	Delta          string            `json:"delta,omitempty"`
	Response       *GenerateResponse `json:"response,omitempty"`
	SequenceNumber int               `json:"sequence_number"`
}

// SSEStreamWriter frames generation events as server-sent events. Each event
// is flushed as soon as it is written.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	seq     int
	err     error
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	return &SSEStreamWriter{w: res, flusher: flusher.Flush, seq: 1}, nil
}

func (s *SSEStreamWriter) Begin(resp GenerateResponse) error {
	return s.send(streamEvent{Type: "generation.created", Response: &resp})
}

func (s *SSEStreamWriter) EmitToken(delta string) error {
	return s.send(streamEvent{Type: "generation.delta", Delta: delta})
}

// Finish sends the terminal event matching the response status.
func (s *SSEStreamWriter) Finish(resp GenerateResponse) error {
	typ := "generation.completed"
	switch resp.Status {
	case statusFailed:
		typ = "generation.failed"
	case statusCancelled:
		typ = "generation.cancelled"
	}
	return s.send(streamEvent{Type: typ, Response: &resp})
}

// Err reports the first write failure. Once a write fails every later event
// is dropped.
func (s *SSEStreamWriter) Err() error { return s.err }

func (s *SSEStreamWriter) send(event streamEvent) error {
	if s.err != nil {
		return s.err
	}
	event.SequenceNumber = s.seq
	b, err := json.Marshal(event)
	if err != nil {
		s.err = err
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		s.err = err
		return err
	}
	s.flusher()
	s.seq++
	return nil
}
