package backend

import (
	"errors"
	"io"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// decoderFunc returns a reader of text fragments, which yields io.EOF when
// the reply ends, and a func releasing it. An empty fragment with a nil
// error is skipped.
type decoderFunc func(r io.Reader) (next func() (string, error), stop func())

// Stream is an open provider reply
type Stream struct {
	body    io.ReadCloser
	next    func() (string, error)
	stop    func()
	span    trace.Span
	onChunk func()

	once sync.Once
}

func newStream(body io.ReadCloser, decode decoderFunc, span trace.Span, onChunk func()) *Stream {
	next, stop := decode(body)
	return &Stream{body: body, next: next, stop: stop, span: span, onChunk: onChunk}
}

// Recv returns the next non-empty text chunk. It returns io.EOF once the
// provider finishes; the stream is closed on any error.
func (s *Stream) Recv() (string, error) {
	for {
		text, err := s.next()
		if err != nil {
			s.finish(err)
			return "", err
		}
		if text == "" {
			continue
		}
		if s.onChunk != nil {
			s.onChunk()
		}
		return text, nil
	}
}

// Close releases the connection
func (s *Stream) Close() error {
	s.finish(nil)
	return nil
}

func (s *Stream) finish(err error) {
	s.once.Do(func() {
		if err != nil && !errors.Is(err, io.EOF) {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
		s.body.Close()
		s.stop()
	})
}

// Collect drains s and returns the concatenated text
func Collect(s *Stream) (string, error) {
	defer s.Close()
	var out []byte
	for {
		text, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, text...)
	}
}
