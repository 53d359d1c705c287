// Package sse adapts go-sse to the pull-style reads of provider streams and
// the event frames the bridge writes.
package sse

import (
	"fmt"
	"io"
	"iter"

	gosse "github.com/tmaxmax/go-sse"
)

// maxEventSize bounds one event; provider frames can carry long replies.
const maxEventSize = 4 << 20

// Event is one server-sent event. Data lines are joined with "\n".
type Event struct {
	ID    string
	Event string
	Data  string
}

// Decoder reads events from a stream one at a time
type Decoder struct {
	next func() (gosse.Event, error, bool)
	stop func()
}

// NewDecoder creates a decoder reading from r. Close releases it when the
// stream is abandoned before io.EOF.
func NewDecoder(r io.Reader) *Decoder {
	events := iter.Seq2[gosse.Event, error](gosse.Read(r, &gosse.ReadConfig{MaxEventSize: maxEventSize}))
	next, stop := iter.Pull2(events)
	return &Decoder{next: next, stop: stop}
}

// Next returns the next dispatched event, or io.EOF once the stream ends.
func (d *Decoder) Next() (Event, error) {
	ev, err, ok := d.next()
	if !ok {
		return Event{}, io.EOF
	}
	if err != nil {
		d.stop()
		return Event{}, fmt.Errorf("failed to read event stream: %w", err)
	}
	return Event{ID: ev.LastEventID, Event: ev.Type, Data: ev.Data}, nil
}

// Close stops reading
func (d *Decoder) Close() {
	d.stop()
}

// NewMessage converts ev to a go-sse message
func NewMessage(ev Event) (*gosse.Message, error) {
	msg := &gosse.Message{}
	if ev.ID != "" {
		id, err := gosse.NewID(ev.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event id: %w", err)
		}
		msg.ID = id
	}
	if ev.Event != "" {
		typ, err := gosse.NewType(ev.Event)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event type: %w", err)
		}
		msg.Type = typ
	}
	msg.AppendData(ev.Data)
	return msg, nil
}

// Write encodes ev to w followed by the blank separator line.
func Write(w io.Writer, ev Event) error {
	msg, err := NewMessage(ev)
	if err != nil {
		return err
	}
	if _, err := msg.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
