package midi

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrUnsupportedMessage is returned for messages the queue cannot carry
// (system common, realtime and meta messages).
var ErrUnsupportedMessage = errors.New("unsupported MIDI message")

// Queue is a time-ordered event list with a read cursor.
//
// Producers insert at any time; the cursor is advanced only by the consumer
// (the render loop). Events before the cursor are consumed and never revisited.
type Queue struct {
	mu     sync.Mutex
	events []Event
	pos    int
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Insert adds an event after every pending event with the same or an earlier
// timestamp.
func (q *Queue) Insert(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.events[q.pos:]
	i := q.pos + sort.Search(len(pending), func(i int) bool {
		return pending[i].Time > e.Time
	})

	q.events = append(q.events, Event{})
	copy(q.events[i+1:], q.events[i:])
	q.events[i] = e
}

// InsertMessage decodes a channel voice or sysex message and inserts it.
func (q *Queue) InsertMessage(time uint64, msg gomidi.Message) error {
	e, err := decode(time, msg)
	if err != nil {
		return err
	}
	q.Insert(e)
	return nil
}

// InsertSysEx inserts a sysex payload. A leading 0xF0 and trailing 0xF7 are
// stripped if present.
func (q *Queue) InsertSysEx(time uint64, data []byte) {
	q.Insert(Event{Time: time, Status: SysEx, Data: trimSysEx(data)})
}

func decode(time uint64, msg gomidi.Message) (Event, error) {
	if len(msg) == 0 {
		return Event{}, fmt.Errorf("%w: empty message", ErrUnsupportedMessage)
	}

	var (
		ch, p0, p1 uint8
		bend       uint16
		data       []byte
	)
	e := Event{Time: time}
	switch {
	case msg.GetNoteOff(&ch, &p0, &p1):
		e.Status = NoteOff
	case msg.GetNoteOn(&ch, &p0, &p1):
		e.Status = NoteOn
	case msg.GetPolyAfterTouch(&ch, &p0, &p1):
		e.Status = AfterTouch
	case msg.GetControlChange(&ch, &p0, &p1):
		e.Status = ControlChange
	case msg.GetProgramChange(&ch, &p0):
		e.Status = ProgramChange
	case msg.GetAfterTouch(&ch, &p0):
		e.Status = ChannelPressure
	case msg.GetPitchBend(&ch, nil, &bend):
		e.Status = PitchBend
		p0, p1 = uint8(bend&0x7F), uint8(bend>>7)
	case msg.GetSysEx(&data):
		return Event{Time: time, Status: SysEx, Data: trimSysEx(data)}, nil
	case msg[0] == SysEx:
		// unterminated sysex
		return Event{Time: time, Status: SysEx, Data: trimSysEx(msg)}, nil
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Type())
	}

	e.Status |= ch & 0x0F
	e.Param = [2]byte{p0, p1}
	return e, nil
}

func trimSysEx(b []byte) []byte {
	if len(b) > 0 && b[0] == SysEx {
		b = b[1:]
	}
	if len(b) > 0 && b[len(b)-1] == 0xF7 {
		b = b[:len(b)-1]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Peek returns the event under the cursor.
func (q *Queue) Peek() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pos >= len(q.events) {
		return Event{}, false
	}
	return q.events[q.pos], true
}

// NextTime returns the timestamp of the event under the cursor, or NoTime.
func (q *Queue) NextTime() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pos >= len(q.events) {
		return NoTime
	}
	return q.events[q.pos].Time
}

// Advance moves the cursor past the current event.
func (q *Queue) Advance() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pos < len(q.events) {
		q.pos++
	}
}

// Pos returns the cursor position.
func (q *Queue) Pos() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pos
}

// Len returns the number of events held, consumed ones included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Pending returns the number of events not yet consumed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) - q.pos
}

// Reset drops every event and rewinds the cursor.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
	q.pos = 0
}
