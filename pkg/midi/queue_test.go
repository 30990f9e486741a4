package midi

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestQueue_InsertKeepsTimeOrder(t *testing.T) {
	q := NewQueue()
	q.Insert(Event{Time: 30, Status: NoteOn, Param: [2]byte{62, 100}})
	q.Insert(Event{Time: 10, Status: NoteOn, Param: [2]byte{60, 100}})
	q.Insert(Event{Time: 20, Status: NoteOn, Param: [2]byte{61, 100}})
	q.Insert(Event{Time: 20, Status: NoteOff, Param: [2]byte{61, 0}})

	want := []struct {
		time   uint64
		status byte
	}{
		{10, NoteOn}, {20, NoteOn}, {20, NoteOff}, {30, NoteOn},
	}
	for i, w := range want {
		e, ok := q.Peek()
		if !ok {
			t.Fatalf("event %d: queue exhausted", i)
		}
		if e.Time != w.time || e.Status != w.status {
			t.Errorf("event %d: got time=%d status=0x%02X, want time=%d status=0x%02X", i, e.Time, e.Status, w.time, w.status)
		}
		q.Advance()
	}

	if q.NextTime() != NoTime {
		t.Errorf("NextTime() = %d, want NoTime", q.NextTime())
	}
	if q.Pos() != q.Len() {
		t.Errorf("Pos() = %d, Len() = %d", q.Pos(), q.Len())
	}
}

func TestQueue_InsertNeverLandsBeforeCursor(t *testing.T) {
	q := NewQueue()
	q.Insert(Event{Time: 100, Status: NoteOn})
	q.Advance()

	// an event older than the consumed one is still delivered
	q.Insert(Event{Time: 50, Status: NoteOff})

	e, ok := q.Peek()
	if !ok || e.Time != 50 {
		t.Fatalf("Peek() = %+v, %v", e, ok)
	}
	if q.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", q.Pending())
	}
}

func TestQueue_InsertMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     gomidi.Message
		status  byte
		param   [2]byte
		data    []byte
		wantErr bool
	}{
		{"note on", gomidi.NoteOn(3, 60, 100), NoteOn | 3, [2]byte{60, 100}, nil, false},
		{"control change", gomidi.ControlChange(9, 0, 120), ControlChange | 9, [2]byte{0, 120}, nil, false},
		{"program change", gomidi.ProgramChange(1, 42), ProgramChange | 1, [2]byte{42, 0}, nil, false},
		{"sysex", gomidi.SysEx([]byte{0x7E, 0x7F, 0x09, 0x03}), SysEx, [2]byte{}, []byte{0x7E, 0x7F, 0x09, 0x03}, false},
		{"note off", gomidi.NoteOffVelocity(4, 61, 30), NoteOff | 4, [2]byte{61, 30}, nil, false},
		{"note on velocity 0", gomidi.NoteOn(0, 62, 0), NoteOn, [2]byte{62, 0}, nil, false},
		{"poly aftertouch", gomidi.PolyAfterTouch(5, 64, 90), AfterTouch | 5, [2]byte{64, 90}, nil, false},
		{"channel pressure", gomidi.AfterTouch(6, 77), ChannelPressure | 6, [2]byte{77, 0}, nil, false},
		{"pitch bend", gomidi.Pitchbend(2, 100), PitchBend | 2, [2]byte{100, 0x40}, nil, false},
		{"pitch bend bottom", gomidi.Pitchbend(15, gomidi.PitchLowest), PitchBend | 15, [2]byte{0, 0}, nil, false},
		{"unterminated sysex", gomidi.Message{0xF0, 0x43, 0x10}, SysEx, [2]byte{}, []byte{0x43, 0x10}, false},
		{"short pitch bend", gomidi.Message{0xE0, 0x00}, 0, [2]byte{}, nil, true},
		{"song position", gomidi.Message{0xF2, 0x00, 0x10}, 0, [2]byte{}, nil, true},
		{"realtime", gomidi.Message{0xF8}, 0, [2]byte{}, nil, true},
		{"empty", gomidi.Message{}, 0, [2]byte{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			err := q.InsertMessage(7, tt.msg)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedMessage) {
					t.Fatalf("InsertMessage() = %v, want ErrUnsupportedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("InsertMessage() = %v", err)
			}

			e, _ := q.Peek()
			if e.Time != 7 || e.Status != tt.status || e.Param != tt.param {
				t.Errorf("got %+v", e)
			}
			if string(e.Data) != string(tt.data) {
				t.Errorf("Data = % X, want % X", e.Data, tt.data)
			}
		})
	}
}

func TestQueue_Reset(t *testing.T) {
	q := NewQueue()
	q.InsertSysEx(1, []byte{0xF0, 0x7E, 0xF7})
	q.Advance()
	q.Insert(Event{Time: 2, Status: NoteOn})
	q.Reset()

	if q.Len() != 0 || q.Pos() != 0 || q.NextTime() != NoTime {
		t.Errorf("Reset left len=%d pos=%d next=%d", q.Len(), q.Pos(), q.NextTime())
	}
}

// TestQueue_OrderProperty checks that any insertion order drains sorted.
func TestQueue_OrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("events drain in non-decreasing time order", prop.ForAll(
		func(times []uint32) bool {
			q := NewQueue()
			for _, tm := range times {
				q.Insert(Event{Time: uint64(tm), Status: NoteOn})
			}

			var last uint64
			n := 0
			for {
				e, ok := q.Peek()
				if !ok {
					break
				}
				if e.Time < last {
					return false
				}
				last = e.Time
				q.Advance()
				n++
			}
			return n == len(times)
		},
		gen.SliceOf(gen.UInt32Range(0, 10000)),
	))

	properties.TestingRun(t)
}

func TestQueue_LoadMergesWithPending(t *testing.T) {
	q := NewQueue()
	q.Insert(Event{Time: 5, Status: NoteOn, Param: [2]byte{1}})
	q.Advance()
	q.Insert(Event{Time: 10, Status: NoteOn, Param: [2]byte{2}})
	q.Insert(Event{Time: 30, Status: NoteOn, Param: [2]byte{3}})

	q.Load([]Event{
		{Time: 30, Status: NoteOff, Param: [2]byte{4}},
		{Time: 10, Status: NoteOff, Param: [2]byte{5}},
		{Time: 20, Status: NoteOff, Param: [2]byte{6}},
		{Time: 10, Status: NoteOff, Param: [2]byte{7}},
	})

	if q.Pos() != 1 {
		t.Fatalf("Pos() = %d, want 1", q.Pos())
	}
	var got []byte
	for {
		e, ok := q.Peek()
		if !ok {
			break
		}
		got = append(got, e.Param[0])
		q.Advance()
	}
	want := []byte{2, 5, 7, 6, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("drain order = %v, want %v", got, want)
	}
}

func TestQueue_LoadAppendsSortedBatch(t *testing.T) {
	q := NewQueue()
	q.Insert(Event{Time: 10, Status: NoteOn, Param: [2]byte{1}})

	batch := []Event{
		{Time: 10, Status: NoteOff, Param: [2]byte{2}},
		{Time: 40, Status: NoteOff, Param: [2]byte{3}},
	}
	q.Load(batch)
	q.Load(nil)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for i, w := range []byte{1, 2, 3} {
		e, _ := q.Peek()
		if e.Param[0] != w {
			t.Errorf("event %d: Param[0] = %d, want %d", i, e.Param[0], w)
		}
		q.Advance()
	}
}

// TestQueue_LoadProperty checks that Load lands events exactly where one
// Insert per event would.
func TestQueue_LoadProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("Load matches repeated Insert", prop.ForAll(
		func(queued, batch []uint8, consumed int) bool {
			build := func() *Queue {
				q := NewQueue()
				for i, tm := range queued {
					q.Insert(Event{Time: uint64(tm), Status: NoteOn, Param: [2]byte{byte(i)}})
				}
				for i := 0; i < consumed && i < len(queued); i++ {
					q.Advance()
				}
				return q
			}

			events := make([]Event, len(batch))
			for i, tm := range batch {
				events[i] = Event{Time: uint64(tm), Status: NoteOff, Param: [2]byte{byte(i)}}
			}

			loaded := build()
			loaded.Load(events)

			inserted := build()
			for _, e := range events {
				inserted.Insert(e)
			}

			return loaded.pos == inserted.pos && reflect.DeepEqual(loaded.events, inserted.events)
		},
		gen.SliceOf(gen.UInt8Range(0, 16)),
		gen.SliceOf(gen.UInt8Range(0, 16)),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestReadSMF(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.ProgramChange(0, 5))
	tr.Add(96, gomidi.NoteOn(0, 60, 100))
	tr.Add(48, gomidi.NoteOff(0, 60))
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	events, err := ReadSMF(buf.Bytes(), MicrosPerSecond)
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}

	// 120 BPM at 96 ticks per quarter: one quarter is 500ms
	want := []struct {
		time uint64
		typ  byte
	}{
		{0, ProgramChange},
		{500000, NoteOn},
		{750000, NoteOff},
	}
	for i, w := range want {
		if events[i].Time != w.time || events[i].Type() != w.typ {
			t.Errorf("event %d: got time=%d type=0x%02X, want time=%d type=0x%02X",
				i, events[i].Time, events[i].Type(), w.time, w.typ)
		}
	}
}

func TestReadSMF_Invalid(t *testing.T) {
	if _, err := ReadSMF([]byte("not a midi file"), MicrosPerSecond); !errors.Is(err, ErrInvalidSMF) {
		t.Errorf("ReadSMF() = %v, want ErrInvalidSMF", err)
	}
	if _, err := ReadSMF(nil, 0); err == nil {
		t.Error("expected error for zero tick rate")
	}
}
