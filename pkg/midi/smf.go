package midi

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrInvalidSMF is returned when a Standard MIDI File cannot be parsed.
var ErrInvalidSMF = errors.New("invalid MIDI file format")

// MicrosPerSecond is the tick rate of microsecond clocks.
const MicrosPerSecond = 1_000_000

// ReadSMF parses a Standard MIDI File and returns its channel voice and sysex
// messages as events, timestamped on a clock running at tickRate ticks per
// second. Tempo changes are resolved by the parser; meta events are dropped.
func ReadSMF(data []byte, tickRate uint64) ([]Event, error) {
	if tickRate == 0 {
		return nil, fmt.Errorf("tick rate must be positive")
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSMF, err)
	}

	var events []Event
	for _, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)

			raw := []byte(ev.Message)
			if len(raw) == 0 || raw[0] == 0xFF {
				continue
			}

			micros := s.TimeAt(abs)
			e, err := decode(uint64(micros)*tickRate/MicrosPerSecond, raw)
			if err != nil {
				// system common/realtime bytes in a file are skipped
				continue
			}
			events = append(events, e)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events, nil
}

// Load inserts a batch of events under a single lock. The result matches
// inserting them one by one: pending events keep their place ahead of batch
// events with the same timestamp, and the batch keeps its own relative order.
func (q *Queue) Load(events []Event) {
	if len(events) == 0 {
		return
	}

	batch := events
	if !sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Time < batch[j].Time }) {
		batch = append([]Event(nil), events...)
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].Time < batch[j].Time })
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.events[q.pos:]
	if len(pending) == 0 || pending[len(pending)-1].Time <= batch[0].Time {
		q.events = append(q.events, batch...)
		return
	}

	merged := make([]Event, 0, len(q.events)+len(batch))
	merged = append(merged, q.events[:q.pos]...)
	i, j := 0, 0
	for i < len(pending) && j < len(batch) {
		if batch[j].Time < pending[i].Time {
			merged = append(merged, batch[j])
			j++
		} else {
			merged = append(merged, pending[i])
			i++
		}
	}
	merged = append(merged, pending[i:]...)
	merged = append(merged, batch[j:]...)
	q.events = merged
}
