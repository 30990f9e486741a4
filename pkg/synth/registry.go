package synth

import "sync/atomic"

// fontList is an immutable snapshot of the engine bank ids owned by the
// synthesizer.
type fontList struct {
	ids []int
}

// fontRegistry holds the resident bank ids. A swap publishes the new list and
// hands back the old one in a single atomic step, so every id is handed back
// exactly once. Swaps are made by one control goroutine at a time; readers
// may call ids from anywhere.
type fontRegistry struct {
	cur atomic.Pointer[fontList]
}

// swap installs ids and returns the ids it replaced.
func (r *fontRegistry) swap(ids []int) []int {
	var next *fontList
	if len(ids) > 0 {
		next = &fontList{ids: ids}
	}
	prev := r.cur.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.ids
}

// ids returns a copy of the resident ids.
func (r *fontRegistry) ids() []int {
	l := r.cur.Load()
	if l == nil {
		return nil
	}
	return append([]int(nil), l.ids...)
}
