package catalog

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSoundfont is returned when an id does not name a registered soundfont.
var ErrUnknownSoundfont = errors.New("unknown soundfont id")

// Registry is the host-side table of soundfonts, addressed by integer ids.
// Ids start at 1; 0 is never handed out.
type Registry struct {
	mu     sync.RWMutex
	fonts  map[int]*Soundfont
	nextID int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		fonts:  make(map[int]*Soundfont),
		nextID: 1,
	}
}

// Add validates and registers a soundfont and returns its id.
func (r *Registry) Add(sf *Soundfont) (int, error) {
	if err := sf.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.fonts[id] = sf
	return id, nil
}

// Remove unregisters a soundfont. Unknown ids are ignored.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fonts, id)
}

// Get returns the soundfont registered under id.
func (r *Registry) Get(id int) (*Soundfont, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sf, ok := r.fonts[id]
	return sf, ok
}

// Len returns the number of registered soundfonts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fonts)
}

// Resolve maps ids to soundfonts in the given order. One unknown id rejects the
// whole selection. An empty id list resolves to an empty selection.
func (r *Registry) Resolve(ids []int) ([]*Soundfont, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fonts := make([]*Soundfont, 0, len(ids))
	for _, id := range ids {
		sf, ok := r.fonts[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSoundfont, id)
		}
		fonts = append(fonts, sf)
	}
	return fonts, nil
}
