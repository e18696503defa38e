package job

import "sync"

// History remembers the most recent runs, up to Size of them. Recording
// a run it already has replaces it in place; recording a new one when
// full forgets the oldest.
type History struct {
	Size int

	mu    sync.RWMutex
	byID  map[ID]Status
	order []ID // oldest first
}

func (h *History) Record(s Status) {
	if h.Size <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byID == nil {
		h.byID = map[ID]Status{}
	}
	if _, ok := h.byID[s.ID]; !ok {
		for len(h.order) >= h.Size {
			delete(h.byID, h.order[0])
			h.order = h.order[1:]
		}
		h.order = append(h.order, s.ID)
	}
	h.byID[s.ID] = s
}

func (h *History) Get(id ID) (Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.byID[id]
	return s, ok
}
