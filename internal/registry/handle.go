package registry

import "sync"

// Handle removes the entry it was issued for.
type Handle struct {
	once   sync.Once
	remove func()
}

// Destroy removes the entry from its registry. Calling it again is a no-op.
func (h *Handle) Destroy() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.remove != nil {
			h.remove()
		}
		h.remove = nil
	})
}

// Handles destroys a group of handles together.
type Handles []*Handle

// Destroy destroys every handle in the group.
func (hs Handles) Destroy() {
	for _, h := range hs {
		h.Destroy()
	}
}
