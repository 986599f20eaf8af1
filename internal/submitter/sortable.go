package submitter

import (
	"fmt"
	"slices"
	"sync"
)

// Sortable is a reorderable list of element ids, the server-side model of the
// drag-and-drop container on the ballot page.
type Sortable struct {
	mu    sync.Mutex
	ids   []string
	onEnd func(order []string)
}

// NewSortable binds ids as a sortable list. onEnd runs after every completed move.
func NewSortable(ids []string, onEnd func(order []string)) *Sortable {
	return &Sortable{ids: slices.Clone(ids), onEnd: onEnd}
}

// ToArray returns the current order.
func (s *Sortable) ToArray() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Move drags the element at from so that it ends up at index to, then fires onEnd.
func (s *Sortable) Move(from, to int) error {
	s.mu.Lock()
	n := len(s.ids)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return fmt.Errorf("move %d -> %d out of range [0,%d)", from, to, n)
	}
	id := s.ids[from]
	s.ids = slices.Delete(s.ids, from, from+1)
	s.ids = slices.Insert(s.ids, to, id)
	order := slices.Clone(s.ids)
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(order)
	}
	return nil
}
