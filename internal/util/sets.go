package util

type Void struct{}

// Set is a small membership set keyed by any comparable value.
type Set[K comparable] map[K]Void

func NewSet[K comparable](items ...K) Set[K] {
	s := make(Set[K], len(items))
	for _, k := range items {
		s.Add(k)
	}
	return s
}

func (s Set[K]) Add(k K)      { s[k] = Void{} }
func (s Set[K]) Remove(k K)   { delete(s, k) }
func (s Set[K]) Has(k K) bool { _, ok := s[k]; return ok }
func (s Set[K]) Len() int     { return len(s) }
