package core

// tally counts first preferences for one runoff round.
// Items keep the order in which they were first counted so results are stable.
type tally[T comparable] struct {
	counts map[T]int
	order  []T
	maxCnt int
	minCnt int
}

func newTally[T comparable]() *tally[T] {
	return &tally[T]{counts: make(map[T]int)}
}

func (t *tally[T]) Add(item T) {
	c, ok := t.counts[item]
	if !ok {
		t.order = append(t.order, item)
	}
	t.counts[item] = c + 1
}

func (t *tally[T]) Len() int { return len(t.order) }

// seal computes the max/min counts; call once after all Adds.
func (t *tally[T]) seal() {
	t.maxCnt, t.minCnt = 0, 0
	for i, item := range t.order {
		c := t.counts[item]
		if i == 0 || c > t.maxCnt {
			t.maxCnt = c
		}
		if i == 0 || c < t.minCnt {
			t.minCnt = c
		}
	}
}

func (t *tally[T]) withCount(c int) []T {
	var out []T
	for _, item := range t.order {
		if t.counts[item] == c {
			out = append(out, item)
		}
	}
	return out
}

func (t *tally[T]) Best() []T  { return t.withCount(t.maxCnt) }
func (t *tally[T]) Worst() []T { return t.withCount(t.minCnt) }

// Counts lists every counted item from most to fewest votes; equal counts keep first-seen order.
func (t *tally[T]) Counts() []Count[T] {
	out := make([]Count[T], 0, len(t.order))
	for c := t.maxCnt; c >= t.minCnt && c > 0; c-- {
		for _, item := range t.withCount(c) {
			out = append(out, Count[T]{Item: item, Votes: c})
		}
	}
	return out
}
