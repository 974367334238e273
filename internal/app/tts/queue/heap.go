package queue

import "liveTTS/internal/domain"

type entry struct {
	item  *domain.QueueItem
	seq   uint64
	index int
}

// before reports whether a plays before b: any priority beats none, higher
// priority first, then enqueue order.
func before(a, b *entry) bool {
	ap, bp := a.item.Priority, b.item.Priority
	switch {
	case ap != nil && bp == nil:
		return true
	case ap == nil && bp != nil:
		return false
	case ap != nil && bp != nil && *ap != *bp:
		return *ap > *bp
	}
	return a.seq < b.seq
}

// lowerTier reports whether a sits in a strictly lower priority tier than b.
func lowerTier(a, b *entry) bool {
	ap, bp := a.item.Priority, b.item.Priority
	switch {
	case ap == nil && bp != nil:
		return true
	case ap != nil && bp != nil:
		return *ap < *bp
	}
	return false
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return before(h[i], h[j]) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
