package scheduler

import (
	"container/heap"

	"radiocap/internal/schedule"
	"radiocap/internal/store"
)

// plan is the resolved context an entry needs to compute the airing's next
// occurrence without going back to the store.
type plan struct {
	show    store.Show
	station store.Station
	airing  store.Airing
}

type entry struct {
	trigger schedule.Trigger
	plan    *plan
	seq     uint64
	index   int
}

// triggerHeap orders entries by instant, then by insertion sequence.
type triggerHeap []*entry

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	a, b := h[i].trigger.At, h[j].trigger.At
	if !a.Equal(b) {
		return a.Before(b)
	}
	return h[i].seq < h[j].seq
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *triggerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// removeShow drops every entry for showID and restores heap order.
func (h *triggerHeap) removeShow(showID int64) int {
	kept := (*h)[:0]
	removed := 0
	for _, e := range *h {
		if e.trigger.ShowID == showID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(*h); i++ {
		(*h)[i] = nil
	}
	*h = kept
	for i, e := range *h {
		e.index = i
	}
	heap.Init(h)
	return removed
}
