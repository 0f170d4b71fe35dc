package clock

import (
	"container/heap"
	"slices"
	"sync"
	"time"
)

// Virtual is a manually advanced clock. Tasks run synchronously inside
// Advance, in fire-time order, ties broken by scheduling order.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks taskHeap
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d < 0 {
		d = 0
	}
	v.seq++
	t := &virtualTask{clock: v, fireAt: v.now.Add(d), seq: v.seq, fn: f}
	heap.Push(&v.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that falls due.
// Tasks scheduled by running tasks are honoured if they fall within d.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		if len(v.tasks) == 0 || v.tasks[0].fireAt.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		t := heap.Pop(&v.tasks).(*virtualTask)
		if t.fireAt.After(v.now) {
			v.now = t.fireAt
		}
		t.done = true
		v.mu.Unlock()

		t.fn()
	}
}

// Pending returns the delays, relative to now, of the tasks still waiting.
func (v *Virtual) Pending() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	ret := make([]time.Duration, 0, len(v.tasks))
	for _, t := range v.tasks {
		ret = append(ret, t.fireAt.Sub(v.now))
	}
	slices.Sort(ret)
	return ret
}

type virtualTask struct {
	clock  *Virtual
	fireAt time.Time
	seq    uint64
	fn     func()
	index  int
	done   bool
}

func (t *virtualTask) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	heap.Remove(&t.clock.tasks, t.index)
	return true
}

type taskHeap []*virtualTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*virtualTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
