package store

import (
	"container/heap"
	"sync"
	"time"

	"github.com/curriculagg/curricula-grade/report"
)

var _ Store = &Timeout{}

// Timeout removes reports not read or written for longer than the TTL
type Timeout struct {
	Store
	ttl  time.Duration
	now  func() time.Time
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	entries expiryHeap
}

type expiry struct {
	id    string
	at    time.Time
	index int
}

// expiryHeap orders entries by last access, oldest first
type expiryHeap struct {
	items []*expiry
	byID  map[string]*expiry
}

func (h *expiryHeap) Len() int           { return len(h.items) }
func (h *expiryHeap) Less(i, j int) bool { return h.items[i].at.Before(h.items[j].at) }
func (h *expiryHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*expiry)
	e.index = len(h.items)
	h.items = append(h.items, e)
	h.byID[e.id] = e
}

func (h *expiryHeap) Pop() any {
	e := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	delete(h.byID, e.id)
	return e
}

// NewTimeout wraps s so reports expire after ttl; expired reports are
// removed every interval until Close is called
func NewTimeout(s Store, ttl, interval time.Duration) *Timeout {
	t := &Timeout{
		Store:   s,
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
		entries: expiryHeap{byID: make(map[string]*expiry)},
	}
	go t.loop(interval)
	return t
}

func (t *Timeout) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.expire()
		case <-t.done:
			return
		}
	}
}

// expire removes every report whose TTL elapsed and returns their ids
func (t *Timeout) expire() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	deadline := t.now().Add(-t.ttl)
	for t.entries.Len() > 0 && t.entries.items[0].at.Before(deadline) {
		e := heap.Pop(&t.entries).(*expiry)
		t.Store.Remove(e.id)
		ids = append(ids, e.id)
	}
	return ids
}

func (t *Timeout) Add(name string, r *report.AssignmentReport) (string, error) {
	id, err := t.Store.Add(name, r)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	heap.Push(&t.entries, &expiry{id: id, at: t.now()})
	return id, nil
}

func (t *Timeout) Get(id string) (string, *report.AssignmentReport, error) {
	name, r, err := t.Store.Get(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries.byID[id]; ok && err == nil {
		e.at = t.now()
		heap.Fix(&t.entries, e.index)
	}
	return name, r, err
}

func (t *Timeout) Remove(id string) bool {
	ok := t.Store.Remove(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, found := t.entries.byID[id]; found {
		heap.Remove(&t.entries, e.index)
	}
	return ok
}

// Close stops the expiry loop
func (t *Timeout) Close() {
	t.once.Do(func() { close(t.done) })
}
