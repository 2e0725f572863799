package report

import "sync"

// LRUStore keeps the most recently used runs in memory and delegates to
// a backing Store for everything else.
type LRUStore struct {
	mu   sync.Mutex
	cap  int
	back Store

	// Most recently used at head.
	head, tail *entry
	items      map[string]*entry
}

type entry struct {
	id         string
	run        *RunResult
	prev, next *entry
}

// NewLRUStore creates an LRU cache holding up to cap runs in front of
// back. A cap below 1 is treated as 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*entry, cap),
	}
}

// Save caches the run and writes it through to the backing store.
func (s *LRUStore) Save(run *RunResult) error {
	s.mu.Lock()
	s.put(run.ID, run)
	s.mu.Unlock()

	return s.back.Save(run)
}

// Load returns a cached run, or loads it from the backing store and
// caches it.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.moveToFront(e)
		run := e.run
		s.mu.Unlock()
		return run, nil
	}
	s.mu.Unlock()

	run, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.put(runID, run)
	s.mu.Unlock()
	return run, nil
}

// Recent returns the cached runs, most recently used first.
func (s *LRUStore) Recent() []*RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*RunResult, 0, len(s.items))
	for e := s.head; e != nil; e = e.next {
		out = append(out, e.run)
	}
	return out
}

// put inserts or refreshes id. The caller holds s.mu.
func (s *LRUStore) put(id string, run *RunResult) {
	if e, ok := s.items[id]; ok {
		e.run = run
		s.moveToFront(e)
		return
	}
	e := &entry{id: id, run: run}
	s.items[id] = e
	s.pushFront(e)
	if len(s.items) > s.cap {
		s.evict()
	}
}

func (s *LRUStore) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) moveToFront(e *entry) {
	if s.head == e {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}

func (s *LRUStore) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (s *LRUStore) evict() {
	if s.tail == nil {
		return
	}
	e := s.tail
	s.unlink(e)
	delete(s.items, e.id)
}
