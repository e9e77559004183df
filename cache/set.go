package cache

// noWay marks an absent way index: an empty head/tail, or a line's absent
// neighbour.
const noWay = -1

// line is a resident cache line. It carries intrusive LRU linkage (prev/next)
// to its neighbours within the owning set, addressed by way index rather than
// pointer.
type line struct {
	tag   uint32
	dirty bool
	used  bool
	prev  int
	next  int
}

// set is one set's worth of lines: a fixed arena sized to the cache's
// associativity, with an intrusive doubly-linked LRU list threaded through
// it. head is MRU, tail is LRU. A way's slot is reused in place on eviction;
// no separate free-list is needed because a set never holds more than
// associativity lines.
type set struct {
	lines    []line
	head     int
	tail     int
	contents int
}

func newSet(associativity int) set {
	lines := make([]line, associativity)
	for i := range lines {
		lines[i].prev = noWay
		lines[i].next = noWay
	}

	return set{lines: lines, head: noWay, tail: noWay}
}

// lookup scans from head for a resident line with the given tag. Cost is
// O(associativity).
func (s *set) lookup(tag uint32) (way int, ok bool) {
	for w := s.head; w != noWay; w = s.lines[w].next {
		if s.lines[w].tag == tag {
			return w, true
		}
	}

	return noWay, false
}

// detach splices way out of the list without freeing its slot. Precondition:
// way is currently linked into this set.
func (s *set) detach(way int) {
	l := &s.lines[way]

	if l.prev != noWay {
		s.lines[l.prev].next = l.next
	} else {
		s.head = l.next
	}

	if l.next != noWay {
		s.lines[l.next].prev = l.prev
	} else {
		s.tail = l.prev
	}

	l.prev = noWay
	l.next = noWay
}

// attachHead splices way in at the head. Precondition: way is not currently
// linked into this set.
func (s *set) attachHead(way int) {
	l := &s.lines[way]
	l.next = s.head
	l.prev = noWay

	if s.head != noWay {
		s.lines[s.head].prev = way
	} else {
		s.tail = way
	}

	s.head = way
}

// promote moves way to MRU. Precondition: way is currently resident in this
// set.
func (s *set) promote(way int) {
	if s.head == way {
		return
	}

	s.detach(way)
	s.attachHead(way)
}

// freeWay returns a way index not currently linked into the list, preferring
// the first unused slot; callers only reach the "no free way" case when the
// set is already at capacity, at which point they must evictLRU first.
func (s *set) freeWay() (way int, ok bool) {
	for i := range s.lines {
		if !s.lines[i].used {
			return i, true
		}
	}

	return noWay, false
}

// insertMRU allocates a free way for tag/dirty and attaches it at head.
// Precondition: the set is not full (contents < associativity).
func (s *set) insertMRU(tag uint32, dirty bool) int {
	way, ok := s.freeWay()
	if !ok {
		panic("cache: insertMRU called on a full set")
	}

	s.lines[way] = line{tag: tag, dirty: dirty, used: true}
	s.attachHead(way)
	s.contents++

	return way
}

// evictLRU detaches and frees the tail line, returning its prior contents.
// Precondition: the set is non-empty.
func (s *set) evictLRU() line {
	way := s.tail
	evicted := s.lines[way]

	s.detach(way)
	s.lines[way] = line{prev: noWay, next: noWay}
	s.contents--

	return evicted
}

// full reports whether the next insertion requires an eviction first.
func (s *set) full() bool {
	return s.contents == len(s.lines)
}

// forEachDirty visits every resident dirty line, clearing its dirty flag.
// Used by flush.
func (s *set) forEachDirty(visit func()) {
	for w := s.head; w != noWay; w = s.lines[w].next {
		if s.lines[w].dirty {
			visit()
			s.lines[w].dirty = false
		}
	}
}
