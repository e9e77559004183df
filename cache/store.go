package cache

import "fmt"

// policy bundles the write-policy axes and derived constants every access
// needs; it is shared by both caches in an Ensemble, since write policy and
// allocation policy are global, not per-cache.
type policy struct {
	writeBack     bool
	writeAlloc    bool
	wordsPerBlock uint64
}

// store is one set-associative cache: either the unified cache, or one half
// (I or D) of a split ensemble. It owns every line it holds; lines never
// move between sets or stores.
type store struct {
	associativity int
	blockSize     int
	nSets         int
	dec           decoder
	sets          []set
}

// newStore validates size/blockSize/associativity and allocates nSets sets
// of associativity lines each.
func newStore(size, blockSize, associativity int) (*store, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size %d: %w", size, ErrZeroSize)
	}

	if !isPowerOfTwo(blockSize) {
		return nil, fmt.Errorf("block_size %d: %w", blockSize, ErrNotPowerOfTwo)
	}

	if associativity <= 0 || size%(blockSize*associativity) != 0 {
		return nil, fmt.Errorf("size=%d block_size=%d assoc=%d: %w",
			size, blockSize, associativity, ErrAssocMismatch)
	}

	nSets := size / blockSize / associativity
	if !isPowerOfTwo(nSets) {
		return nil, fmt.Errorf("n_sets %d: %w", nSets, ErrNotPowerOfTwo)
	}

	sets := make([]set, nSets)
	for i := range sets {
		sets[i] = newSet(associativity)
	}

	return &store{
		associativity: associativity,
		blockSize:     blockSize,
		nSets:         nSets,
		dec:           newDecoder(blockSize, nSets),
		sets:          sets,
	}, nil
}

// access runs the full lookup/miss/replacement/write-policy state machine
// for one reference against this store, mutating stats.
func (c *store) access(addr uint32, t AccessType, pol policy, stats *Stats) {
	stats.Accesses++

	index, tag := c.dec.decode(addr)
	s := &c.sets[index]

	if way, hit := s.lookup(tag); hit {
		s.promote(way)

		if t == DataStore {
			if pol.writeBack {
				s.lines[way].dirty = true
			} else {
				stats.CopiesBack++
			}
		}

		return
	}

	stats.Misses++

	switch t {
	case InstLoad, DataLoad:
		stats.DemandFetches += pol.wordsPerBlock
		c.allocate(s, tag, false, pol, stats)
	case DataStore:
		if pol.writeAlloc {
			stats.DemandFetches += pol.wordsPerBlock
			c.allocate(s, tag, pol.writeBack, pol, stats)

			if !pol.writeBack {
				stats.CopiesBack++
			}
		} else {
			stats.CopiesBack++
		}
	}
}

// allocate performs the eviction-then-insert protocol shared by load misses
// and write-allocate store misses.
func (c *store) allocate(s *set, tag uint32, dirty bool, pol policy, stats *Stats) {
	if s.full() {
		victim := s.evictLRU()
		if victim.dirty {
			stats.CopiesBack += pol.wordsPerBlock
		}

		stats.Replacements++
	}

	s.insertMRU(tag, dirty)
}

// flush walks every resident line once, accumulating one wordsPerBlock unit
// of write traffic per dirty line into dst and clearing the dirty flag.
func (c *store) flush(wordsPerBlock uint64, dst *uint64) {
	for i := range c.sets {
		s := &c.sets[i]
		s.forEachDirty(func() {
			*dst += wordsPerBlock
		})
	}
}
