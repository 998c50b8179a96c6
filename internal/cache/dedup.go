// Package cache implements the lossy, direct-mapped dedup cache used
// by the position enumerator to prune duplicate boards across
// concurrent workers: a fixed-size, single-slot-per-bucket hash of
// atomically-replaced raw 64-bit board values, sized by an arbitrary
// modulus (a large prime) rather than rounded to a power of two.
package cache

import (
	"log"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// DefaultSize is the default modulus, sized for a 10-moving-square
// problem. 104,395,301 is prime.
const DefaultSize = 104395301

// Dedup is a fixed-size, lossy, direct-mapped set of uint64 board
// values. Test is safe to call concurrently from any number of
// goroutines: each slot is a single atomic word, so a concurrent
// read-modify-write never observes or produces a torn value, though
// the overall cache is not linearizable (two concurrent testers of
// the same value may both see "not seen").
type Dedup struct {
	slots []atomic.Uint64
	hits  atomic.Uint64
	miss  atomic.Uint64
}

// New creates a Dedup cache with the given number of slots. size
// should be prime to spread hashes evenly; size<=0 is raised to a
// single slot, so Test still works but remembers only the most
// recently tested value.
func New(size int) *Dedup {
	if size <= 0 {
		size = 1
	}
	return &Dedup{slots: make([]atomic.Uint64, size)}
}

// Test reports whether value was recently seen (true = definitely
// seen before, false = not seen or evicted by a collision) and
// unconditionally records value in its slot for the next caller.
func (d *Dedup) Test(value uint64) bool {
	idx := value % uint64(len(d.slots))
	old := d.slots[idx].Swap(value)
	seen := old == value
	if seen {
		d.hits.Add(1)
	} else {
		d.miss.Add(1)
	}
	return seen
}

// Clear zeroes every slot and resets the hit/miss counters, logging
// the counters first. The logged miss rate is how an operator notices
// a too-small cache size (a high miss rate means the stratified
// enumeration is redoing a lot of work).
func (d *Dedup) Clear() {
	log.Printf("dedup cache: clearing (hits=%s misses=%s)",
		humanize.Comma(int64(d.hits.Load())), humanize.Comma(int64(d.miss.Load())))
	for i := range d.slots {
		d.slots[i].Store(0)
	}
	d.hits.Store(0)
	d.miss.Store(0)
}

// Destroy releases the backing storage, dropping a large allocation
// once enumeration is done and only evaluation remains.
func (d *Dedup) Destroy() {
	d.slots = nil
}

// Len returns the cache's slot count.
func (d *Dedup) Len() int {
	return len(d.slots)
}

// Stats returns the current hit/miss counters without clearing them.
func (d *Dedup) Stats() (hits, misses uint64) {
	return d.hits.Load(), d.miss.Load()
}
