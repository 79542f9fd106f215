package batch

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/neuracity/risk-index-service/internal/storage"
)

// lockCellDegrees is the edge length of the coarse grid used to serialize
// overlapping regional runs. Runs whose bounds share a cell take the same
// lock; disjoint regions proceed in parallel.
const lockCellDegrees = 0.5

// regionLocks serializes recalculation runs that touch the same ground.
// Full-inventory runs take the write side of the global lock and exclude
// everything; regional runs share the read side and then lock their grid
// cells in sorted order, so two overlapping regions never interleave writes
// and disjoint regions never wait on each other.
type regionLocks struct {
	global sync.RWMutex

	mu    sync.Mutex
	cells map[string]*sync.Mutex
}

func newRegionLocks() *regionLocks {
	return &regionLocks{cells: make(map[string]*sync.Mutex)}
}

// acquire blocks until the run owns every cell covering bounds (or the whole
// grid for nil bounds) and returns the release function.
func (l *regionLocks) acquire(bounds *storage.Bounds) func() {
	if bounds == nil {
		l.global.Lock()
		return l.global.Unlock
	}

	l.global.RLock()
	keys := cellKeys(*bounds)
	locks := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		locks = append(locks, l.cell(key))
	}
	for _, m := range locks {
		m.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
		l.global.RUnlock()
	}
}

func (l *regionLocks) cell(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.cells[key]
	if !ok {
		m = &sync.Mutex{}
		l.cells[key] = m
	}
	return m
}

// cellKeys lists the grid cells covering bounds, sorted so concurrent runs
// always lock in the same order.
func cellKeys(b storage.Bounds) []string {
	minLatCell := int(math.Floor(b.MinLat / lockCellDegrees))
	maxLatCell := int(math.Floor(b.MaxLat / lockCellDegrees))
	minLngCell := int(math.Floor(b.MinLng / lockCellDegrees))
	maxLngCell := int(math.Floor(b.MaxLng / lockCellDegrees))

	var keys []string
	for lat := minLatCell; lat <= maxLatCell; lat++ {
		for lng := minLngCell; lng <= maxLngCell; lng++ {
			keys = append(keys, fmt.Sprintf("%d:%d", lat, lng))
		}
	}
	sort.Strings(keys)
	return keys
}
