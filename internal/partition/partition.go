// Package partition implements the deterministic hash partitioning used to
// route entities to storage sub-paths (§4.G). The partitioner is a pure
// function of (id, partitionCount): the same inputs always yield the same
// partition, in the same process or across a fleet of processes sharing
// config.
package partition

import (
	"fmt"
	"hash/fnv"
)

// Partitioner assigns IDs to partition paths of the form "pNNN".
type Partitioner struct {
	count int
}

// New returns a Partitioner for the given partition count. count must be
// at least 1; the caller (the config manager) is responsible for fixing
// this value once at store creation and never changing it in place.
func New(count int) (*Partitioner, error) {
	if count < 1 {
		return nil, fmt.Errorf("partition: partitionCount must be >= 1, got %d", count)
	}
	return &Partitioner{count: count}, nil
}

// Count returns the fixed partition count this Partitioner was built with.
func (p *Partitioner) Count() int {
	return p.count
}

// Index returns the numeric partition bucket for id, in [0, count).
func (p *Partitioner) Index(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64() % uint64(p.count)
}

// Path returns the partition path ("p000", "p001", ...) for id.
func (p *Partitioner) Path(id string) string {
	return fmt.Sprintf("p%03d", p.Index(id))
}
