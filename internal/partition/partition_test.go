package partition

import (
	"fmt"
	"testing"
)

func TestPartitionIsPure(t *testing.T) {
	p1, _ := New(10)
	p2, _ := New(10)
	for _, id := range []string{"a", "vector-42", "n-0001"} {
		if p1.Path(id) != p2.Path(id) {
			t.Fatalf("partition(%q) not pure across instances", id)
		}
		if p1.Path(id) != p1.Path(id) {
			t.Fatalf("partition(%q) not pure across calls", id)
		}
	}
}

func TestPartitionDistributionWithinSkewBound(t *testing.T) {
	const n = 1000
	const count = 16
	p, _ := New(count)

	buckets := make(map[uint64]int)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("random-id-%d", i)
		buckets[p.Index(id)]++
	}

	max := 2 * n / count
	for b, c := range buckets {
		if c > max {
			t.Fatalf("bucket %d holds %d items, exceeds 2N/partitionCount=%d", b, c, max)
		}
	}
}

func TestInvalidPartitionCount(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for partitionCount=0")
	}
}

func TestPathFormat(t *testing.T) {
	p, _ := New(1000)
	path := p.Path("x")
	if len(path) != 4 || path[0] != 'p' {
		t.Fatalf("unexpected path format: %s", path)
	}
}
