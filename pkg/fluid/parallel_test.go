package fluid

import (
	"sync/atomic"
	"testing"
)

func TestWorkerPoolVisitsEveryIndexOnce(t *testing.T) {
	p := newWorkerPool(4)
	defer p.stop()

	counts := make([]int32, 1000)
	for pass := 0; pass < 3; pass++ {
		p.parallelRange(0, len(counts), func(i int) {
			atomic.AddInt32(&counts[i], 1)
		})
	}
	for i, c := range counts {
		if c != 3 {
			t.Fatalf("index %d visited %d times, want 3", i, c)
		}
	}
}

func TestWorkerPoolRestart(t *testing.T) {
	p := newWorkerPool(2)
	var n atomic.Int32
	p.parallelRange(0, 64, func(int) { n.Add(1) })
	p.stop()
	p.parallelRange(0, 64, func(int) { n.Add(1) })
	p.stop()
	if got := n.Load(); got != 128 {
		t.Errorf("visited %d indices, want 128", got)
	}
}

func TestParallelRangeSmall(t *testing.T) {
	var n atomic.Int32
	parallelRange(3, 5, func(int) { n.Add(1) })
	parallelRange(5, 5, func(int) { n.Add(1) })
	if got := n.Load(); got != 2 {
		t.Errorf("visited %d indices, want 2", got)
	}
}
