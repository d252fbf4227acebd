package fluid

import (
	"runtime"
	"sync"
)

// rangeFunc runs fn for every i in [start,end). Implementations return only
// after every call has finished, so each pass is a full barrier.
type rangeFunc func(start, end int, fn func(i int))

// parallelThreshold is the minimum row count worth splitting across workers.
const parallelThreshold = 16

// parallelRange executes fn for each i in [start,end). The range is split among
// available CPUs.
func parallelRange(start, end int, fn func(i int)) {
	total := end - start
	if total <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > total {
		workers = total
	}
	var wg sync.WaitGroup
	chunk := (total + workers - 1) / workers
	for w := 0; w < workers; w++ {
		s := start + w*chunk
		e := s + chunk
		if e > end {
			e = end
		}
		if s >= end {
			break
		}
		wg.Add(1)
		go func(ss, ee int) {
			for i := ss; i < ee; i++ {
				fn(i)
			}
			wg.Done()
		}(s, e)
	}
	wg.Wait()
}

// serialRange is the single-goroutine rangeFunc used for host-side reductions.
func serialRange(start, end int, fn func(i int)) {
	for i := start; i < end; i++ {
		fn(i)
	}
}

// workChunk is a contiguous row range handed to one worker.
type workChunk struct {
	start, end int
	fn         func(i int)
}

// workerPool keeps goroutines alive across passes so a tick does not spawn
// a fresh set of goroutines for every Jacobi iteration.
type workerPool struct {
	numWorkers int

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: numWorkers}
}

func (p *workerPool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			for i := chunk.start; i < chunk.end; i++ {
				chunk.fn(i)
			}
			p.doneChan <- struct{}{}
		}
	}
}

// parallelRange dispatches [start,end) to the pool and waits for every chunk.
// Small ranges and single-worker pools run on the calling goroutine.
func (p *workerPool) parallelRange(start, end int, fn func(i int)) {
	total := end - start
	if total <= 0 {
		return
	}
	if total < parallelThreshold || p.numWorkers == 1 {
		serialRange(start, end, fn)
		return
	}
	if !p.running {
		p.start()
	}

	chunkSize := (total + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		s := start + w*chunkSize
		e := min(s+chunkSize, end)
		if s >= e {
			continue
		}
		p.workChan <- workChunk{start: s, end: e, fn: fn}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
