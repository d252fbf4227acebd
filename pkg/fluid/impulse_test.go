package fluid

import (
	"sync"
	"testing"
)

func TestMailboxLastWriterWins(t *testing.T) {
	m := NewMailbox(Impulse{Timestep: 0.1})
	m.Store(Impulse{X: 0.25, AddDensity: true})
	m.Store(Impulse{X: 0.75})

	got := m.Load()
	if got.X != 0.75 || got.AddDensity {
		t.Errorf("Load() = %+v, want the second impulse only", got)
	}
}

func TestMailboxLoadReturnsCopy(t *testing.T) {
	m := NewMailbox(Impulse{Radius: 3})
	imp := m.Load()
	imp.Radius = 9
	if got := m.Load().Radius; got != 3 {
		t.Errorf("mailbox radius = %f after mutating a loaded copy, want 3", got)
	}
}

func TestMailboxConcurrentUpdate(t *testing.T) {
	m := NewMailbox(Impulse{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Update(func(imp *Impulse) { imp.DX++ })
			}
		}()
	}
	wg.Wait()
	if got := m.Load().DX; got != 800 {
		t.Errorf("DX = %f, want 800", got)
	}
}
