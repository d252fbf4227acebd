package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// pointer follows a single mouse or touch gesture. Only one gesture drives
// the tracker at a time; extra touches are ignored.
type pointer struct {
	touchID  ebiten.TouchID
	touching bool
	mouse    bool
	touchIDs []ebiten.TouchID
}

func (g *Game) handlePointer() {
	p := &g.pointer

	if !p.touching {
		switch {
		case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
			p.mouse = true
			x, y := ebiten.CursorPosition()
			g.tracker.Sample(float32(x), float32(y), false)
			return
		case p.mouse && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
			p.mouse = false
			g.tracker.End()
			return
		case p.mouse:
			x, y := ebiten.CursorPosition()
			g.tracker.Sample(float32(x), float32(y), true)
			return
		}
	}

	if p.touching {
		if inpututil.IsTouchJustReleased(p.touchID) {
			p.touching = false
			g.tracker.End()
			return
		}
		x, y := ebiten.TouchPosition(p.touchID)
		g.tracker.Sample(float32(x), float32(y), true)
		return
	}

	p.touchIDs = inpututil.AppendJustPressedTouchIDs(p.touchIDs[:0])
	if len(p.touchIDs) > 0 {
		p.touchID = p.touchIDs[0]
		p.touching = true
		x, y := ebiten.TouchPosition(p.touchID)
		g.tracker.Sample(float32(x), float32(y), false)
	}
}

func (g *Game) handleKeys() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyV) {
		g.view = (g.view + 1) % numViews
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		return g.engine.Reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}
