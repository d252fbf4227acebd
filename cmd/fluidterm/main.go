// Command fluidterm runs the fluid engine in a terminal. Mouse drags stir the
// fluid; the density field is drawn with half-block characters.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/TheFellow/stablefluid/pkg/config"
	"github.com/TheFellow/stablefluid/pkg/fluid"
	"github.com/TheFellow/stablefluid/pkg/interaction"
	"github.com/TheFellow/stablefluid/pkg/telemetry"
	"github.com/gdamore/tcell/v2"
)

var (
	configFlag  = flag.String("config", "", "YAML config file overlaid on the built-in defaults")
	backendFlag = flag.String("backend", "", "compute backend: cpu or opencl (default from config)")
	logFlag     = flag.String("log", "", "write logs to this file")
)

type command int

const (
	cmdQuit command = iota
	cmdReset
	cmdPause
)

type App struct {
	screen   tcell.Screen
	engine   *fluid.Engine
	tracker  *interaction.Tracker
	recorder *telemetry.Recorder
	output   *telemetry.OutputManager
	log      *slog.Logger
	tps      int
	paused   bool
}

func NewApp(cfg *config.Config, log *slog.Logger) (*App, error) {
	output, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, err
	}
	recorder := telemetry.NewRecorder(cfg.Derived.WindowTicks, output, log)

	engine, err := fluid.New(cfg.Engine(),
		fluid.WithLogger(log),
		fluid.WithObserver(recorder.Perf))
	if err != nil {
		output.Close()
		return nil, err
	}
	cleanup := func() {
		engine.Close()
		output.Close()
	}
	tracker, err := interaction.New(engine.Mailbox(), engine.Width(), engine.Height(), cfg.Tracker())
	if err != nil {
		cleanup()
		return nil, err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := screen.Init(); err != nil {
		cleanup()
		return nil, err
	}
	screen.EnableMouse()
	screen.HideCursor()

	w, h := screen.Size()
	tracker.Resize(float32(w), float32(2*h))

	return &App{
		screen:   screen,
		engine:   engine,
		tracker:  tracker,
		recorder: recorder,
		output:   output,
		log:      log,
		tps:      cfg.Window.TPS,
	}, nil
}

// pollInput owns the tracker. It runs on its own goroutine and writes the
// engine's mailbox directly; everything else is forwarded to the main loop.
func (a *App) pollInput(cmds chan<- command) {
	held := false
	for {
		ev := a.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			w, h := ev.Size()
			a.tracker.Resize(float32(w), float32(2*h))
			a.screen.Sync()
		case *tcell.EventMouse:
			x, y := ev.Position()
			// Each terminal row holds two grid rows.
			px, py := float32(x)+0.5, float32(2*y)+1
			if ev.Buttons()&tcell.Button1 != 0 {
				a.tracker.Sample(px, py, held)
				held = true
			} else if held {
				held = false
				a.tracker.End()
			}
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
				cmds <- cmdQuit
				return
			case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
				cmds <- cmdQuit
				return
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'r' || ev.Rune() == 'R'):
				cmds <- cmdReset
			case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
				cmds <- cmdPause
			}
		}
	}
}

func (a *App) Run() error {
	cmds := make(chan command, 8)
	go a.pollInput(cmds)

	ticker := time.NewTicker(time.Second / time.Duration(a.tps))
	defer ticker.Stop()

	for {
		select {
		case c := <-cmds:
			switch c {
			case cmdQuit:
				return nil
			case cmdReset:
				if err := a.engine.Reset(); err != nil {
					return err
				}
			case cmdPause:
				a.paused = !a.paused
			}
		case <-ticker.C:
			if !a.paused {
				err := a.engine.Step()
				if errors.Is(err, fluid.ErrClosed) {
					return err
				}
				if err := a.recorder.Record(err, a.engine.Stats()); err != nil {
					a.log.Warn("telemetry failed", "err", err)
				}
			}
			a.draw()
		}
	}
}

func toRGB(r, g, b float32) tcell.Color {
	c := func(v float32) int32 {
		return int32(min(max(v, 0), 1) * 255)
	}
	return tcell.NewRGBColor(c(r), c(g), c(b))
}

func (a *App) draw() {
	d := a.engine.Density()
	w, h := a.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	for y := 0; y < h; y++ {
		jTop := (2 * y) * d.NumY / (2 * h)
		jBot := (2*y + 1) * d.NumY / (2 * h)
		for x := 0; x < w; x++ {
			i := x * d.NumX / w
			tr, tg, tb, _ := d.Value(i, jTop)
			br, bg, bb, _ := d.Value(i, jBot)
			style := tcell.StyleDefault.
				Foreground(toRGB(tr, tg, tb)).
				Background(toRGB(br, bg, bb))
			a.screen.SetContent(x, y, '▀', nil, style)
		}
	}
	status := fmt.Sprintf(" tick %d  [drag] stir  [space] pause  [r] reset  [q] quit ", a.engine.Stats().Tick)
	for x, r := range []rune(status) {
		if x >= w {
			break
		}
		a.screen.SetContent(x, h-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
	a.screen.Show()
	a.recorder.Perf.RecordFrame()
}

func (a *App) Close() error {
	a.screen.Fini()
	return errors.Join(a.engine.Close(), a.output.Close())
}

func run() error {
	logOut := io.Discard
	if *logFlag != "" {
		f, err := os.Create(*logFlag)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := slog.New(slog.NewTextHandler(logOut, nil))

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *backendFlag != "" {
		cfg.Solver.Backend = *backendFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fluidterm: %v\n", err)
		os.Exit(1)
	}
}
