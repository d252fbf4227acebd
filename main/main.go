package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/TheFellow/stablefluid/pkg/config"
	"github.com/TheFellow/stablefluid/pkg/fluid"
	"github.com/TheFellow/stablefluid/pkg/interaction"
	"github.com/TheFellow/stablefluid/pkg/telemetry"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

type viewMode int

const (
	viewDensity viewMode = iota
	viewSpeed
	numViews
)

func (v viewMode) String() string {
	if v == viewSpeed {
		return "speed"
	}
	return "density"
}

type Game struct {
	engine   *fluid.Engine
	tracker  *interaction.Tracker
	recorder *telemetry.Recorder
	output   *telemetry.OutputManager
	log      *slog.Logger

	img    *ebiten.Image
	pixels []byte

	pointer pointer
	view    viewMode
	paused  bool
	debug   bool

	viewW, viewH int
}

func NewGame(cfg *config.Config, log *slog.Logger) (*Game, error) {
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
	tracker, err := interaction.New(engine.Mailbox(), engine.Width(), engine.Height(), cfg.Tracker())
	if err != nil {
		engine.Close()
		output.Close()
		return nil, err
	}
	tracker.Resize(float32(cfg.Window.Width), float32(cfg.Window.Height))

	return &Game{
		engine:   engine,
		tracker:  tracker,
		recorder: recorder,
		output:   output,
		log:      log,
		img:      ebiten.NewImage(engine.Width(), engine.Height()),
		pixels:   make([]byte, 4*engine.Width()*engine.Height()),
		debug:    *debugFlag,
		viewW:    cfg.Window.Width,
		viewH:    cfg.Window.Height,
	}, nil
}

func (g *Game) Update() error {
	if err := g.handleKeys(); err != nil {
		return err
	}
	g.handlePointer()
	if g.paused {
		return nil
	}

	err := g.engine.Step()
	if errors.Is(err, fluid.ErrClosed) {
		return err
	}
	if err := g.recorder.Record(err, g.engine.Stats()); err != nil {
		g.log.Warn("telemetry write failed", "err", err)
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.recorder.Perf.RecordFrame()

	switch g.view {
	case viewSpeed:
		fillSpeedPixels(g.pixels, g.engine.VelocityMagnitude())
	default:
		g.engine.Density().RGBA(g.pixels)
	}
	g.img.WritePixels(g.pixels)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(
		float64(screen.Bounds().Dx())/float64(g.engine.Width()),
		float64(screen.Bounds().Dy())/float64(g.engine.Height()))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(g.img, op)

	if g.debug {
		st := g.engine.Stats()
		msg := fmt.Sprintf("FluidSim %dx%d [%s]\nFPS: %0.2f TPS: %0.2f\ntick %d div %.3g -> %.3g\nmax speed %.3g",
			g.engine.Width(), g.engine.Height(), g.view,
			ebiten.ActualFPS(), ebiten.ActualTPS(),
			st.Tick, st.DivergenceBefore, st.DivergenceAfter, st.MaxSpeed)
		if g.paused {
			msg += "\npaused"
		}
		ebitenutil.DebugPrint(screen, msg)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.viewW || outsideHeight != g.viewH {
		g.viewW, g.viewH = outsideWidth, outsideHeight
		g.tracker.Resize(float32(outsideWidth), float32(outsideHeight))
	}
	return outsideWidth, outsideHeight
}

func (g *Game) Close() error {
	return errors.Join(g.engine.Close(), g.output.Close())
}

func run(log *slog.Logger) error {
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *backendFlag != "" {
		cfg.Solver.Backend = *backendFlag
	}
	if *telemetryDirFlag != "" {
		cfg.Telemetry.OutputDir = *telemetryDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *cpuProfileFlag != "" {
		stop, err := startCPUProfile(*cpuProfileFlag)
		if err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer stop()
	}

	game, err := NewGame(cfg, log)
	if err != nil {
		return err
	}
	defer game.Close()

	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle("FluidSim")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.Window.TPS)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fluidsim failed", "err", err)
		os.Exit(1)
	}
}
