// Command modularscope runs a patch headlessly (no audio device) and
// renders one of its declared scope taps as a terminal waveform,
// redrawing as the graph runs. Grounded on
// _examples/valerio-go-jeebie's terminal backend
// (jeebie/backend/terminal/terminal.go): tcell.NewScreen/Init, a
// SetContent-based render loop, and a signal-driven Cleanup/Fini, all
// adapted from a framebuffer renderer to an oscilloscope trace.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/pflag"

	"github.com/cbegin/modularengine/internal/diff"
	"github.com/cbegin/modularengine/internal/engine"
	"github.com/cbegin/modularengine/internal/health"
	_ "github.com/cbegin/modularengine/internal/modules"
	"github.com/cbegin/modularengine/internal/patch"
	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/registry"
	_ "github.com/cbegin/modularengine/internal/sequencer"
)

const runChannels = 1 // headless: only the root's channel 0 is ever pulled

func main() {
	var (
		sampleRate = pflag.Int("sample-rate", 48000, "engine sample rate")
		patchPath  = pflag.String("patch", "", "path to a JSON or YAML patch description (required)")
		scopeID    = pflag.String("scope", "", "id of the scope to display (required, must be declared in the patch)")
		fps        = pflag.Int("fps", 30, "terminal redraw rate")
	)
	pflag.Parse()

	if strings.TrimSpace(*patchPath) == "" || strings.TrimSpace(*scopeID) == "" {
		fmt.Fprintln(os.Stderr, "usage: modularscope --patch <file> --scope <id> [--sample-rate N] [--fps N]")
		os.Exit(2)
	}

	desc, err := loadPatch(*patchPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading patch:", err)
		os.Exit(1)
	}

	rate := float64(*sampleRate)
	reg := registry.Default
	g, err := patch.New(reg, rate, health.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, "constructing patch graph:", err)
		os.Exit(1)
	}
	control, drv := engine.Wire(g)

	update, err := diff.Diff(reg, nil, desc, rate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "diffing patch:", err)
		os.Exit(1)
	}
	control.Send(engine.Command{PatchUpdate: update})
	control.Send(engine.Command{Start: &engine.Start{}})

	if _, ok := g.Scope(*scopeID); !ok {
		fmt.Fprintf(os.Stderr, "patch declares no scope %q\n", *scopeID)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "initializing terminal:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "initializing terminal:", err)
		os.Exit(1)
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorGreen))
	screen.Clear()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	quit := make(chan struct{})
	go pumpAudio(drv, rate, quit)
	go pumpKeys(screen, quit)

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	for {
		select {
		case <-sigc:
			close(quit)
			control.Send(engine.Command{Stop: &engine.Stop{}})
			return
		case <-quit:
			control.Send(engine.Command{Stop: &engine.Stop{}})
			return
		case <-ticker.C:
			scope, ok := g.Scope(*scopeID)
			if !ok {
				continue
			}
			render(screen, *scopeID, scope.Snapshot(), control.Health.Read())
		}
	}
}

func loadPatch(path string) (*patchfmt.Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return patchfmt.ParseYAML(data)
	default:
		return patchfmt.ParseJSON(data)
	}
}

// pumpAudio drives the graph at its declared sample rate with no real
// audio device attached, since this command only visualizes a scope tap
// and never opens a sound output itself.
func pumpAudio(drv *engine.Driver, sampleRate float64, quit chan struct{}) {
	const chunkFrames = 512
	buf := make([]float32, chunkFrames*runChannels)
	interval := time.Duration(float64(chunkFrames) / sampleRate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			drv.Callback(buf, chunkFrames, runChannels)
		}
	}
}

// pumpKeys watches for 'q' or Escape to quit, the same exit idiom
// jeebie's terminal backend uses for its Ctrl-C / quit action.
func pumpKeys(screen tcell.Screen, quit chan struct{}) {
	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				close(quit)
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		case nil:
			return
		}
	}
}

func render(screen tcell.Screen, scopeID string, samples []float64, h health.Snapshot) {
	screen.Clear()
	w, ht := screen.Size()
	if w < 4 || ht < 4 {
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	title := fmt.Sprintf(" scope: %s ", scopeID)
	for i, ch := range title {
		if i < w {
			screen.SetContent(i, 0, ch, nil, titleStyle)
		}
	}

	plotTop, plotHeight := 1, ht-3
	if plotHeight < 1 {
		plotHeight = 1
	}
	mid := plotTop + plotHeight/2
	axisStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for x := 0; x < w; x++ {
		screen.SetContent(x, mid, '-', nil, axisStyle)
	}

	traceStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	n := len(samples)
	for x := 0; x < w && n > 0; x++ {
		idx := x * n / w
		v := samples[idx] / 5.0 // ±5V modular convention -> roughly ±1
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		y := mid - int(v*float64(plotHeight)/2)
		if y < plotTop {
			y = plotTop
		}
		if y >= plotTop+plotHeight {
			y = plotTop + plotHeight - 1
		}
		screen.SetContent(x, y, '*', nil, traceStyle)
	}

	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorSilver)
	status := fmt.Sprintf(" modules=%d underruns=%d worst=%s  (q to quit) ",
		h.ModuleCount, h.Underruns, h.WorstCallback)
	for i, ch := range status {
		if i < w {
			screen.SetContent(i, ht-1, ch, nil, statusStyle)
		}
	}

	screen.Show()
}
