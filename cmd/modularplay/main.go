// Command modularplay loads a declarative patch description and plays
// it live: it constructs the patch graph, diffs the description against
// an empty previous patch, applies the resulting update, and streams
// the root module's output through the device's audio output. Grounded
// on cmd/play_mml/main.go's flag-parse -> build -> play -> watch shape,
// with spf13/pflag replacing the standard flag package and
// charmbracelet/log replacing plain log.Printf for status output.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	charmlog "github.com/charmbracelet/log"

	"github.com/cbegin/modularengine/internal/audio"
	"github.com/cbegin/modularengine/internal/diff"
	"github.com/cbegin/modularengine/internal/engine"
	"github.com/cbegin/modularengine/internal/health"
	_ "github.com/cbegin/modularengine/internal/modules"
	"github.com/cbegin/modularengine/internal/patch"
	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/record"
	"github.com/cbegin/modularengine/internal/registry"
	_ "github.com/cbegin/modularengine/internal/sequencer"
)

const deviceChannels = 2

func main() {
	var (
		sampleRate = pflag.Int("sample-rate", 48000, "audio output sample rate")
		patchPath  = pflag.String("patch", "", "path to a JSON or YAML patch description (required)")
		recordPath = pflag.String("record", "", "optional WAV file path to record the session to")
		volume     = pflag.Float64("volume", 1.0, "master output volume scalar")
		watch      = pflag.Duration("watch-interval", 2*time.Second, "health counter reporting interval")
	)
	pflag.Parse()

	if strings.TrimSpace(*patchPath) == "" {
		charmlog.Fatal("missing required flag", "flag", "--patch")
	}

	desc, err := loadPatch(*patchPath)
	if err != nil {
		charmlog.Fatal("loading patch", "err", err)
	}

	rate := float64(*sampleRate)
	run(desc, rate, *volume, *recordPath, *watch)
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

// driverSource adapts engine.Driver's pull-based Callback to
// internal/audio's push-style SampleSource, matching how the teacher's
// wavetable/chiptune engines expose a Process(dst) method for the
// stream reader to call.
type driverSource struct {
	driver *engine.Driver
	volume float32
}

func (s *driverSource) Process(dst []float32) {
	frames := len(dst) / deviceChannels
	s.driver.Callback(dst, frames, deviceChannels)
	// Volume is applied after the driver's recorder tee, so a -record
	// capture holds the patch's raw output regardless of -volume.
	if s.volume != 1 {
		for i := range dst {
			dst[i] *= s.volume
		}
	}
}

func run(desc *patchfmt.Description, sampleRate, volume float64, recordPath string, watchInterval time.Duration) *engine.Control {
	reg := registry.Default

	g, err := patch.New(reg, sampleRate, health.New())
	if err != nil {
		charmlog.Fatal("constructing patch graph", "err", err)
	}

	control, drv := engine.Wire(g)

	update, err := diff.Diff(reg, nil, desc, sampleRate)
	if err != nil {
		charmlog.Fatal("diffing initial patch", "err", err)
	}
	if !control.Send(engine.Command{PatchUpdate: update}) {
		charmlog.Fatal("command queue rejected initial patch update")
	}
	if !control.Send(engine.Command{Start: &engine.Start{}}) {
		charmlog.Fatal("command queue rejected start command")
	}

	var tee *record.Tee
	var writer *record.Writer
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			charmlog.Fatal("creating recording file", "path", recordPath, "err", err)
		}
		tee = record.NewTee()
		writer, err = record.NewWriter(tee, f, int(sampleRate), deviceChannels)
		if err != nil {
			charmlog.Fatal("starting WAV writer", "err", err)
		}
		drv.SetRecorder(tee)
		go writer.Run()
		charmlog.Info("recording", "path", recordPath)
	}

	player, err := audio.NewPlayer(int(sampleRate), &driverSource{driver: drv, volume: float32(volume)})
	if err != nil {
		charmlog.Fatal("opening audio device", "err", err)
	}
	player.Play()
	charmlog.Info("playing", "sample_rate", sampleRate, "modules", len(g.Modules()))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigc:
			charmlog.Info("shutting down")
			control.Send(engine.Command{Stop: &engine.Stop{}})
			player.Stop()
			if writer != nil {
				if err := writer.Stop(); err != nil {
					charmlog.Error("finalizing recording", "err", err)
				}
			}
			return control
		case <-ticker.C:
			for _, e := range control.DrainErrors() {
				charmlog.Warn("audio error", "err", e.Error())
			}
			control.DrainGarbage()
			s := control.Health.Read()
			charmlog.Debug("health",
				"last_callback", s.LastCallback,
				"worst_callback", s.WorstCallback,
				"underruns", s.Underruns,
				"max_drain_depth", s.MaxDrainDepth,
				"modules", s.ModuleCount,
			)
			if s.LastError != "" {
				charmlog.Warn("last audio error", "msg", s.LastError)
			}
		}
	}
}
