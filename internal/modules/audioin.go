package modules

import (
	"encoding/json"
	"sync"

	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// HiddenAudioInType is the well-known, non-insertable module type name
// reserved for the audio input passthrough, grounded on
// dsp/core/audio_in.rs's WellKnownModule::HiddenAudioIn. It is not
// registered, so a declarative patch cannot insert it by type name, the
// same way the original never lets a patch insert it from JSON. No
// command in this repository (cmd/modularplay included) constructs one.
const HiddenAudioInType = "__audio_in"

// audioIn reads from a mutex-guarded poly.Signal the host writes every
// callback with the device's captured input frame, translated from the
// original's Arc<Mutex<PolyOutput>> into Go's sync.Mutex equivalent.
type audioIn struct {
	id string

	mu   sync.Mutex
	live poly.Signal
}

func newAudioIn(id string, sampleRate float64) (registry.Module, error) {
	return &audioIn{id: id}, nil
}

func (m *audioIn) ID() string   { return m.id }
func (m *audioIn) Type() string { return HiddenAudioInType }

// SetInput is called by the host's audio callback, never by a patch
// update, to publish the latest captured input frame.
func (m *audioIn) SetInput(s poly.Signal) {
	m.mu.Lock()
	m.live = s
	m.mu.Unlock()
}

func (m *audioIn) Update() {}
func (m *audioIn) Tick()   {}

func (m *audioIn) GetPoly(port string) poly.Signal {
	if port != "output" {
		return poly.Signal{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *audioIn) TryUpdateParams(json.RawMessage) error { return nil }
func (m *audioIn) Connect(registry.Graph)                {}
func (m *audioIn) OnPatchUpdate()                        {}
func (m *audioIn) DispatchMessage(json.RawMessage) error { return nil }
func (m *audioIn) GetState() json.RawMessage             { return nil }
