// Package patchfmt implements the external declarative patch format
// (§6): the JSON/YAML shape of a patch description, cable references
// inside module parameters, and scope descriptions.
package patchfmt

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CableRef is a parameter's reference to another module's output port
// at a specific channel (or all channels when Channel is negative).
type CableRef struct {
	Module  string `json:"module" yaml:"module"`
	Port    string `json:"port" yaml:"port"`
	Channel int    `json:"channel" yaml:"channel"`
}

// Param is a module parameter that is either a cable reference or a
// scalar value, matching §6: `{ Cable: {...} }` or a bare number /
// `{ Value: n }`.
type Param struct {
	Cable *CableRef
	Value *float64
}

// IsCable reports whether this parameter names a cable rather than a
// literal value.
func (p Param) IsCable() bool { return p.Cable != nil }

// Default returns the literal value, or def if this parameter is a
// dangling/absent scalar.
func (p Param) Default(def float64) float64 {
	if p.Value != nil {
		return *p.Value
	}
	return def
}

type rawParam struct {
	Cable *CableRef `json:"Cable,omitempty" yaml:"Cable,omitempty"`
	Value *float64  `json:"Value,omitempty" yaml:"Value,omitempty"`
}

// UnmarshalJSON accepts a bare number, `{"Cable": {...}}`, or
// `{"Value": n}`.
func (p *Param) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		p.Value = &num
		return nil
	}
	var raw rawParam
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("patchfmt: malformed param: %w", err)
	}
	p.Cable = raw.Cable
	p.Value = raw.Value
	return nil
}

// MarshalJSON round-trips a Param back to its canonical shape.
func (p Param) MarshalJSON() ([]byte, error) {
	if p.Cable != nil {
		return json.Marshal(rawParam{Cable: p.Cable})
	}
	if p.Value != nil {
		return json.Marshal(*p.Value)
	}
	return json.Marshal(rawParam{})
}

// ModuleDesc is one module entry in a declarative patch description.
type ModuleDesc struct {
	ID           string          `json:"id" yaml:"id"`
	ModuleType   string          `json:"module_type" yaml:"module_type"`
	IDIsExplicit bool            `json:"id_is_explicit,omitempty" yaml:"id_is_explicit,omitempty"`
	Params       json.RawMessage `json:"params" yaml:"-"`
	ParamsYAML   map[string]any  `json:"-" yaml:"params"`
}

// RemapDesc is one id_is_explicit? rename entry applied before diffing.
type RemapDesc struct {
	OldID string `json:"old_id" yaml:"old_id"`
	NewID string `json:"new_id" yaml:"new_id"`
}

// ScopeDesc is a debug tap: a module id + port + channel copied into a
// control-thread-visible ring buffer.
type ScopeDesc struct {
	ID      string `json:"id" yaml:"id"`
	Module  string `json:"module" yaml:"module"`
	Port    string `json:"port" yaml:"port"`
	Channel int    `json:"channel" yaml:"channel"`
	Size    int    `json:"size" yaml:"size"`
}

// Description is a full declarative patch: `{ modules, module_id_remaps?,
// scopes }` per §6.
type Description struct {
	Modules        []ModuleDesc `json:"modules" yaml:"modules"`
	ModuleIDRemaps []RemapDesc  `json:"module_id_remaps,omitempty" yaml:"module_id_remaps,omitempty"`
	Scopes         []ScopeDesc  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// ParseJSON decodes a declarative patch description from JSON.
func ParseJSON(data []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("patchfmt: invalid JSON patch description: %w", err)
	}
	return &d, nil
}

// ParseYAML decodes a declarative patch description from YAML, then
// re-encodes each module's params map back to JSON so the rest of the
// pipeline (registry constructors, TryUpdateParams) only ever deals in
// one wire format internally.
func ParseYAML(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("patchfmt: invalid YAML patch description: %w", err)
	}
	for i, m := range d.Modules {
		if m.ParamsYAML == nil {
			continue
		}
		raw, err := json.Marshal(m.ParamsYAML)
		if err != nil {
			return nil, fmt.Errorf("patchfmt: re-encoding params for %q: %w", m.ID, err)
		}
		d.Modules[i].Params = raw
	}
	return &d, nil
}
