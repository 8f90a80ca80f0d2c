package patchfmt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamUnmarshalBareNumber(t *testing.T) {
	var p Param
	require.NoError(t, json.Unmarshal([]byte(`440`), &p))
	assert.False(t, p.IsCable())
	assert.Equal(t, 440.0, p.Default(0))
}

func TestParamUnmarshalCable(t *testing.T) {
	var p Param
	require.NoError(t, json.Unmarshal([]byte(`{"Cable":{"module":"osc1","port":"out","channel":0}}`), &p))
	require.True(t, p.IsCable())
	assert.Equal(t, "osc1", p.Cable.Module)
	assert.Equal(t, "out", p.Cable.Port)
}

func TestParamUnmarshalExplicitValue(t *testing.T) {
	var p Param
	require.NoError(t, json.Unmarshal([]byte(`{"Value":2.5}`), &p))
	assert.False(t, p.IsCable())
	assert.Equal(t, 2.5, p.Default(0))
}

func TestParamMarshalRoundTrip(t *testing.T) {
	v := 3.0
	p := Param{Value: &v}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	var p2 Param
	require.NoError(t, json.Unmarshal(data, &p2))
	assert.Equal(t, 3.0, p2.Default(0))
}

func TestParseJSONDescription(t *testing.T) {
	src := `{
		"modules": [
			{"id": "osc1", "module_type": "sine", "params": {"freq": 440}}
		],
		"scopes": [
			{"id": "s1", "module": "osc1", "port": "out", "size": 512}
		]
	}`
	d, err := ParseJSON([]byte(src))
	require.NoError(t, err)
	require.Len(t, d.Modules, 1)
	assert.Equal(t, "osc1", d.Modules[0].ID)
	assert.Equal(t, "sine", d.Modules[0].ModuleType)
	require.Len(t, d.Scopes, 1)
	assert.Equal(t, "s1", d.Scopes[0].ID)
}

func TestParseYAMLReencodesParamsToJSON(t *testing.T) {
	src := "modules:\n  - id: osc1\n    module_type: sine\n    params:\n      freq: 440\n"
	d, err := ParseYAML([]byte(src))
	require.NoError(t, err)
	require.Len(t, d.Modules, 1)
	var params map[string]Param
	require.NoError(t, json.Unmarshal(d.Modules[0].Params, &params))
	assert.Equal(t, 440.0, params["freq"].Default(0))
}
