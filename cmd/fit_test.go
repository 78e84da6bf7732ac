package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/output"
)

func TestRunFit_JSON(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)

	var buf bytes.Buffer
	err := runFit(context.Background(), &buf, fitParams{
		In:     inputOptions{Input: input, Responses: []string{"quercus", "pinus"}, Ignore: []string{"site"}},
		Format: "json",
	})
	require.NoError(t, err)

	var got []output.EnvelopeJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "quercus", got[0].Response)
	assert.Equal(t, 3, got[0].Presences)
	require.Len(t, got[0].Bounds, 2)
	assert.Equal(t, "temp", got[0].Bounds[0].Variable)
	assert.Equal(t, 10.0, *got[0].Bounds[0].Lower)
	assert.Equal(t, 14.0, *got[0].Bounds[0].Upper)
	assert.Equal(t, 100.0, *got[0].Bounds[1].Lower)
	assert.Equal(t, 300.0, *got[0].Bounds[1].Upper)

	// The NA pinus row is not a presence.
	assert.Equal(t, 2, got[1].Presences)
	assert.Equal(t, 16.0, *got[1].Bounds[0].Lower)
	assert.Equal(t, 18.0, *got[1].Bounds[0].Upper)
}

func TestRunFit_YAMLFileFromExtension(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)
	out := filepath.Join(t.TempDir(), "bounds.yaml")

	err := runFit(context.Background(), &bytes.Buffer{}, fitParams{
		In:     inputOptions{Input: input, Responses: []string{"quercus"}, Variables: []string{"temp"}},
		Quant:  0.25,
		Output: out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []output.EnvelopeJSON
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.InDelta(t, 0.25, got[0].Quant, 1e-12)
	require.Len(t, got[0].Bounds, 1)
	// temp presences 10, 12, 14: Q(0.25) = 11, Q(0.75) = 13.
	assert.InDelta(t, 11.0, *got[0].Bounds[0].Lower, 1e-9)
	assert.InDelta(t, 13.0, *got[0].Bounds[0].Upper, 1e-9)
}

func TestRunFit_DefaultTable(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)

	var buf bytes.Buffer
	err := runFit(context.Background(), &buf, fitParams{
		In: inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "RESPONSE")
	assert.Contains(t, buf.String(), "quercus")
}

func TestRunFit_Errors(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)

	tests := []struct {
		name   string
		params fitParams
		want   error
		msg    string
	}{
		{
			name:   "no input",
			params: fitParams{In: inputOptions{Responses: []string{"quercus"}}},
			msg:    "--input is required",
		},
		{
			name:   "no response",
			params: fitParams{In: inputOptions{Input: input}},
			msg:    "--response is required",
		},
		{
			name:   "categorical column",
			params: fitParams{In: inputOptions{Input: input, Responses: []string{"quercus"}}},
			want:   envelope.ErrUnsupportedVariableType,
		},
		{
			name:   "bad quant",
			params: fitParams{In: inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}}, Quant: 0.5},
			want:   envelope.ErrInvalidParameter,
		},
		{
			name:   "unknown response",
			params: fitParams{In: inputOptions{Input: input, Responses: []string{"abies"}, Ignore: []string{"site"}}},
			want:   envelope.ErrVariableMismatch,
		},
		{
			name: "bad format",
			params: fitParams{
				In:     inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}},
				Format: "csv",
			},
			msg: "bounds format",
		},
		{
			name: "grid needs shapefile",
			params: fitParams{
				In: inputOptions{Input: input, Responses: []string{"quercus"}, Grid: t.TempDir()},
			},
			msg: "point shapefile",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runFit(context.Background(), &bytes.Buffer{}, tt.params)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, eris.Is(err, tt.want), "got %v", err)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestBoundsFormat(t *testing.T) {
	useDefaultConfig(t)

	f, err := boundsFormat("", "")
	require.NoError(t, err)
	assert.Equal(t, output.FormatTable, f)

	f, err = boundsFormat("out.yml", "")
	require.NoError(t, err)
	assert.Equal(t, output.FormatYAML, f)

	f, err = boundsFormat("out.yml", "json")
	require.NoError(t, err)
	assert.Equal(t, output.FormatJSON, f)

	_, err = boundsFormat("", "shp")
	require.Error(t, err)
}
