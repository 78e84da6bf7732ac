package output

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// BoundJSON is one interval with null for missing bounds.
type BoundJSON struct {
	Variable string   `json:"variable" yaml:"variable"`
	Lower    *float64 `json:"lower" yaml:"lower"`
	Upper    *float64 `json:"upper" yaml:"upper"`
}

// EnvelopeJSON is an envelope in serializable form.
type EnvelopeJSON struct {
	Response  string      `json:"response" yaml:"response"`
	Quant     float64     `json:"quant" yaml:"quant"`
	Presences int         `json:"presences" yaml:"presences"`
	Bounds    []BoundJSON `json:"bounds" yaml:"bounds"`
}

// EnvelopesDTO converts envelopes for JSON or YAML encoding. NaN bounds
// cannot be encoded as JSON numbers so they become null.
func EnvelopesDTO(envs []*envelope.Envelope) []EnvelopeJSON {
	out := make([]EnvelopeJSON, 0, len(envs))
	for _, e := range envs {
		if e == nil {
			continue
		}
		bounds := make([]BoundJSON, len(e.Intervals))
		for i, iv := range e.Intervals {
			bounds[i] = BoundJSON{Variable: iv.Variable, Lower: floatPtr(iv.Lower), Upper: floatPtr(iv.Upper)}
		}
		out = append(out, EnvelopeJSON{
			Response:  e.Response,
			Quant:     e.Quant,
			Presences: e.Presences,
			Bounds:    bounds,
		})
	}
	return out
}

// WriteBounds renders envelopes as yaml, json or a terminal table.
func WriteBounds(w io.Writer, envs []*envelope.Envelope, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(EnvelopesDTO(envs)); err != nil {
			return eris.Wrap(err, "output: encode bounds yaml")
		}
		return eris.Wrap(enc.Close(), "output: close yaml encoder")
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(EnvelopesDTO(envs)), "output: encode bounds json")
	case FormatTable, "":
		RenderBounds(w, envs)
		return nil
	default:
		return eris.Errorf("output: format %q cannot hold bounds", format)
	}
}

// RenderBounds prints one row per response and variable.
func RenderBounds(w io.Writer, envs []*envelope.Envelope) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Response", "Variable", "Lower", "Upper", "Presences", "Quant"})

	for _, e := range envs {
		if e == nil {
			continue
		}
		for _, iv := range e.Intervals {
			t.AppendRow(table.Row{
				e.Response,
				iv.Variable,
				boundString(iv.Lower),
				boundString(iv.Upper),
				e.Presences,
				e.Quant,
			})
		}
		t.AppendSeparator()
	}

	t.Render()
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func boundString(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
