// Package envelope fits rectilinear Surface Range Envelopes from presence
// data and projects them onto query observations.
package envelope

import (
	"math"

	"github.com/rotisserie/eris"
)

// Kind describes the value domain of a variable.
type Kind int

// Variable kinds.
const (
	KindNumeric Kind = iota
	KindCategorical
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Variable is one named column of observations. Missing values are NaN.
type Variable struct {
	Name   string
	Kind   Kind
	Values []float64
	Levels []string // distinct labels of a categorical column, informational only
}

// Len returns the number of observations in the variable.
func (v Variable) Len() int { return len(v.Values) }

// Table is an ordered set of equally sized variables. Rows are observations.
type Table struct {
	Vars []Variable
}

// NewTable builds a table from variables, checking that all have the same length.
func NewTable(vars ...Variable) (*Table, error) {
	t := &Table{Vars: vars}
	if len(vars) == 0 {
		return t, nil
	}
	n := vars[0].Len()
	for _, v := range vars[1:] {
		if v.Len() != n {
			return nil, eris.Wrapf(ErrShapeMismatch,
				"envelope: variable %q has %d rows, %q has %d", v.Name, v.Len(), vars[0].Name, n)
		}
	}
	return t, nil
}

// Rows returns the number of observations, 0 for an empty table.
func (t *Table) Rows() int {
	if t == nil || len(t.Vars) == 0 {
		return 0
	}
	return t.Vars[0].Len()
}

// Names returns variable names in column order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Vars))
	for i, v := range t.Vars {
		names[i] = v.Name
	}
	return names
}

// Lookup returns the variable with the exact given name.
func (t *Table) Lookup(name string) (Variable, bool) {
	if t == nil {
		return Variable{}, false
	}
	for _, v := range t.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Response is a binary presence column. Values are 0, 1 or NaN (missing).
type Response struct {
	Name   string
	Values []float64
}

// Presence returns the indices of rows where the response equals 1.
// Missing rows are not presence rows.
func (r Response) Presence() []int {
	var idx []int
	for i, v := range r.Values {
		if v == 1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Interval is the tolerance range of one variable. Missing bounds are NaN.
type Interval struct {
	Variable string  `json:"variable" yaml:"variable"`
	Lower    float64 `json:"lower" yaml:"lower"`
	Upper    float64 `json:"upper" yaml:"upper"`
}

// Missing reports whether either bound is undefined.
func (iv Interval) Missing() bool {
	return math.IsNaN(iv.Lower) || math.IsNaN(iv.Upper)
}

// Contains tests lower <= v <= upper. The result is Unknown when v or a
// bound is missing.
func (iv Interval) Contains(v float64) Membership {
	if iv.Missing() || math.IsNaN(v) {
		return Unknown
	}
	if v >= iv.Lower && v <= iv.Upper {
		return Inside
	}
	return Outside
}

// Envelope is the fitted interval table of one response, one interval per
// explanatory variable in column order.
type Envelope struct {
	Response  string     `json:"response" yaml:"response"`
	Quant     float64    `json:"quant" yaml:"quant"`
	Presences int        `json:"presences" yaml:"presences"`
	Intervals []Interval `json:"intervals" yaml:"intervals"`
}

// Variables returns the envelope's variable names in order.
func (e *Envelope) Variables() []string {
	names := make([]string, len(e.Intervals))
	for i, iv := range e.Intervals {
		names[i] = iv.Variable
	}
	return names
}

// Membership is the ternary outcome of an envelope test.
type Membership int8

// Membership values. Outside and Inside encode as 0 and 1.
const (
	Unknown Membership = -1
	Outside Membership = 0
	Inside  Membership = 1
)

// And combines two memberships. Unknown is absorbing: a missing comparison
// anywhere leaves the row's result missing.
func (m Membership) And(o Membership) Membership {
	if m == Unknown || o == Unknown {
		return Unknown
	}
	if m == Inside && o == Inside {
		return Inside
	}
	return Outside
}

// String renders the membership as "1", "0" or "NA".
func (m Membership) String() string {
	switch m {
	case Inside:
		return "1"
	case Outside:
		return "0"
	default:
		return "NA"
	}
}

// Prediction holds the projected membership of every query row for one response.
type Prediction struct {
	Response string
	Values   []Membership
}

// PredictionTable is the set of predictions for all responses, in response order.
type PredictionTable struct {
	Rows        int
	Predictions []Prediction
}

// Responses returns the response names in order.
func (p *PredictionTable) Responses() []string {
	names := make([]string, len(p.Predictions))
	for i, pr := range p.Predictions {
		names[i] = pr.Response
	}
	return names
}
