package envelope

import (
	"github.com/rotisserie/eris"
)

// Project classifies every query row against env. A row is Inside when
// lower <= value <= upper holds for every variable of the envelope, Outside
// when any test fails, and Unknown when any tested value or bound is
// missing. Query columns not in the envelope are ignored.
func Project(query *Table, env *Envelope) (*Prediction, error) {
	if env == nil {
		return nil, eris.Wrap(ErrInvalidParameter, "envelope: nil envelope")
	}
	if query == nil {
		return nil, eris.Wrap(ErrVariableMismatch, "envelope: nil query table")
	}
	if err := CheckNames(&Table{Vars: intervalVars(env)}); err != nil {
		return nil, err
	}

	resolved, err := ResolveVariables(query, env.Variables())
	if err != nil {
		return nil, err
	}
	if err := CheckNumeric(resolved); err != nil {
		return nil, err
	}

	rows := query.Rows()
	for _, v := range resolved.Vars {
		if v.Len() != rows {
			return nil, eris.Wrapf(ErrShapeMismatch,
				"envelope: query variable %q has %d rows, expected %d", v.Name, v.Len(), rows)
		}
	}

	out := make([]Membership, rows)
	for r := range out {
		out[r] = Inside
	}
	for i, iv := range env.Intervals {
		values := resolved.Vars[i].Values
		for r := range out {
			out[r] = out[r].And(iv.Contains(values[r]))
		}
	}

	return &Prediction{Response: env.Response, Values: out}, nil
}

func intervalVars(env *Envelope) []Variable {
	vars := make([]Variable, len(env.Intervals))
	for i, iv := range env.Intervals {
		vars[i] = Variable{Name: iv.Variable}
	}
	return vars
}
