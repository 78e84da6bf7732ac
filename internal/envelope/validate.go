package envelope

import (
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ValidateQuant checks that the trim fraction lies in [0, 0.5).
func ValidateQuant(quant float64) error {
	if math.IsNaN(quant) || quant < 0 || quant >= 0.5 {
		return eris.Wrapf(ErrInvalidParameter, "envelope: quant must be in [0, 0.5), got %v", quant)
	}
	return nil
}

// CheckShape verifies that every response has as many rows as the
// explanatory table and only holds 0, 1 or missing values.
func CheckShape(obs *Table, responses ...Response) error {
	rows := obs.Rows()
	for _, r := range responses {
		if len(r.Values) != rows {
			return eris.Wrapf(ErrShapeMismatch,
				"envelope: response %q has %d rows, explanatory data has %d", r.Name, len(r.Values), rows)
		}
		for i, v := range r.Values {
			if !math.IsNaN(v) && v != 0 && v != 1 {
				return eris.Wrapf(ErrInvalidParameter,
					"envelope: response %q row %d: value %v is not 0, 1 or missing", r.Name, i, v)
			}
		}
	}
	return nil
}

// CheckNumeric rejects categorical variables; the envelope test is only
// defined over ordered numeric domains.
func CheckNumeric(t *Table) error {
	if t == nil {
		return nil
	}
	for _, v := range t.Vars {
		if v.Kind != KindNumeric {
			return eris.Wrapf(ErrUnsupportedVariableType,
				"envelope: variable %q is %s", v.Name, v.Kind)
		}
	}
	return nil
}

// NormalizeName returns the canonical (NFC) form of a variable name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// CheckNames rejects tables whose variable names collide after Unicode
// normalization and case folding.
func CheckNames(t *Table) error {
	if t == nil {
		return nil
	}
	fold := cases.Fold()
	seen := make(map[string]string, len(t.Vars))
	for _, v := range t.Vars {
		key := fold.String(NormalizeName(v.Name))
		if prev, ok := seen[key]; ok {
			return eris.Wrapf(ErrVariableOrderConflict,
				"envelope: variables %q and %q are ambiguous", prev, v.Name)
		}
		seen[key] = v.Name
	}
	return nil
}

// ResolveVariables subsets and reorders the query's columns to match names.
// Every name must be present in the query.
func ResolveVariables(query *Table, names []string) (*Table, error) {
	if err := CheckNames(query); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(query.Vars))
	for i, v := range query.Vars {
		index[NormalizeName(v.Name)] = i
	}

	var missing []string
	out := &Table{Vars: make([]Variable, 0, len(names))}
	for _, name := range names {
		i, ok := index[NormalizeName(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out.Vars = append(out.Vars, query.Vars[i])
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrVariableMismatch, "envelope: query is missing variables %q", missing)
	}
	return out, nil
}
