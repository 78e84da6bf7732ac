package api

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// Column is one named numeric column. Null cells are missing.
type Column struct {
	Name   string
	Values []*float64
}

// Columns decodes a JSON object of name -> array, keeping key order.
// Envelope intervals follow column order so a plain map would lose it.
type Columns []Column

// UnmarshalJSON implements json.Unmarshaler.
func (c *Columns) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "api: read columns")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.Wrap(envelope.ErrInvalidParameter, "api: columns must be an object of arrays")
	}

	var cols Columns
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "api: read column name")
		}
		name, _ := tok.(string)

		var values []*float64
		if err := dec.Decode(&values); err != nil {
			return eris.Wrapf(envelope.ErrInvalidParameter, "api: column %q must be an array of numbers or null", name)
		}
		cols = append(cols, Column{Name: name, Values: values})
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "api: read columns")
	}

	*c = cols
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		values, err := json.Marshal(col.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func floats(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

// Table converts the columns into a numeric observation table.
func (c Columns) Table() (*envelope.Table, error) {
	vars := make([]envelope.Variable, len(c))
	for i, col := range c {
		vars[i] = envelope.Variable{
			Name:   envelope.NormalizeName(col.Name),
			Kind:   envelope.KindNumeric,
			Values: floats(col.Values),
		}
	}
	return envelope.NewTable(vars...)
}

// Responses converts the columns into presence/absence responses.
func (c Columns) Responses() []envelope.Response {
	out := make([]envelope.Response, len(c))
	for i, col := range c {
		out[i] = envelope.Response{Name: envelope.NormalizeName(col.Name), Values: floats(col.Values)}
	}
	return out
}
