// Package source normalizes tabular files, raster grids, point geometry and
// database queries into the observation tables consumed by the envelope core.
package source

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// ObservationSource loads observations from one container type.
type ObservationSource interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Dataset is the container-independent result of a load. Responses is empty
// for pure query sources.
type Dataset struct {
	Table     *envelope.Table
	Responses []envelope.Response
	Shape     Shape
}

// ShapeKind names the container layout a dataset came from.
type ShapeKind string

// Shape kinds.
const (
	ShapeTabular ShapeKind = "tabular"
	ShapePoints  ShapeKind = "points"
	ShapeGrid    ShapeKind = "grid"
)

// Shape carries what an assembler needs to rebuild the caller's container.
type Shape interface {
	Kind() ShapeKind
}

// TabularShape is the shape of row-oriented files and query results.
type TabularShape struct{}

// Kind implements Shape.
func (TabularShape) Kind() ShapeKind { return ShapeTabular }

// PointShape records the location of every row.
type PointShape struct {
	Points []*geom.Point
}

// Kind implements Shape.
func (PointShape) Kind() ShapeKind { return ShapePoints }

// GridShape records the raster geometry; rows are cells in row-major order
// from the top-left corner. Mask is true where every layer has data.
type GridShape struct {
	Header GridHeader
	Mask   []bool
}

// Kind implements Shape.
func (GridShape) Kind() ShapeKind { return ShapeGrid }

// DefaultMissingTokens are the cell values read as missing.
var DefaultMissingTokens = []string{"", "NA", "NaN", "null"}

// Options selects columns when turning records into a dataset.
type Options struct {
	// ResponseColumns are parsed as 0/1 responses, in the given order.
	ResponseColumns []string
	// VariableColumns restricts the explanatory variables; empty means all
	// remaining columns.
	VariableColumns []string
	// IgnoreColumns are dropped (identifiers, coordinates, ...).
	IgnoreColumns []string
	// MissingTokens override DefaultMissingTokens when non-nil.
	MissingTokens []string
	// Query is the SELECT statement for database sources.
	Query string
	// Sheet names the XLSX sheet; empty means the first sheet.
	Sheet string
	// Delimiter overrides the CSV separator.
	Delimiter rune
}

// nullCell marks a database NULL, always read as missing.
const nullCell = "\x00null"

func (o Options) missing() map[string]bool {
	tokens := o.MissingTokens
	if tokens == nil {
		tokens = DefaultMissingTokens
	}
	m := make(map[string]bool, len(tokens)+1)
	for _, t := range tokens {
		m[strings.TrimSpace(t)] = true
	}
	m[nullCell] = true
	return m
}

// buildDataset converts string records with a header into a dataset.
// Columns with any non-missing cell that fails to parse as a number are
// kept as categorical variables so that validation can reject them.
func buildDataset(header []string, records [][]string, opts Options) (*Dataset, error) {
	names := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		names[i] = envelope.NormalizeName(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[names[i]]; dup {
			return nil, eris.Wrapf(envelope.ErrVariableOrderConflict, "source: duplicate column %q", names[i])
		}
		index[names[i]] = i
	}

	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, eris.Wrapf(envelope.ErrShapeMismatch,
				"source: record %d has %d fields, header has %d", i+1, len(rec), len(header))
		}
	}

	missing := opts.missing()
	column := func(i int) []string {
		col := make([]string, len(records))
		for r, rec := range records {
			col[r] = strings.TrimSpace(rec[i])
		}
		return col
	}

	skip := make(map[string]bool)
	for _, c := range opts.IgnoreColumns {
		skip[envelope.NormalizeName(c)] = true
	}

	ds := &Dataset{Shape: TabularShape{}}
	for _, name := range opts.ResponseColumns {
		name = envelope.NormalizeName(name)
		i, ok := index[name]
		if !ok {
			return nil, eris.Wrapf(envelope.ErrVariableMismatch, "source: response column %q not found", name)
		}
		values, err := parseResponse(name, column(i), missing)
		if err != nil {
			return nil, err
		}
		ds.Responses = append(ds.Responses, envelope.Response{Name: name, Values: values})
		skip[name] = true
	}

	var selected []string
	if len(opts.VariableColumns) > 0 {
		for _, name := range opts.VariableColumns {
			name = envelope.NormalizeName(name)
			if _, ok := index[name]; !ok {
				return nil, eris.Wrapf(envelope.ErrVariableMismatch, "source: variable column %q not found", name)
			}
			selected = append(selected, name)
		}
	} else {
		for _, name := range names {
			if !skip[name] {
				selected = append(selected, name)
			}
		}
	}

	vars := make([]envelope.Variable, 0, len(selected))
	for _, name := range selected {
		vars = append(vars, parseVariable(name, column(index[name]), missing))
	}
	tbl, err := envelope.NewTable(vars...)
	if err != nil {
		return nil, err
	}
	ds.Table = tbl
	return ds, nil
}

// parseVariable parses a column as numeric, falling back to categorical
// level codes when any present cell is not a number.
func parseVariable(name string, cells []string, missing map[string]bool) envelope.Variable {
	values := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		if missing[c] {
			values[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		values[i] = f
	}
	if numeric {
		return envelope.Variable{Name: name, Kind: envelope.KindNumeric, Values: values}
	}

	levelIdx := make(map[string]int)
	var levels []string
	for i, c := range cells {
		if missing[c] {
			values[i] = math.NaN()
			continue
		}
		idx, ok := levelIdx[c]
		if !ok {
			idx = len(levels)
			levelIdx[c] = idx
			levels = append(levels, c)
		}
		values[i] = float64(idx)
	}
	return envelope.Variable{Name: name, Kind: envelope.KindCategorical, Values: values, Levels: levels}
}

func parseResponse(name string, cells []string, missing map[string]bool) ([]float64, error) {
	values := make([]float64, len(cells))
	for i, c := range cells {
		if missing[c] {
			values[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, eris.Wrapf(envelope.ErrInvalidParameter,
				"source: response %q row %d: %q is not numeric", name, i+1, c)
		}
		values[i] = f
	}
	return values, nil
}

// formatCell renders a scanned database value for buildDataset.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return nullCell
	case float64:
		if math.IsNaN(x) {
			return nullCell
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
