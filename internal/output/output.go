// Package output re-assembles envelope predictions and bounds into the
// caller's container: delimited text, spreadsheets, point shapefiles,
// ASCII grids or terminal tables.
package output

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

// Format names an output container.
type Format string

// Output formats.
const (
	FormatCSV       Format = "csv"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
	FormatGrid      Format = "asc"
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatTable     Format = "table"
)

// ParseFormat validates a format name. An empty name is allowed and means
// "infer from the path or shape".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "", FormatCSV, FormatXLSX, FormatShapefile, FormatGrid, FormatJSON, FormatYAML, FormatTable:
		return f, nil
	default:
		return "", eris.Errorf("output: unknown format %q", s)
	}
}

// Assembler writes prediction tables. Out receives stream formats when no
// path is given.
type Assembler struct {
	Out    io.Writer
	NoData float64
}

// NewAssembler creates an assembler writing stream output to out.
func NewAssembler(out io.Writer, noData float64) *Assembler {
	return &Assembler{Out: out, NoData: noData}
}

// Assemble writes preds in the container matching format, inferring it from
// path and shape when empty. Grid output treats path as a directory.
func (a *Assembler) Assemble(preds *envelope.PredictionTable, shape source.Shape, path string, format Format) error {
	if preds == nil {
		return eris.New("output: no predictions")
	}
	if shape == nil {
		shape = source.TabularShape{}
	}
	format = inferFormat(format, path, shape)

	log := zap.L().With(zap.String("component", "output"), zap.String("format", string(format)))

	switch format {
	case FormatCSV, FormatJSON, FormatTable:
		w, closeFn, err := a.open(path)
		if err != nil {
			return err
		}
		defer closeFn()
		switch format {
		case FormatCSV:
			err = WriteCSV(w, preds, shape)
		case FormatJSON:
			err = WritePredictionsJSON(w, preds)
		default:
			err = RenderPredictions(w, preds)
		}
		if err != nil {
			return err
		}
	case FormatXLSX:
		if path == "" {
			return eris.New("output: xlsx output needs a path")
		}
		if err := WriteXLSX(path, preds, shape); err != nil {
			return err
		}
	case FormatShapefile:
		pts, ok := shape.(source.PointShape)
		if !ok {
			return eris.Errorf("output: shapefile output needs point input, got %s", shape.Kind())
		}
		if path == "" {
			return eris.New("output: shapefile output needs a path")
		}
		if err := WritePointShapefile(path, preds, pts); err != nil {
			return err
		}
	case FormatGrid:
		grid, ok := shape.(source.GridShape)
		if !ok {
			return eris.Errorf("output: grid output needs grid input, got %s", shape.Kind())
		}
		if path == "" {
			return eris.New("output: grid output needs a directory")
		}
		if _, err := WriteGrids(path, preds, grid, a.NoData); err != nil {
			return err
		}
	default:
		return eris.Errorf("output: format %q cannot hold predictions", format)
	}

	log.Info("wrote predictions",
		zap.String("path", path),
		zap.Int("rows", preds.Rows),
		zap.Strings("responses", preds.Responses()),
	)
	return nil
}

// open returns the file at path, or Out when path is empty.
func (a *Assembler) open(path string) (io.Writer, func(), error) {
	if path == "" {
		out := a.Out
		if out == nil {
			out = os.Stdout
		}
		return out, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "output: create %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func inferFormat(format Format, path string, shape source.Shape) Format {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	case ".shp":
		return FormatShapefile
	case ".json":
		return FormatJSON
	}
	if path == "" {
		return FormatCSV
	}
	switch shape.Kind() {
	case source.ShapeGrid:
		return FormatGrid
	case source.ShapePoints:
		return FormatShapefile
	default:
		return FormatCSV
	}
}
