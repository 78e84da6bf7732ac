package source

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// DefaultNoData is the NODATA value used when a grid header omits it.
const DefaultNoData = -9999.0

// GridHeader describes an ESRI ASCII grid. Cells are stored row-major
// from the top-left (north-west) corner.
type GridHeader struct {
	NCols     int     `json:"ncols" yaml:"ncols"`
	NRows     int     `json:"nrows" yaml:"nrows"`
	XLLCorner float64 `json:"xllcorner" yaml:"xllcorner"`
	YLLCorner float64 `json:"yllcorner" yaml:"yllcorner"`
	CellSize  float64 `json:"cellsize" yaml:"cellsize"`
	NoData    float64 `json:"nodata" yaml:"nodata"`
}

// Cells returns the number of cells in the grid.
func (h GridHeader) Cells() int { return h.NCols * h.NRows }

// SameGeometry reports whether two headers describe the same cells.
func (h GridHeader) SameGeometry(o GridHeader) bool {
	return h.NCols == o.NCols && h.NRows == o.NRows &&
		h.XLLCorner == o.XLLCorner && h.YLLCorner == o.YLLCorner &&
		h.CellSize == o.CellSize
}

// CellIndex returns the row-major index of the cell containing (x, y).
func (h GridHeader) CellIndex(x, y float64) (int, bool) {
	if h.CellSize <= 0 || math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	col := int(math.Floor((x - h.XLLCorner) / h.CellSize))
	rowFromBottom := int(math.Floor((y - h.YLLCorner) / h.CellSize))
	if col < 0 || col >= h.NCols || rowFromBottom < 0 || rowFromBottom >= h.NRows {
		return 0, false
	}
	row := h.NRows - 1 - rowFromBottom
	return row*h.NCols + col, true
}

// CellCenter returns the coordinates of the center of cell i.
func (h GridHeader) CellCenter(i int) (x, y float64) {
	row, col := i/h.NCols, i%h.NCols
	x = h.XLLCorner + (float64(col)+0.5)*h.CellSize
	y = h.YLLCorner + (float64(h.NRows-row)-0.5)*h.CellSize
	return x, y
}

// Layer is one parsed grid. NODATA cells are NaN.
type Layer struct {
	Name   string
	Header GridHeader
	Values []float64
}

// ReadASCIIGrid parses an ESRI ASCII grid.
func ReadASCIIGrid(r io.Reader) (GridHeader, []float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	h := GridHeader{NoData: DefaultNoData}
	var xCenter, yCenter bool
	var pending string

	// Header: key/value pairs until the first numeric token.
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = key
			break
		}
		if !sc.Scan() {
			return h, nil, eris.Errorf("grid: header key %q has no value", key)
		}
		val, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return h, nil, eris.Wrapf(err, "grid: header %s", key)
		}
		switch key {
		case "ncols":
			h.NCols = int(val)
		case "nrows":
			h.NRows = int(val)
		case "xllcorner":
			h.XLLCorner = val
		case "yllcorner":
			h.YLLCorner = val
		case "xllcenter":
			h.XLLCorner, xCenter = val, true
		case "yllcenter":
			h.YLLCorner, yCenter = val, true
		case "cellsize":
			h.CellSize = val
		case "nodata_value":
			h.NoData = val
		default:
			return h, nil, eris.Errorf("grid: unknown header key %q", key)
		}
	}
	if h.NCols <= 0 || h.NRows <= 0 || h.CellSize <= 0 {
		return h, nil, eris.Errorf("grid: invalid header ncols=%d nrows=%d cellsize=%v", h.NCols, h.NRows, h.CellSize)
	}
	if xCenter {
		h.XLLCorner -= h.CellSize / 2
	}
	if yCenter {
		h.YLLCorner -= h.CellSize / 2
	}

	values := make([]float64, 0, h.Cells())
	add := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "grid: cell %d", len(values))
		}
		if v == h.NoData || math.IsNaN(v) {
			v = math.NaN()
		}
		values = append(values, v)
		return nil
	}
	if pending != "" {
		if err := add(pending); err != nil {
			return h, nil, err
		}
	}
	for sc.Scan() {
		if err := add(sc.Text()); err != nil {
			return h, nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return h, nil, eris.Wrap(err, "grid: scan")
	}
	if len(values) != h.Cells() {
		return h, nil, eris.Wrapf(envelope.ErrShapeMismatch,
			"grid: expected %d cells, read %d", h.Cells(), len(values))
	}
	return h, values, nil
}

// GridSource loads a stack of ASCII grids, one per variable. The variable
// name is the file name without extension.
type GridSource struct {
	// Paths lists .asc files; a directory entry expands to its .asc files.
	Paths []string
	// ResponseLayers names layers read as 0/1 responses instead of variables.
	ResponseLayers []string
	// VariableLayers restricts the explanatory layers; empty means all.
	VariableLayers []string
}

// NewGrid creates a grid stack source.
func NewGrid(paths []string, responseLayers []string) *GridSource {
	return &GridSource{Paths: paths, ResponseLayers: responseLayers}
}

// Layers reads every layer of the stack and checks that they share one geometry.
func (s *GridSource) Layers(ctx context.Context) ([]Layer, error) {
	files, err := expandGridPaths(s.Paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, eris.Wrap(ErrEmptySource, "source: no .asc layers found")
	}

	layers := make([]Layer, 0, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: grid context cancelled")
		}
		layer, err := readLayer(path)
		if err != nil {
			return nil, err
		}
		if len(layers) > 0 && !layers[0].Header.SameGeometry(layer.Header) {
			return nil, eris.Wrapf(envelope.ErrShapeMismatch,
				"source: layer %q geometry differs from %q", layer.Name, layers[0].Name)
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// Load implements ObservationSource.
func (s *GridSource) Load(ctx context.Context) (*Dataset, error) {
	layers, err := s.Layers(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Layer, len(layers))
	for _, l := range layers {
		byName[l.Name] = l
	}

	ds := &Dataset{}
	isResponse := make(map[string]bool)
	for _, name := range s.ResponseLayers {
		l, ok := byName[name]
		if !ok {
			return nil, eris.Wrapf(envelope.ErrVariableMismatch, "source: response layer %q not found", name)
		}
		ds.Responses = append(ds.Responses, envelope.Response{Name: name, Values: l.Values})
		isResponse[name] = true
	}

	var vars []envelope.Variable
	if len(s.VariableLayers) > 0 {
		for _, name := range s.VariableLayers {
			l, ok := byName[name]
			if !ok {
				return nil, eris.Wrapf(envelope.ErrVariableMismatch, "source: variable layer %q not found", name)
			}
			vars = append(vars, envelope.Variable{Name: l.Name, Kind: envelope.KindNumeric, Values: l.Values})
		}
	} else {
		for _, l := range layers {
			if !isResponse[l.Name] {
				vars = append(vars, envelope.Variable{Name: l.Name, Kind: envelope.KindNumeric, Values: l.Values})
			}
		}
	}

	tbl, err := envelope.NewTable(vars...)
	if err != nil {
		return nil, err
	}
	ds.Table = tbl

	header := layers[0].Header
	mask := make([]bool, header.Cells())
	for i := range mask {
		mask[i] = true
		for _, v := range vars {
			if math.IsNaN(v.Values[i]) {
				mask[i] = false
				break
			}
		}
	}
	ds.Shape = GridShape{Header: header, Mask: mask}

	zap.L().Debug("source: loaded grid stack",
		zap.Int("layers", len(layers)),
		zap.Int("ncols", header.NCols),
		zap.Int("nrows", header.NRows),
	)
	return ds, nil
}

func readLayer(path string) (Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Layer{}, eris.Wrapf(err, "source: open grid %s", path)
	}
	defer func() { _ = f.Close() }()

	h, values, err := ReadASCIIGrid(f)
	if err != nil {
		return Layer{}, eris.Wrapf(err, "source: read grid %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Layer{Name: envelope.NormalizeName(name), Header: h, Values: values}, nil
}

func expandGridPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "source: stat %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.asc"))
		if err != nil {
			return nil, eris.Wrapf(err, "source: glob %s", p)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
