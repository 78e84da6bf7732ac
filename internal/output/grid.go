package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

// WriteASCIIGrid writes values as an ESRI ASCII grid. NaN cells are
// written as the header's NODATA value.
func WriteASCIIGrid(w io.Writer, h source.GridHeader, values []float64) error {
	if len(values) != h.Cells() {
		return eris.Wrapf(envelope.ErrShapeMismatch, "output: %d values for %d cells", len(values), h.Cells())
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", h.NCols)
	fmt.Fprintf(bw, "nrows %d\n", h.NRows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(h.XLLCorner))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(h.YLLCorner))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(h.CellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(h.NoData))

	nodata := formatFloat(h.NoData)
	for row := 0; row < h.NRows; row++ {
		for col := 0; col < h.NCols; col++ {
			if col > 0 {
				_ = bw.WriteByte(' ')
			}
			v := values[row*h.NCols+col]
			if math.IsNaN(v) {
				_, _ = bw.WriteString(nodata)
				continue
			}
			_, _ = bw.WriteString(formatFloat(v))
		}
		_ = bw.WriteByte('\n')
	}
	return eris.Wrap(bw.Flush(), "output: write grid")
}

// WriteGrids writes one <response>.asc per prediction into dir. Cells
// outside the mask and Unknown memberships become NODATA. It returns the
// written paths in response order.
func WriteGrids(dir string, preds *envelope.PredictionTable, shape source.GridShape, noData float64) ([]string, error) {
	h := shape.Header
	if h.Cells() != preds.Rows {
		return nil, eris.Wrapf(envelope.ErrShapeMismatch, "output: %d cells for %d predictions", h.Cells(), preds.Rows)
	}
	if len(shape.Mask) > 0 && len(shape.Mask) != h.Cells() {
		return nil, eris.Wrapf(envelope.ErrShapeMismatch, "output: mask has %d cells, grid %d", len(shape.Mask), h.Cells())
	}
	h.NoData = noData

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create %s", dir)
	}

	paths := make([]string, 0, len(preds.Predictions))
	values := make([]float64, h.Cells())
	for _, pred := range preds.Predictions {
		for i, m := range pred.Values {
			switch {
			case len(shape.Mask) > 0 && !shape.Mask[i], m == envelope.Unknown:
				values[i] = math.NaN()
			default:
				values[i] = float64(m)
			}
		}

		path := filepath.Join(dir, pred.Response+".asc")
		if err := writeGridFile(path, h, values); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeGridFile(path string, h source.GridHeader, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	if err := WriteASCIIGrid(f, h, values); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "output: close %s", path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
