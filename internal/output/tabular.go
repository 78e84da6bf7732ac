package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

// coordinates returns per-row location columns for the shape, if any.
func coordinates(shape source.Shape, rows int) (names []string, cols [][]float64) {
	switch s := shape.(type) {
	case source.PointShape:
		if len(s.Points) != rows {
			return nil, nil
		}
		x, y := make([]float64, rows), make([]float64, rows)
		for i, p := range s.Points {
			x[i], y[i] = p.X(), p.Y()
		}
		return []string{"x", "y"}, [][]float64{x, y}
	case source.GridShape:
		if s.Header.Cells() != rows {
			return nil, nil
		}
		x, y := make([]float64, rows), make([]float64, rows)
		for i := range x {
			x[i], y[i] = s.Header.CellCenter(i)
		}
		return []string{"x", "y"}, [][]float64{x, y}
	default:
		return nil, nil
	}
}

// header returns the output columns: row index, optional coordinates,
// then one column per response.
func header(preds *envelope.PredictionTable, coordNames []string) []string {
	h := append([]string{"row"}, coordNames...)
	return append(h, preds.Responses()...)
}

// WriteCSV writes one line per query row. Unknown memberships are NA.
func WriteCSV(w io.Writer, preds *envelope.PredictionTable, shape source.Shape) error {
	coordNames, coords := coordinates(shape, preds.Rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(header(preds, coordNames)); err != nil {
		return eris.Wrap(err, "output: write csv header")
	}

	rec := make([]string, 0, 1+len(coords)+len(preds.Predictions))
	for r := 0; r < preds.Rows; r++ {
		rec = rec[:0]
		rec = append(rec, strconv.Itoa(r+1))
		for _, c := range coords {
			rec = append(rec, strconv.FormatFloat(c[r], 'f', -1, 64))
		}
		for _, p := range preds.Predictions {
			rec = append(rec, p.Values[r].String())
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "output: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "output: flush csv")
}

// WriteXLSX writes predictions to a single "predictions" sheet. Unknown
// memberships are left blank.
func WriteXLSX(path string, preds *envelope.PredictionTable, shape source.Shape) error {
	coordNames, coords := coordinates(shape, preds.Rows)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("predictions")
	if err != nil {
		return eris.Wrap(err, "output: add xlsx sheet")
	}

	head := sheet.AddRow()
	for _, h := range header(preds, coordNames) {
		head.AddCell().SetString(h)
	}
	for r := 0; r < preds.Rows; r++ {
		row := sheet.AddRow()
		row.AddCell().SetInt(r + 1)
		for _, c := range coords {
			row.AddCell().SetFloat(c[r])
		}
		for _, p := range preds.Predictions {
			cell := row.AddCell()
			if m := p.Values[r]; m != envelope.Unknown {
				cell.SetInt(int(m))
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "output: save xlsx %s", path)
	}
	return nil
}

// PredictionJSON is one response's memberships with null for Unknown.
type PredictionJSON struct {
	Response string `json:"response"`
	Values   []*int `json:"values"`
}

// PredictionsDTO converts predictions for JSON encoding.
func PredictionsDTO(preds *envelope.PredictionTable) []PredictionJSON {
	out := make([]PredictionJSON, len(preds.Predictions))
	for i, p := range preds.Predictions {
		values := make([]*int, len(p.Values))
		for r, m := range p.Values {
			if m == envelope.Unknown {
				continue
			}
			v := int(m)
			values[r] = &v
		}
		out[i] = PredictionJSON{Response: p.Response, Values: values}
	}
	return out
}

// WritePredictionsJSON writes {"rows": n, "predictions": [...]}.
func WritePredictionsJSON(w io.Writer, preds *envelope.PredictionTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		Rows        int              `json:"rows"`
		Predictions []PredictionJSON `json:"predictions"`
	}{preds.Rows, PredictionsDTO(preds)})
	return eris.Wrap(err, "output: encode predictions")
}

// RenderPredictions prints predictions as a terminal table.
func RenderPredictions(w io.Writer, preds *envelope.PredictionTable) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	head := table.Row{"Row"}
	for _, name := range preds.Responses() {
		head = append(head, name)
	}
	t.AppendHeader(head)

	for r := 0; r < preds.Rows; r++ {
		row := table.Row{r + 1}
		for _, p := range preds.Predictions {
			row = append(row, p.Values[r].String())
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}
