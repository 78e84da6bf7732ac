package output

import (
	"strconv"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

// dBase field names are limited to 10 bytes.
const maxFieldName = 10

// WritePointShapefile writes one point per row at the input coordinates
// with one numeric field per response. Unknown memberships are blank.
func WritePointShapefile(path string, preds *envelope.PredictionTable, shape source.PointShape) error {
	if len(shape.Points) != preds.Rows {
		return eris.Wrapf(envelope.ErrShapeMismatch, "output: %d points for %d predictions", len(shape.Points), preds.Rows)
	}

	fields, err := responseFields(preds.Responses())
	if err != nil {
		return err
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "output: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "output: set shapefile fields")
	}

	for r, p := range shape.Points {
		n := w.Write(&shp.Point{X: p.X(), Y: p.Y()})
		for f, pred := range preds.Predictions {
			val := ""
			if m := pred.Values[r]; m != envelope.Unknown {
				val = strconv.Itoa(int(m))
			}
			if err := w.WriteAttribute(int(n), f, val); err != nil {
				return eris.Wrapf(err, "output: write attribute %s row %d", pred.Response, r)
			}
		}
	}
	return nil
}

// responseFields builds one integer field per response, truncating names
// to the dBase limit.
func responseFields(names []string) ([]shp.Field, error) {
	fields := make([]shp.Field, len(names))
	seen := make(map[string]string, len(names))
	for i, name := range names {
		short := name
		if len(short) > maxFieldName {
			short = short[:maxFieldName]
		}
		if prev, ok := seen[short]; ok {
			return nil, eris.Wrapf(envelope.ErrVariableOrderConflict,
				"output: responses %q and %q share shapefile field %q", prev, name, short)
		}
		seen[short] = name
		fields[i] = shp.NumberField(short, 2)
	}
	return fields, nil
}
