package source

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// SRID is the spatial reference assigned to loaded points (WGS 84).
const SRID = 4326

// ShapefileSource reads a point shapefile. DBF attributes become variables
// and responses; the point locations are kept in a PointShape.
type ShapefileSource struct {
	Path string
	Opts Options
}

// NewShapefile creates a point shapefile source.
func NewShapefile(path string, opts Options) *ShapefileSource {
	return &ShapefileSource{Path: path, Opts: opts}
}

// Load implements ObservationSource.
func (s *ShapefileSource) Load(ctx context.Context) (*Dataset, error) {
	header, records, points, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := buildDataset(header, records, s.Opts)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read shapefile %s", s.Path)
	}
	ds.Shape = PointShape{Points: points}

	zap.L().Debug("source: loaded shapefile",
		zap.String("path", s.Path),
		zap.Int("points", len(points)),
		zap.Int("variables", len(ds.Table.Vars)),
	)
	return ds, nil
}

// read returns the attribute header, one record per shape and the point
// locations in record order.
func (s *ShapefileSource) read(ctx context.Context) ([]string, [][]string, []*geom.Point, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "source: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.TrimRight(f.String(), "\x00")
	}

	var records [][]string
	var points []*geom.Point
	for reader.Next() {
		if ctx.Err() != nil {
			return nil, nil, nil, eris.Wrap(ctx.Err(), "source: shapefile context cancelled")
		}
		n, shape := reader.Shape()

		pt, err := toPoint(shape)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "source: shapefile %s record %d", s.Path, n)
		}
		points = append(points, pt)

		row := make([]string, len(fields))
		for i := range fields {
			row[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		records = append(records, row)
	}
	if err := reader.Err(); err != nil {
		return nil, nil, nil, eris.Wrapf(err, "source: read shapefile %s", s.Path)
	}
	return header, records, points, nil
}

// toPoint converts a go-shp point record to a go-geom point.
func toPoint(shape shp.Shape) (*geom.Point, error) {
	var x, y float64
	switch p := shape.(type) {
	case *shp.Point:
		x, y = p.X, p.Y
	case *shp.PointZ:
		x, y = p.X, p.Y
	case *shp.PointM:
		x, y = p.X, p.Y
	case nil:
		return nil, eris.New("null shape")
	default:
		return nil, eris.Wrapf(envelope.ErrUnsupportedVariableType, "geometry %T is not a point", shape)
	}
	return geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(SRID), nil
}
