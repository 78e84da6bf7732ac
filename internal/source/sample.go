package source

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
)

// PointSampleSource extracts grid layer values at point locations. Responses
// come from the point attributes; variables come from the grid stack. Points
// outside the grid get missing values.
type PointSampleSource struct {
	Grid   *GridSource
	Points *ShapefileSource
}

// NewPointSample creates a source sampling grid at the points of a shapefile.
func NewPointSample(grid *GridSource, points *ShapefileSource) *PointSampleSource {
	return &PointSampleSource{Grid: grid, Points: points}
}

// Load implements ObservationSource.
func (s *PointSampleSource) Load(ctx context.Context) (*Dataset, error) {
	if s.Grid == nil || s.Points == nil {
		return nil, eris.New("source: point sampling needs a grid and a point source")
	}

	pts, err := s.Points.Load(ctx)
	if err != nil {
		return nil, err
	}
	gridDS, err := s.Grid.Load(ctx)
	if err != nil {
		return nil, err
	}
	shape, ok := gridDS.Shape.(GridShape)
	if !ok {
		return nil, eris.New("source: grid source returned no grid shape")
	}
	ps, ok := pts.Shape.(PointShape)
	if !ok {
		return nil, eris.New("source: point source returned no point shape")
	}

	cells := make([]int, len(ps.Points))
	var outside int
	for i, p := range ps.Points {
		idx, inside := shape.Header.CellIndex(p.X(), p.Y())
		if !inside {
			idx = -1
			outside++
		}
		cells[i] = idx
	}

	vars := make([]envelope.Variable, len(gridDS.Table.Vars))
	for j, layer := range gridDS.Table.Vars {
		values := make([]float64, len(cells))
		for i, idx := range cells {
			if idx < 0 {
				values[i] = math.NaN()
				continue
			}
			values[i] = layer.Values[idx]
		}
		vars[j] = envelope.Variable{Name: layer.Name, Kind: envelope.KindNumeric, Values: values}
	}

	tbl, err := envelope.NewTable(vars...)
	if err != nil {
		return nil, err
	}

	if outside > 0 {
		zap.L().Warn("source: points outside grid extent",
			zap.Int("outside", outside),
			zap.Int("points", len(ps.Points)),
		)
	}

	return &Dataset{Table: tbl, Responses: pts.Responses, Shape: ps}, nil
}
