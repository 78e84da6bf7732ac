package source

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// XLSXSource reads one worksheet whose first row is the header.
type XLSXSource struct {
	Path string
	Opts Options
}

// NewXLSX creates an XLSX source for path.
func NewXLSX(path string, opts Options) *XLSXSource {
	return &XLSXSource{Path: path, Opts: opts}
}

// Load implements ObservationSource.
func (s *XLSXSource) Load(ctx context.Context) (*Dataset, error) {
	f, err := xlsx.OpenFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open xlsx %s", s.Path)
	}

	sheet, err := pickSheet(f, s.Opts.Sheet)
	if err != nil {
		return nil, err
	}

	var header []string
	var records [][]string
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: xlsx context cancelled")
		}
		cells := rowToStrings(row)
		if header == nil {
			if isBlank(cells) {
				continue
			}
			header = cells
			continue
		}
		if isBlank(cells) {
			continue
		}
		records = append(records, padRow(cells, len(header)))
	}
	if header == nil {
		return nil, eris.Wrapf(ErrEmptySource, "source: xlsx sheet %q has no header", sheet.Name)
	}

	ds, err := buildDataset(header, records, s.Opts)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read xlsx %s", s.Path)
	}

	zap.L().Debug("source: loaded xlsx",
		zap.String("path", s.Path),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", ds.Table.Rows()),
	)
	return ds, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("source: xlsx sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrEmptySource, "source: xlsx file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// padRow extends rows that spreadsheet writers truncated after the last
// non-empty cell.
func padRow(cells []string, n int) []string {
	for len(cells) < n {
		cells = append(cells, "")
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
