package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CSVSource reads a delimited text file with a header row.
type CSVSource struct {
	Path string
	Opts Options
}

// NewCSV creates a CSV source for path.
func NewCSV(path string, opts Options) *CSVSource {
	return &CSVSource{Path: path, Opts: opts}
}

// Load implements ObservationSource.
func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open csv %s", s.Path)
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadCSV(ctx, f, s.Opts)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read csv %s", s.Path)
	}

	zap.L().Debug("source: loaded csv",
		zap.String("path", s.Path),
		zap.Int("rows", ds.Table.Rows()),
		zap.Int("variables", len(ds.Table.Vars)),
		zap.Int("responses", len(ds.Responses)),
	)
	return ds, nil
}

// ReadCSV parses CSV records from r into a dataset. The first record is the header.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) (*Dataset, error) {
	rowCh, errCh := streamCSV(ctx, r, opts.Delimiter)

	var header []string
	var records [][]string
	for row := range rowCh {
		if header == nil {
			header = row
			continue
		}
		records = append(records, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if header == nil {
		return nil, eris.Wrap(ErrEmptySource, "source: csv has no header")
	}

	return buildDataset(header, records, opts)
}

// streamCSV reads records and sends them to a channel. Both channels are
// closed when processing completes.
func streamCSV(ctx context.Context, r io.Reader, delim rune) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if delim != 0 {
			reader.Comma = delim
		}
		reader.FieldsPerRecord = -1 // ragged rows are reported by buildDataset
		reader.ReuseRecord = false

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
