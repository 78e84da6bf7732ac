package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptySource is returned when a container holds no header or layers.
var ErrEmptySource = eris.New("empty source")

// Open picks an ObservationSource for target by scheme or extension:
// postgres:// and postgresql:// URLs, sqlite:// URLs or .db/.sqlite files,
// .csv, .tsv, .xlsx, .shp, .asc files and directories of .asc grids.
// For grid targets, opts.ResponseColumns names response layers.
func Open(target string, opts Options) (ObservationSource, error) {
	switch {
	case strings.HasPrefix(target, "postgres://"), strings.HasPrefix(target, "postgresql://"):
		return NewPostgres(target, opts), nil
	case strings.HasPrefix(target, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(target, "sqlite://"), opts), nil
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return gridFromOptions([]string{target}, opts), nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".csv":
		return NewCSV(target, opts), nil
	case ".tsv", ".tab":
		if opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return NewCSV(target, opts), nil
	case ".xlsx":
		return NewXLSX(target, opts), nil
	case ".shp":
		return NewShapefile(target, opts), nil
	case ".asc":
		return gridFromOptions(strings.Split(target, ","), opts), nil
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(target, opts), nil
	default:
		return nil, eris.Errorf("source: cannot infer source type of %q", target)
	}
}

func gridFromOptions(paths []string, opts Options) *GridSource {
	g := NewGrid(paths, opts.ResponseColumns)
	g.VariableLayers = opts.VariableColumns
	return g
}
