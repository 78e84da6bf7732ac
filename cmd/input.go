package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

// inputOptions selects the observations a command fits on.
type inputOptions struct {
	Input     string
	Responses []string
	Variables []string
	Ignore    []string
	SQL       string
	Sheet     string
	// Grid, when set, is sampled at the points of a shapefile Input.
	Grid string
}

func (o *inputOptions) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&o.Input, "input", "", "observations: file, grid directory, sqlite:// or postgres:// URL (default source.database_url)")
	fs.StringSliceVar(&o.Responses, "response", nil, "presence/absence column(s) or layer(s)")
	fs.StringSliceVar(&o.Variables, "variables", nil, "explanatory columns to use (default all others)")
	fs.StringSliceVar(&o.Ignore, "ignore", nil, "columns to drop, e.g. ids or coordinates")
	fs.StringVar(&o.SQL, "sql", "", "SELECT statement for database inputs")
	fs.StringVar(&o.Sheet, "sheet", "", "xlsx sheet name (default first sheet)")
	fs.StringVar(&o.Grid, "grid", "", "ASCII grid directory or comma-separated .asc files sampled at the input points")
}

// sourceOptions merges command options with the source config.
func (o inputOptions) sourceOptions() source.Options {
	opts := source.Options{
		ResponseColumns: o.Responses,
		VariableColumns: o.Variables,
		IgnoreColumns:   o.Ignore,
		Query:           o.SQL,
		Sheet:           o.Sheet,
	}
	if cfg != nil {
		opts.MissingTokens = cfg.Source.MissingTokens
		if opts.Sheet == "" {
			opts.Sheet = cfg.Source.Sheet
		}
		if d := cfg.Source.DelimiterRune(); d != ',' {
			opts.Delimiter = d
		}
	}
	return opts
}

func (o inputOptions) target() string {
	if o.Input == "" && cfg != nil {
		return cfg.Source.DatabaseURL
	}
	return o.Input
}

// observationSource builds the source for the command's observations.
func (o inputOptions) observationSource() (source.ObservationSource, error) {
	target := o.target()
	if target == "" {
		return nil, eris.New("an --input is required")
	}
	if len(o.Responses) == 0 {
		return nil, eris.New("at least one --response is required")
	}
	opts := o.sourceOptions()

	if o.Grid == "" {
		return source.Open(target, opts)
	}

	if !strings.EqualFold(filepath.Ext(target), ".shp") {
		return nil, eris.Errorf("--grid needs a point shapefile input, got %q", target)
	}
	grid := source.NewGrid(strings.Split(o.Grid, ","), nil)
	grid.VariableLayers = o.Variables
	points := source.NewShapefile(target, source.Options{
		ResponseColumns: o.Responses,
		MissingTokens:   opts.MissingTokens,
	})
	return source.NewPointSample(grid, points), nil
}

// loadObservations reads the observations and logs their size.
func loadObservations(ctx context.Context, o inputOptions) (*source.Dataset, error) {
	src, err := o.observationSource()
	if err != nil {
		return nil, err
	}
	ds, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", o.target())
	}
	zap.L().Info("loaded observations",
		zap.String("input", o.target()),
		zap.Int("rows", ds.Table.Rows()),
		zap.Strings("variables", ds.Table.Names()),
		zap.Strings("responses", responseNames(ds.Responses)),
		zap.String("shape", string(ds.Shape.Kind())),
	)
	return ds, nil
}

// loadQuery reads the table to project onto. Every column is kept; the
// envelope picks the variables it needs.
func loadQuery(ctx context.Context, target, sql string, o inputOptions) (*source.Dataset, error) {
	opts := o.sourceOptions()
	opts.ResponseColumns = nil
	opts.VariableColumns = nil
	opts.Query = sql

	src, err := source.Open(target, opts)
	if err != nil {
		return nil, err
	}
	ds, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "load query %s", target)
	}
	zap.L().Info("loaded query",
		zap.String("query", target),
		zap.Int("rows", ds.Table.Rows()),
		zap.String("shape", string(ds.Shape.Kind())),
	)
	return ds, nil
}

func responseNames(rs []envelope.Response) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// resolveQuant returns the flag value when set, else the configured default.
func resolveQuant(cmd *cobra.Command, flagValue float64) float64 {
	if cmd.Flags().Changed("quant") || cfg == nil {
		return flagValue
	}
	return cfg.Envelope.Quant
}

func concurrency() int {
	if cfg == nil {
		return 1
	}
	return cfg.Envelope.Concurrency
}
