package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/output"
	"github.com/sells-group/sre-cli/internal/source"
)

type projectParams struct {
	In       inputOptions
	Query    string
	QuerySQL string
	Quant    float64
	Parallel bool
	Bounds   bool
	Format   string
	Output   string
	NoData   float64
}

var projectFlags projectParams

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Classify sites as inside or outside fitted envelopes",
	Long: `Fits one envelope per response and projects a query table through each,
writing 1 (inside), 0 (outside) or a missing value per row and response.
Without --query the observations themselves are classified.

The output container follows the query: tables become CSV or XLSX, point
shapefiles become point shapefiles and grid stacks become one ASCII grid per
response.

Examples:
  # Classify the training sites
  sre project --input sites.csv --response quercus

  # Project onto a climate grid stack, one .asc per response in ./maps
  sre project --input records.shp --response presence --grid ./climate --query ./climate --output ./maps

  # Bounds only
  sre project --input sites.csv --response quercus --bounds --format yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("project"); err != nil {
			return err
		}
		p := projectFlags
		p.Quant = resolveQuant(cmd, projectFlags.Quant)
		p.Parallel = projectFlags.Parallel || (cfg != nil && cfg.Envelope.ParallelVariables)
		p.NoData = source.DefaultNoData
		if cfg != nil {
			p.NoData = cfg.Output.GridNoData
		}
		return runProject(cmd.Context(), cmd.OutOrStdout(), p)
	},
}

func runProject(ctx context.Context, stdout io.Writer, p projectParams) error {
	ds, err := loadObservations(ctx, p.In)
	if err != nil {
		return err
	}

	req := envelope.Request{
		Explanatory:       ds.Table,
		Responses:         ds.Responses,
		Quant:             p.Quant,
		ReturnBounds:      p.Bounds,
		Concurrency:       concurrency(),
		ParallelVariables: p.Parallel,
	}

	shape := ds.Shape
	if p.Query != "" && !p.Bounds {
		query, err := loadQuery(ctx, p.Query, p.QuerySQL, p.In)
		if err != nil {
			return err
		}
		req.Query = query.Table
		shape = query.Shape
	}

	res, err := envelope.Run(ctx, req)
	if err != nil {
		return eris.Wrap(err, "project")
	}

	if res.Mode == envelope.ModeBounds {
		return writeBounds(stdout, res.Envelopes, p.Output, p.Format)
	}

	format, err := predictionFormat(p.Output, p.Format)
	if err != nil {
		return err
	}

	zap.L().Info("projected envelopes",
		zap.String("run_id", res.RunID),
		zap.Int("rows", res.Predictions.Rows),
		zap.Int("responses", len(res.Predictions.Predictions)),
	)

	return output.NewAssembler(stdout, p.NoData).Assemble(res.Predictions, shape, p.Output, format)
}

// predictionFormat picks the output format. Stdout output falls back to
// the configured default; file output is inferred from path and shape.
func predictionFormat(path, format string) (output.Format, error) {
	if format == "" && path == "" && cfg != nil {
		format = cfg.Output.Format
	}
	return output.ParseFormat(format)
}

func init() {
	projectFlags.In.register(projectCmd)
	projectCmd.Flags().StringVar(&projectFlags.Query, "query", "", "table, shapefile or grid stack to classify (default the observations)")
	projectCmd.Flags().StringVar(&projectFlags.QuerySQL, "query-sql", "", "SELECT statement when --query is a database")
	projectCmd.Flags().Float64Var(&projectFlags.Quant, "quant", 0, "fraction trimmed from each tail, in [0, 0.5) (default envelope.quant)")
	projectCmd.Flags().BoolVar(&projectFlags.Parallel, "parallel-variables", false, "compute per-variable quantiles concurrently")
	projectCmd.Flags().BoolVar(&projectFlags.Bounds, "bounds", false, "return the fitted bounds instead of predictions")
	projectCmd.Flags().StringVar(&projectFlags.Format, "format", "", "csv, xlsx, shp, asc, json or table; bounds: table, yaml or json")
	projectCmd.Flags().StringVar(&projectFlags.Output, "output", "", "output file, or directory for grids (default stdout)")
	rootCmd.AddCommand(projectCmd)
}
