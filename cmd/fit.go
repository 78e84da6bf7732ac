package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/output"
)

type fitParams struct {
	In       inputOptions
	Quant    float64
	Parallel bool
	Format   string
	Output   string
}

var fitFlags fitParams

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit envelopes and print their bounds",
	Long: `Fits one envelope per response column and prints the per-variable bounds.

Examples:
  # Bounds as a table
  sre fit --input sites.csv --response quercus,pinus --ignore site_id

  # 5% trimmed bounds as YAML
  sre fit --input sites.csv --response quercus --quant 0.05 --format yaml

  # Presence points sampled from a climate grid stack
  sre fit --input records.shp --response presence --grid ./climate --output bounds.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("fit"); err != nil {
			return err
		}
		p := fitFlags
		p.Quant = resolveQuant(cmd, fitFlags.Quant)
		p.Parallel = fitFlags.Parallel || (cfg != nil && cfg.Envelope.ParallelVariables)
		return runFit(cmd.Context(), cmd.OutOrStdout(), p)
	},
}

func runFit(ctx context.Context, stdout io.Writer, p fitParams) error {
	ds, err := loadObservations(ctx, p.In)
	if err != nil {
		return err
	}

	res, err := envelope.Run(ctx, envelope.Request{
		Explanatory:       ds.Table,
		Responses:         ds.Responses,
		Quant:             p.Quant,
		ReturnBounds:      true,
		Concurrency:       concurrency(),
		ParallelVariables: p.Parallel,
	})
	if err != nil {
		return eris.Wrap(err, "fit")
	}

	return writeBounds(stdout, res.Envelopes, p.Output, p.Format)
}

// writeBounds renders envelopes to path, or stdout when path is empty. An
// empty format is taken from the path's extension, then from config.
func writeBounds(stdout io.Writer, envs []*envelope.Envelope, path, format string) error {
	f, err := boundsFormat(path, format)
	if err != nil {
		return err
	}

	if path == "" {
		return output.WriteBounds(stdout, envs, f)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := output.WriteBounds(file, envs, f); err != nil {
		_ = file.Close()
		return err
	}
	return eris.Wrapf(file.Close(), "close %s", path)
}

func boundsFormat(path, format string) (output.Format, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return output.FormatYAML, nil
		case ".json":
			return output.FormatJSON, nil
		}
		if cfg != nil {
			format = cfg.Output.BoundsFormat
		}
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return "", err
	}
	switch f {
	case output.FormatYAML, output.FormatJSON, output.FormatTable, "":
		return f, nil
	default:
		return "", eris.Errorf("bounds format must be table, yaml or json, got %q", format)
	}
}

func init() {
	fitFlags.In.register(fitCmd)
	fitCmd.Flags().Float64Var(&fitFlags.Quant, "quant", 0, "fraction trimmed from each tail, in [0, 0.5) (default envelope.quant)")
	fitCmd.Flags().BoolVar(&fitFlags.Parallel, "parallel-variables", false, "compute per-variable quantiles concurrently")
	fitCmd.Flags().StringVar(&fitFlags.Format, "format", "", "table, yaml or json (default output.bounds_format)")
	fitCmd.Flags().StringVar(&fitFlags.Output, "output", "", "write bounds to this file instead of stdout")
	rootCmd.AddCommand(fitCmd)
}
