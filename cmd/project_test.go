package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/source"
)

func TestRunProject_CSVToStdout(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)

	var buf bytes.Buffer
	err := runProject(context.Background(), &buf, projectParams{
		In: inputOptions{Input: input, Responses: []string{"quercus", "pinus"}, Ignore: []string{"site"}},
	})
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"row,quercus,pinus",
		"1,1,0",
		"2,1,0",
		"3,1,0",
		"4,0,1",
		"5,0,1",
		"6,NA,NA",
	}, "\n")+"\n", buf.String())
}

func TestRunProject_Query(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)
	query := writeFile(t, "query.csv", "id,rain,temp\nx,150,11\ny,150,30\nz,NA,11\n")

	var buf bytes.Buffer
	err := runProject(context.Background(), &buf, projectParams{
		In:     inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site", "id"}},
		Query:  query,
		Format: "csv",
	})
	require.NoError(t, err)
	assert.Equal(t, "row,quercus\n1,1\n2,0\n3,NA\n", buf.String())
}

func TestRunProject_QueryMissingVariable(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)
	query := writeFile(t, "query.csv", "temp\n11\n")

	err := runProject(context.Background(), &bytes.Buffer{}, projectParams{
		In:    inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}},
		Query: query,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, envelope.ErrVariableMismatch), "got %v", err)
}

func TestRunProject_Bounds(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)

	var buf bytes.Buffer
	err := runProject(context.Background(), &buf, projectParams{
		In:     inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}},
		Bounds: true,
		Format: "yaml",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "response: quercus")
	assert.Contains(t, buf.String(), "variable: rain")
}

func TestRunProject_XLSXFile(t *testing.T) {
	useDefaultConfig(t)
	input := writeFile(t, "sites.csv", sitesCSV)
	out := filepath.Join(t.TempDir(), "pred.xlsx")

	err := runProject(context.Background(), &bytes.Buffer{}, projectParams{
		In:     inputOptions{Input: input, Responses: []string{"quercus"}, Ignore: []string{"site"}},
		Output: out,
	})
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

// writeClimateGrid writes a 3x1 grid stack of temp and rain.
func writeClimateGrid(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	header := "ncols 3\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 10\nNODATA_value -9999\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp.asc"), []byte(header+"10 15 30\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rain.asc"), []byte(header+"100 150 900\n"), 0o644))
	return dir
}

func writeRecords(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.NumberField("presence", 4)}))

	records := []struct {
		x, y     float64
		presence string
	}{
		{5, 5, "1"},
		{15, 5, "1"},
		{25, 5, "0"},
	}
	for i, r := range records {
		w.Write(&shp.Point{X: r.x, Y: r.y})
		require.NoError(t, w.WriteAttribute(i, 0, r.presence))
	}
	w.Close()
	return path
}

func TestRunProject_PointsSampledFromGridToGrid(t *testing.T) {
	useDefaultConfig(t)
	grid := writeClimateGrid(t)
	records := writeRecords(t)
	outDir := filepath.Join(t.TempDir(), "maps")

	err := runProject(context.Background(), &bytes.Buffer{}, projectParams{
		In:     inputOptions{Input: records, Responses: []string{"presence"}, Grid: grid},
		Query:  grid,
		Output: outDir,
		NoData: -9999,
	})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(outDir, "presence.asc"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	h, values, err := source.ReadASCIIGrid(f)
	require.NoError(t, err)
	assert.Equal(t, 3, h.NCols)
	assert.Equal(t, []float64{1, 1, 0}, values)
}

func TestRunProject_PointsToShapefile(t *testing.T) {
	useDefaultConfig(t)
	grid := writeClimateGrid(t)
	records := writeRecords(t)
	out := filepath.Join(t.TempDir(), "pred.shp")

	err := runProject(context.Background(), &bytes.Buffer{}, projectParams{
		In:     inputOptions{Input: records, Responses: []string{"presence"}, Grid: grid},
		Output: out,
	})
	require.NoError(t, err)

	r, err := shp.Open(out)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for r.Next() {
		n, _ := r.Shape()
		got = append(got, strings.Trim(r.ReadAttribute(n, 0), " \x00"))
	}
	assert.Equal(t, []string{"1", "1", "0"}, got)
}

func TestPredictionFormat(t *testing.T) {
	useDefaultConfig(t)
	cfg.Output.Format = "table"

	f, err := predictionFormat("", "")
	require.NoError(t, err)
	assert.Equal(t, "table", string(f))

	f, err = predictionFormat("out.shp", "")
	require.NoError(t, err)
	assert.Empty(t, f)

	_, err = predictionFormat("", "parquet")
	require.Error(t, err)
}
