package envelope

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomSample builds a table of nVars normally distributed variables and a
// response with roughly half presences.
func randomSample(t *testing.T, seed uint64, rows, nVars int) (*Table, Response) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(seed)))

	vars := make([]Variable, nVars)
	for j := range vars {
		values := make([]float64, rows)
		for i := range values {
			values[i] = rng.NormFloat64()*float64(j+1) + float64(10*j)
		}
		vars[j] = num(string(rune('a'+j)), values...)
	}

	resp := Response{Name: "sp", Values: make([]float64, rows)}
	for i := range resp.Values {
		if rng.Intn(2) == 0 {
			resp.Values[i] = 1
		}
	}
	resp.Values[0] = 1
	return table(t, vars...), resp
}

func TestProperty_MonotoneInQuant(t *testing.T) {
	quants := []float64{0, 0.01, 0.05, 0.1, 0.2, 0.3, 0.45, 0.49}

	for seed := uint64(1); seed <= 5; seed++ {
		obs, resp := randomSample(t, seed, 60, 3)

		var prev *Envelope
		for _, q := range quants {
			env, err := Fit(obs, resp, q)
			require.NoError(t, err)
			for i, iv := range env.Intervals {
				assert.LessOrEqual(t, iv.Lower, iv.Upper, "seed %d quant %v var %s", seed, q, iv.Variable)
				if prev != nil {
					p := prev.Intervals[i]
					assert.LessOrEqual(t, p.Lower, iv.Lower, "lower widened at quant %v", q)
					assert.GreaterOrEqual(t, p.Upper, iv.Upper, "upper widened at quant %v", q)
				}
			}
			prev = env
		}
	}
}

func TestProperty_ProjectionIdempotent(t *testing.T) {
	obs, resp := randomSample(t, 11, 40, 4)
	env, err := Fit(obs, resp, 0.1)
	require.NoError(t, err)

	query, _ := randomSample(t, 12, 25, 4)
	first, err := Project(query, env)
	require.NoError(t, err)
	second, err := Project(query, env)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProperty_FullExtentContainsPresences(t *testing.T) {
	for seed := uint64(20); seed < 25; seed++ {
		obs, resp := randomSample(t, seed, 50, 5)
		env, err := Fit(obs, resp, 0)
		require.NoError(t, err)

		pred, err := Project(obs, env)
		require.NoError(t, err)
		for _, row := range resp.Presence() {
			assert.Equal(t, Inside, pred.Values[row], "seed %d presence row %d", seed, row)
		}
	}
}

func TestProperty_DroppingVariableOnlyRelaxes(t *testing.T) {
	obs, resp := randomSample(t, 40, 80, 4)
	env, err := Fit(obs, resp, 0.15)
	require.NoError(t, err)

	query, _ := randomSample(t, 41, 80, 4)
	full, err := Project(query, env)
	require.NoError(t, err)

	for drop := range env.Intervals {
		reduced := &Envelope{Response: env.Response, Quant: env.Quant}
		for i, iv := range env.Intervals {
			if i != drop {
				reduced.Intervals = append(reduced.Intervals, iv)
			}
		}
		relaxed, err := Project(query, reduced)
		require.NoError(t, err)

		for r := range full.Values {
			if full.Values[r] == Inside {
				assert.Equal(t, Inside, relaxed.Values[r], "dropping %d turned row %d unsuitable", drop, r)
			}
		}
	}
}
