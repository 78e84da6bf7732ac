package envelope

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Fit computes the envelope of one response: for every explanatory variable
// the bounds [Q(quant), Q(1-quant)] over its non-missing values at presence
// rows. quant = 0 yields the presence min/max.
func Fit(obs *Table, resp Response, quant float64) (*Envelope, error) {
	return fit(context.Background(), obs, resp, quant, false)
}

// FitParallel is Fit with the per-variable quantiles computed concurrently.
// Results are identical to Fit.
func FitParallel(ctx context.Context, obs *Table, resp Response, quant float64) (*Envelope, error) {
	return fit(ctx, obs, resp, quant, true)
}

func fit(ctx context.Context, obs *Table, resp Response, quant float64, parallel bool) (*Envelope, error) {
	if err := ValidateQuant(quant); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, eris.Wrap(ErrInvalidParameter, "envelope: nil explanatory table")
	}
	if err := CheckNumeric(obs); err != nil {
		return nil, err
	}
	if err := CheckNames(obs); err != nil {
		return nil, err
	}
	if err := CheckShape(obs, resp); err != nil {
		return nil, err
	}

	presence := resp.Presence()
	if len(presence) == 0 {
		return nil, eris.Wrapf(ErrInsufficientData, "envelope: response %q has no presence rows", resp.Name)
	}

	env := &Envelope{
		Response:  resp.Name,
		Quant:     quant,
		Presences: len(presence),
		Intervals: make([]Interval, len(obs.Vars)),
	}

	bound := func(i int) {
		v := obs.Vars[i]
		lo, hi := trimmedBounds(presentSorted(v.Values, presence), quant)
		env.Intervals[i] = Interval{Variable: v.Name, Lower: lo, Upper: hi}
	}

	if !parallel {
		for i := range obs.Vars {
			bound(i)
		}
		return env, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := range obs.Vars {
		i := i
		g.Go(func() error {
			if gCtx.Err() != nil {
				return eris.Wrap(gCtx.Err(), "envelope: fit cancelled")
			}
			bound(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return env, nil
}
