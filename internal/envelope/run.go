package envelope

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects what a Run returns.
type Mode string

// Run modes.
const (
	ModePredict Mode = "predict"
	ModeBounds  Mode = "bounds"
)

// Request describes one modeling call over one or more responses.
type Request struct {
	Explanatory *Table
	Responses   []Response
	// Query is projected through every envelope. When nil the explanatory
	// table itself is projected.
	Query        *Table
	Quant        float64
	ReturnBounds bool
	// Concurrency bounds how many responses are processed at once (<= 0 means 1).
	Concurrency       int
	ParallelVariables bool
	// RunID tags logs and the result. A new id is generated when empty.
	RunID string
}

// Result carries either the fitted envelopes (ModeBounds) or the
// predictions together with the envelopes that produced them (ModePredict).
type Result struct {
	RunID       string
	Mode        Mode
	Envelopes   []*Envelope
	Predictions *PredictionTable
}

// Run validates the request, then fits and projects every response
// independently. Any failure aborts the whole call with no partial results.
func Run(ctx context.Context, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := zap.L().With(zap.String("component", "envelope"), zap.String("run_id", runID))
	start := time.Now()

	query, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	limit := req.Concurrency
	if limit <= 0 {
		limit = 1
	}

	mode := ModePredict
	if req.ReturnBounds {
		mode = ModeBounds
	}

	res := &Result{
		RunID:     runID,
		Mode:      mode,
		Envelopes: make([]*Envelope, len(req.Responses)),
	}
	var preds []Prediction
	if mode == ModePredict {
		preds = make([]Prediction, len(req.Responses))
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, resp := range req.Responses {
		i, resp := i, resp
		g.Go(func() error {
			if gCtx.Err() != nil {
				return eris.Wrap(gCtx.Err(), "envelope: run cancelled")
			}

			env, fitErr := fit(gCtx, req.Explanatory, resp, req.Quant, req.ParallelVariables)
			if fitErr != nil {
				return eris.Wrapf(fitErr, "envelope: fit response %q", resp.Name)
			}
			res.Envelopes[i] = env

			log.Debug("fitted envelope",
				zap.String("response", resp.Name),
				zap.Int("presences", env.Presences),
				zap.Int("variables", len(env.Intervals)),
			)

			if mode == ModeBounds {
				return nil
			}

			pred, projErr := Project(query, env)
			if projErr != nil {
				return eris.Wrapf(projErr, "envelope: project response %q", resp.Name)
			}
			preds[i] = *pred
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if mode == ModePredict {
		res.Predictions = &PredictionTable{Rows: query.Rows(), Predictions: preds}
	}

	log.Info("envelope run complete",
		zap.String("mode", string(mode)),
		zap.Int("responses", len(req.Responses)),
		zap.Int("variables", len(req.Explanatory.Vars)),
		zap.Float64("quant", req.Quant),
		zap.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}

// validateRequest runs every contract check up front so that no response
// is fitted when any of them fails. It returns the query table resolved to
// the explanatory column order.
func validateRequest(req Request) (*Table, error) {
	if err := ValidateQuant(req.Quant); err != nil {
		return nil, err
	}
	if req.Explanatory == nil || len(req.Explanatory.Vars) == 0 {
		return nil, eris.Wrap(ErrInvalidParameter, "envelope: no explanatory variables")
	}
	if len(req.Responses) == 0 {
		return nil, eris.Wrap(ErrInvalidParameter, "envelope: no response columns")
	}
	if err := CheckNumeric(req.Explanatory); err != nil {
		return nil, err
	}
	if err := CheckNames(req.Explanatory); err != nil {
		return nil, err
	}
	if err := CheckShape(req.Explanatory, req.Responses...); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Responses))
	for _, r := range req.Responses {
		if seen[r.Name] {
			return nil, eris.Wrapf(ErrVariableOrderConflict, "envelope: duplicate response %q", r.Name)
		}
		seen[r.Name] = true
		if len(r.Presence()) == 0 {
			return nil, eris.Wrapf(ErrInsufficientData, "envelope: response %q has no presence rows", r.Name)
		}
	}

	if req.ReturnBounds {
		return nil, nil
	}

	query := req.Query
	if query == nil {
		query = req.Explanatory
	}
	resolved, err := ResolveVariables(query, req.Explanatory.Names())
	if err != nil {
		return nil, err
	}
	if err := CheckNumeric(resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}
