package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sre-cli/internal/envelope"
	"github.com/sells-group/sre-cli/internal/output"
)

// ModelRequest is the body of /v1/fit and /v1/project.
type ModelRequest struct {
	Quant     *float64 `json:"quant"`
	Variables Columns  `json:"variables"`
	Responses Columns  `json:"responses"`
	Query     Columns  `json:"query,omitempty"`
}

// FitResponse is returned by /v1/fit.
type FitResponse struct {
	RunID     string                `json:"run_id"`
	Envelopes []output.EnvelopeJSON `json:"envelopes"`
}

// ProjectResponse is returned by /v1/project.
type ProjectResponse struct {
	RunID       string                  `json:"run_id"`
	Rows        int                     `json:"rows"`
	Predictions []output.PredictionJSON `json:"predictions"`
	Envelopes   []output.EnvelopeJSON   `json:"envelopes"`
}

type errorResponse struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	runID := uuid.New().String()
	res, err := s.run(w, r, runID, true)
	if err != nil {
		s.writeError(w, runID, err)
		return
	}
	writeJSON(w, http.StatusOK, FitResponse{
		RunID:     res.RunID,
		Envelopes: output.EnvelopesDTO(res.Envelopes),
	})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	runID := uuid.New().String()
	res, err := s.run(w, r, runID, false)
	if err != nil {
		s.writeError(w, runID, err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectResponse{
		RunID:       res.RunID,
		Rows:        res.Predictions.Rows,
		Predictions: output.PredictionsDTO(res.Predictions),
		Envelopes:   output.EnvelopesDTO(res.Envelopes),
	})
}

// run decodes the body and executes one envelope run.
func (s *Server) run(w http.ResponseWriter, r *http.Request, runID string, bounds bool) (*envelope.Result, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if eris.Is(err, envelope.ErrInvalidParameter) {
			return nil, err
		}
		return nil, eris.Wrapf(errBadRequest, "api: invalid request body: %v", err)
	}

	explanatory, err := body.Variables.Table()
	if err != nil {
		return nil, err
	}

	req := envelope.Request{
		Explanatory:       explanatory,
		Responses:         body.Responses.Responses(),
		Quant:             s.envelope.Quant,
		ReturnBounds:      bounds,
		Concurrency:       s.envelope.Concurrency,
		ParallelVariables: s.envelope.ParallelVariables,
		RunID:             runID,
	}
	if body.Quant != nil {
		req.Quant = *body.Quant
	}
	if !bounds && len(body.Query) > 0 {
		query, err := body.Query.Table()
		if err != nil {
			return nil, err
		}
		req.Query = query
	}

	return envelope.Run(r.Context(), req)
}

var errBadRequest = eris.New("bad request")

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case eris.Is(err, envelope.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case eris.Is(err, errBadRequest),
		eris.Is(err, envelope.ErrInvalidParameter),
		eris.Is(err, envelope.ErrShapeMismatch),
		eris.Is(err, envelope.ErrVariableMismatch),
		eris.Is(err, envelope.ErrVariableOrderConflict),
		eris.Is(err, envelope.ErrUnsupportedVariableType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, runID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("run_id", runID), zap.Error(err))
	} else {
		s.log.Info("request rejected", zap.String("run_id", runID), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{RunID: runID, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
