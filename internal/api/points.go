package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/verdant-core/internal/sampling"
)

// outputResponse is the wire shape for an output point.
type outputResponse struct {
	PointID      string         `json:"pointId"`
	AssignedType string         `json:"assignedType"`
	ConfigValues map[string]any `json:"configValues,omitempty"`
	On           *bool          `json:"on,omitempty"`
}

// inputResponse is the wire shape for an input point, combining the stored
// configuration with the latest cached reading.
type inputResponse struct {
	PointID   string     `json:"pointId"`
	Name      string     `json:"name"`
	Unit      string     `json:"unit"`
	Status    string     `json:"status"`
	Value     *float64   `json:"value,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleListPoints returns all configured points with their live state.
func (s *Server) handleListPoints(w http.ResponseWriter, r *http.Request) {
	defs, err := s.points.ListOutputs(r.Context())
	if err != nil {
		s.logger.Error("failed to list outputs", "error", err)
		writeInternalError(w, "failed to list points")
		return
	}

	outputs := make([]outputResponse, 0, len(defs))
	for i := range defs {
		out := outputResponse{
			PointID:      defs[i].PointID,
			AssignedType: defs[i].AssignedType,
			ConfigValues: defs[i].ConfigValues,
		}
		if s.actuation != nil {
			if on, err := s.actuation.IsOn(defs[i].PointID); err == nil {
				out.On = &on
			}
		}
		outputs = append(outputs, out)
	}

	configs, err := s.points.ListInputs(r.Context())
	if err != nil {
		s.logger.Error("failed to list inputs", "error", err)
		writeInternalError(w, "failed to list points")
		return
	}

	var latest map[string]sampling.Sample
	if s.samples != nil {
		latest = s.samples.Snapshot()
	}

	inputs := make([]inputResponse, 0, len(configs))
	for i := range configs {
		in := inputResponse{
			PointID: configs[i].PointID,
			Name:    configs[i].Name,
			Unit:    configs[i].Unit,
			Status:  sampling.StatusNoData.String(),
		}
		if s.samples != nil {
			in.Status = s.samples.CurrentStatus(configs[i].PointID).String()
			if sample, ok := latest[configs[i].PointID]; ok {
				value := sample.Value
				ts := sample.Timestamp
				in.Value = &value
				in.Timestamp = &ts
			}
		}
		inputs = append(inputs, in)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outputs": outputs,
		"inputs":  inputs,
	})
}
