package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/verdant-core/internal/cycle"
)

// cycleResponse is the wire shape for a cycle. Dates are omitted until a
// cycle has actually started.
type cycleResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	State             cycle.State        `json:"state"`
	CycleStartDate    *time.Time         `json:"cycleStartDate,omitempty"`
	CurrentStep       int                `json:"currentStep"`
	StepStartDate     *time.Time         `json:"stepStartDate,omitempty"`
	Sequence          []cycle.Step       `json:"sequence"`
	Output            *cycle.Association `json:"output,omitempty"`
	Inputs            []cycle.Association `json:"inputs"`
	OutputOn          *bool              `json:"outputOn,omitempty"`
	LastAutopilotDose *time.Time         `json:"lastAutopilotDose,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (s *Server) cycleToResponse(c *cycle.ActiveCycle) cycleResponse {
	resp := cycleResponse{
		ID:          c.ID,
		Name:        c.Name,
		State:       c.State,
		CurrentStep: c.CurrentStep,
		Sequence:    c.Sequence,
		Output:      c.Output,
		Inputs:      c.Inputs,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if resp.Sequence == nil {
		resp.Sequence = []cycle.Step{}
	}
	if resp.Inputs == nil {
		resp.Inputs = []cycle.Association{}
	}
	if !c.CycleStartDate.IsZero() {
		start := c.CycleStartDate
		resp.CycleStartDate = &start
	}
	if !c.StepStartDate.IsZero() {
		start := c.StepStartDate
		resp.StepStartDate = &start
	}

	if c.Output != nil && s.actuation != nil {
		if on, err := s.actuation.IsOn(c.Output.PointID); err == nil {
			resp.OutputOn = &on
		}
	}
	if last, ok := s.cycles.LastActivation(c.ID); ok {
		resp.LastAutopilotDose = &last
	}
	return resp
}

// handleListCycles returns every cycle known to the manager and repository.
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.cycles.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list cycles", "error", err)
		writeInternalError(w, "failed to list cycles")
		return
	}

	resp := make([]cycleResponse, 0, len(cycles))
	for i := range cycles {
		resp = append(resp, s.cycleToResponse(&cycles[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": resp})
}

// handleGetCycle returns a single cycle by ID.
func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.cycles.Get(r.Context(), id)
	if err != nil {
		writeNotFound(w, "cycle not found")
		return
	}
	writeJSON(w, http.StatusOK, s.cycleToResponse(c))
}
