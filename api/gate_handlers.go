package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tunaaoguzhann/schoolgate/core"
)

type createGateRequest struct {
	Recipient string `json:"recipient"`
}

type submitRequest struct {
	Code string `json:"code"`
}

type unlockResponse struct {
	Gate      core.GateStatus `json:"gate"`
	Grant     string          `json:"grant"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (s *Server) handleCreateGate(w http.ResponseWriter, r *http.Request) {
	var req createGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid request", nil, err)
		return
	}
	gate, err := core.NewGate(req.Recipient, s.auth, s.channel, core.WithCodeLength(s.codeLength))
	if err != nil {
		respondGateError(w, err, nil)
		return
	}
	s.gates.Put(gate)

	if err := gate.Request(r.Context()); err != nil {
		st := gate.Status()
		respondGateError(w, err, &st)
		return
	}
	respondJSON(w, http.StatusCreated, gate.Status())
}

func (s *Server) gateFromPath(w http.ResponseWriter, r *http.Request) (*core.Gate, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, ErrCodeGateNotFound, "gate not found", nil, nil)
		return nil, false
	}
	gate, ok := s.gates.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeGateNotFound, "gate not found", nil, nil)
		return nil, false
	}
	return gate, true
}

func (s *Server) handleGateStatus(w http.ResponseWriter, r *http.Request) {
	gate, ok := s.gateFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, gate.Status())
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	gate, ok := s.gateFromPath(w, r)
	if !ok {
		return
	}
	if err := gate.Resend(r.Context()); err != nil {
		st := gate.Status()
		respondGateError(w, err, &st)
		return
	}
	respondJSON(w, http.StatusOK, gate.Status())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	gate, ok := s.gateFromPath(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid request", nil, err)
		return
	}
	// An unlocked gate whose grant could not be minted only needs the grant.
	if gate.State() != core.StateUnlocked {
		if err := gate.Submit(r.Context(), req.Code); err != nil {
			st := gate.Status()
			respondGateError(w, err, &st)
			return
		}
	}
	grant, exp, err := s.grants.Mint(gate.Recipient(), ActionAddSchool)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
		return
	}
	// A failed mint leaves the gate unlocked and unreleased for a retry.
	if !gate.Release() {
		respondError(w, http.StatusConflict, ErrCodeConflict, "gate already released", nil, nil)
		return
	}
	st := gate.Status()
	s.gates.Delete(gate.ID())
	respondJSON(w, http.StatusOK, unlockResponse{Gate: st, Grant: grant, ExpiresAt: exp})
}
