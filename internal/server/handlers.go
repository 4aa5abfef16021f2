package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"recruithub/internal/connect"
	"recruithub/internal/ingest"
)

func (s *Server) handleConnectInit(w http.ResponseWriter, r *http.Request) {
	result, err := s.connect.Init(r.Context(), principalFrom(r))
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConnectRegister(w http.ResponseWriter, r *http.Request) {
	var in connect.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	if err := s.connect.Register(r.Context(), in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "form registered, awaiting validation"})
}

func (s *Server) handleConnectValidate(w http.ResponseWriter, r *http.Request) {
	var in connect.ValidateInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	result, err := s.connect.Validate(r.Context(), principalFrom(r), in)
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		FormID  string `json:"formId"`
	}{
		Message: "form connected",
		FormID:  result.FormID,
	})
}

func (s *Server) handleReceiveResponse(w http.ResponseWriter, r *http.Request) {
	var in ingest.ReceiveInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	resp, err := s.ingest.Receive(r.Context(), in)
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message    string `json:"message"`
		ResponseID string `json:"responseId"`
	}{
		Message:    "response stored",
		ResponseID: resp.ID,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingest.Process(r.Context(), principalFrom(r), mux.Vars(r)["id"])
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message     string `json:"message"`
		CandidateID string `json:"candidateId"`
	}{
		Message:     "response processed",
		CandidateID: result.CandidateID,
	})
}

func (s *Server) handleForceCreate(w http.ResponseWriter, r *http.Request) {
	cand, err := s.ingest.ForceCreate(r.Context(), principalFrom(r), mux.Vars(r)["id"])
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var in ingest.AttachInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	in.ResponseID = mux.Vars(r)["id"]
	if err := s.ingest.Attach(r.Context(), principalFrom(r), in); err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "response attached"})
}

func (s *Server) handleUnprocessed(w http.ResponseWriter, r *http.Request) {
	list, err := s.ingest.Unprocessed(r.Context(), principalFrom(r))
	if err != nil {
		s.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
