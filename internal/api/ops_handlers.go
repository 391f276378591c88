package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Maphikza/iqube-ops/internal/logger"
)

const recentResultsLimit = 10

func (s *Server) HandleAnchorStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, s.reconciler.GetAnchorStatus(r.Context(), id))
}

func (s *Server) HandleDualLockStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, s.reconciler.GetDualLockStatus(r.Context(), id))
}

func (s *Server) HandleChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ops.SupportedChains(r.Context()))
}

func (s *Server) HandlePendingMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ops.PendingMessages(r.Context()))
}

func (s *Server) HandleReadyMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ops.ReadyMessages(r.Context()))
}

func (s *Server) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Data) == "" {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}

	res, err := s.ops.SubmitForAnchoring(r.Context(), req.Data, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) HandleDVNSubmit(w http.ResponseWriter, r *http.Request) {
	var req DVNSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "Missing payload")
		return
	}

	id, err := s.ops.SubmitCrossChainMessage(r.Context(), req.SourceChain, req.DestChain, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"messageId": id})
}

func (s *Server) HandleAttest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req AttestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if err := s.ops.AttestMessage(r.Context(), id, req.Validators); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	st, err := s.ops.GetCrossChainMessageStatus(r.Context(), id)
	if err != nil {
		logger.Warn("Attested but status lookup failed", "message_id", id, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"messageId": id})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) HandleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.RecentResults(recentResultsLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
