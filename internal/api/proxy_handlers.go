package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

const maxBroadcastBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeText(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeUpstreamError(w http.ResponseWriter, resp *explorer.Response) {
	writeJSON(w, resp.Status, upstreamErrorResponse{
		Error:  "Upstream error",
		Status: resp.Status,
		Body:   string(resp.Body),
	})
}

// upstream performs one explorer call and records its latency.
func (s *Server) upstream(route string, call func() (*explorer.Response, error)) (*explorer.Response, error) {
	start := time.Now()
	resp, err := call()
	metrics.ProxyUpstreamDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Explorer request failed", "route", route, "error", err)
	}
	return resp, err
}

// HandleFee passes the explorer's fee estimates through with its status.
func (s *Server) HandleFee(w http.ResponseWriter, r *http.Request) {
	resp, err := s.upstream("fee", func() (*explorer.Response, error) {
		return s.explorer.Get(r.Context(), "fee-estimates")
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !json.Valid(resp.Body) {
		writeError(w, http.StatusInternalServerError, "Failed to fetch fee estimates: invalid JSON from upstream")
		return
	}
	status := http.StatusOK
	if !resp.OK() {
		status = resp.Status
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(resp.Body)
}

func (s *Server) HandleTxHex(w http.ResponseWriter, r *http.Request) {
	txid := r.URL.Query().Get("txid")
	if txid == "" {
		writeError(w, http.StatusBadRequest, "Missing txid")
		return
	}
	resp, err := s.upstream("txhex", func() (*explorer.Response, error) {
		return s.explorer.Get(r.Context(), "tx", txid, "hex")
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !resp.OK() {
		writeUpstreamError(w, resp)
		return
	}
	writeText(w, resp.Body)
}

func (s *Server) HandleUTXOs(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "Missing address")
		return
	}
	resp, err := s.upstream("utxos", func() (*explorer.Response, error) {
		return s.explorer.Get(r.Context(), "address", address, "utxo")
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !resp.OK() {
		writeUpstreamError(w, resp)
		return
	}
	if !json.Valid(resp.Body) {
		writeError(w, http.StatusInternalServerError, "Failed to fetch UTXOs: invalid JSON from upstream")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

// HandleBroadcast forwards a raw hex body and answers with the txid as text.
func (s *Server) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBroadcastBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Transaction body exceeds 1 MiB")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "Missing tx hex in body")
		return
	}
	resp, err := s.upstream("broadcast", func() (*explorer.Response, error) {
		return s.explorer.PostText(r.Context(), string(raw), "tx")
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !resp.OK() {
		logger.Warn("Broadcast rejected upstream", "status", resp.Status, "body", strings.TrimSpace(string(resp.Body)))
		writeUpstreamError(w, resp)
		return
	}
	writeText(w, resp.Body)
}
