package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/joistio/joist/internal/api/response"
	"github.com/joistio/joist/internal/worker"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = response.WriteSuccess(w, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.pool != nil
	payload := map[string]interface{}{"ready": ready}
	if !ready {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = response.WriteJSON(w, payload)
		return
	}
	_ = response.WriteSuccess(w, payload)
}

func (s *Server) handleListWorkers(w http.ResponseWriter, _ *http.Request) {
	_ = response.WriteSuccess(w, map[string]interface{}{
		"workers": s.pool.Workers(),
	})
}

func (s *Server) handleStartWorker(w http.ResponseWriter, r *http.Request) {
	var req worker.StartWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := s.pool.StartWorker(req); err != nil {
		if strings.Contains(err.Error(), "already started") {
			response.WriteError(w, http.StatusConflict, "WORKER_EXISTS", err.Error())
			return
		}
		response.WriteError(w, http.StatusBadRequest, "START_FAILED", err.Error())
		return
	}

	s.logger.Info("started worker %s via API", req.WorkerID)
	_ = response.WriteCreated(w, map[string]string{"worker_id": req.WorkerID})
}

func (s *Server) handleStopWorker(w http.ResponseWriter, r *http.Request) {
	var req worker.StopWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := s.pool.StopWorker(req); err != nil {
		if strings.Contains(err.Error(), "not found") {
			response.WriteError(w, http.StatusNotFound, "WORKER_NOT_FOUND", err.Error())
			return
		}
		response.WriteError(w, http.StatusBadRequest, "STOP_FAILED", err.Error())
		return
	}

	s.logger.Info("stopped worker %s via API", req.WorkerID)
	response.WriteNoContent(w)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	since, err := ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "INVALID_SINCE", err.Error())
		return
	}

	jobs := s.jobs.Since(since)
	_ = response.WriteSuccess(w, map[string]interface{}{
		"jobs": jobs,
	})
}
