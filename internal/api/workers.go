package api

import "net/http"

type workerStatus struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

type listWorkersResponse struct {
	Workers []workerStatus `json:"workers"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	snap := s.pool.Snapshot()

	workers := make([]workerStatus, len(snap))
	for id, status := range snap {
		workers[id] = workerStatus{ID: id, Status: status}
	}

	s.writeJSON(w, http.StatusOK, listWorkersResponse{Workers: workers})
}
