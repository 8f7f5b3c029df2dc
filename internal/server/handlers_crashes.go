package server

import (
	"net/http"
	"strconv"

	"vpncert/internal/crashreport"
)

func (s *Server) handleListCrashes(w http.ResponseWriter, r *http.Request) {
	if s.crashes == nil {
		writeJSON(w, http.StatusOK, map[string]any{"crashes": []crashreport.Report{}})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	reports, err := s.crashes.List(limit)
	if err != nil {
		s.log.WithError(err).Error("list crash reports")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []crashreport.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"crashes": reports})
}
