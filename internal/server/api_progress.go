package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListSeriesProgress()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")
	if err := s.store.DeleteSeriesProgress(seriesID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
