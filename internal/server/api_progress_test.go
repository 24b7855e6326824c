package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"watchcord/internal/models"
	"watchcord/internal/store"
)

func seedProgress(t *testing.T, s *store.Store) {
	t.Helper()
	for _, p := range []models.SeriesProgress{
		{SeriesID: "series9", SeriesTitle: "Breaking Bad", SeasonNumber: 5, EpisodeNumber: 14},
		{SeriesID: "series3", SeriesTitle: "The Wire", SeasonNumber: 1, EpisodeNumber: 3},
	} {
		if err := s.UpsertSeriesProgress(p); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListProgress(t *testing.T) {
	srv, s := newTestServer(t)
	seedProgress(t, s)

	w := doJSON(t, srv, http.MethodGet, "/api/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var entries []models.SeriesProgress
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestListProgressEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestDeleteProgress(t *testing.T) {
	srv, s := newTestServer(t)
	seedProgress(t, s)

	w := doJSON(t, srv, http.MethodDelete, "/api/progress/series9", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	_, err := s.GetSeriesProgress("series9")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected series gone, got %v", err)
	}
	if _, err := s.GetSeriesProgress("series3"); err != nil {
		t.Fatalf("expected other series kept, got %v", err)
	}
}

func TestDeleteProgressMissing(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodDelete, "/api/progress/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
