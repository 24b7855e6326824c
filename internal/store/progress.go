package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"watchcord/internal/models"
)

const progressColumns = `series_id, series_title, season_number, episode_number, updated_at`

func scanProgress(scanner interface{ Scan(...any) error }) (models.SeriesProgress, error) {
	var p models.SeriesProgress
	err := scanner.Scan(&p.SeriesID, &p.SeriesTitle, &p.SeasonNumber, &p.EpisodeNumber, &p.UpdatedAt)
	return p, err
}

// UpsertSeriesProgress records the episode currently being watched for a
// series, replacing any earlier entry for the same series.
func (s *Store) UpsertSeriesProgress(p models.SeriesProgress) error {
	if p.SeriesID == "" {
		return errors.New("series_id is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO series_progress (series_id, series_title, season_number, episode_number, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(series_id) DO UPDATE SET
			series_title = excluded.series_title,
			season_number = excluded.season_number,
			episode_number = excluded.episode_number,
			updated_at = excluded.updated_at`,
		p.SeriesID, p.SeriesTitle, p.SeasonNumber, p.EpisodeNumber, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting series progress: %w", err)
	}
	return nil
}

func (s *Store) GetSeriesProgress(seriesID string) (models.SeriesProgress, error) {
	p, err := scanProgress(s.db.QueryRow(
		`SELECT `+progressColumns+` FROM series_progress WHERE series_id = ?`, seriesID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("series %q: %w", seriesID, models.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("getting series progress: %w", err)
	}
	return p, nil
}

// CurrentEpisode returns the tracked episode number for a series, or
// models.ErrNotFound when the series has never been watched.
func (s *Store) CurrentEpisode(seriesID string) (int, error) {
	var episode int
	err := s.db.QueryRow(
		`SELECT episode_number FROM series_progress WHERE series_id = ?`, seriesID,
	).Scan(&episode)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("series %q: %w", seriesID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("getting current episode: %w", err)
	}
	return episode, nil
}

func (s *Store) ListSeriesProgress() ([]models.SeriesProgress, error) {
	rows, err := s.db.Query(`SELECT ` + progressColumns + ` FROM series_progress ORDER BY updated_at DESC, series_id`)
	if err != nil {
		return nil, fmt.Errorf("listing series progress: %w", err)
	}
	defer rows.Close()

	entries := []models.SeriesProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteSeriesProgress(seriesID string) error {
	result, err := s.db.Exec(`DELETE FROM series_progress WHERE series_id = ?`, seriesID)
	if err != nil {
		return fmt.Errorf("deleting series progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("series %q: %w", seriesID, models.ErrNotFound)
	}
	return nil
}
