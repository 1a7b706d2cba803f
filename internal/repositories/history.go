package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nexus/internal/models"
)

const (
	topSongsLimit = 5
	activityDays  = 7
)

// HistoryRepository stores listening events and aggregates them into [models.ListeningStats].
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record appends a play event. A zero PlayedAt is set to the current time.
func (r *HistoryRepository) Record(event *models.ListenEvent) error {
	if strings.TrimSpace(event.SongID) == "" {
		return fmt.Errorf("validation failed: %w: song id is required", models.ErrValidation)
	}
	if event.PlayedAt.IsZero() {
		event.PlayedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO listening_history (song_id, owner_id, played_at) VALUES (?, ?, ?)`,
		event.SongID, event.OwnerID, event.PlayedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// Stats aggregates the history of ownerID, or of everyone when ownerID is empty.
//
// Daily activity covers the seven calendar days ending on now, in now's location, oldest first.
// Top songs only include songs that still exist.
func (r *HistoryRepository) Stats(ownerID string, now time.Time) (*models.ListeningStats, error) {
	stats := &models.ListeningStats{TopSongs: []models.TopSong{}}

	where, args := "", []any{}
	if ownerID != "" {
		where, args = "WHERE h.owner_id = ?", append(args, ownerID)
	}

	if err := r.db.QueryRow(`SELECT COUNT(*) FROM listening_history h `+where, args...).Scan(&stats.TotalPlays); err != nil {
		return nil, fmt.Errorf("failed to count plays: %w", err)
	}

	top, err := r.topSongs(where, args)
	if err != nil {
		return nil, err
	}
	stats.TopSongs = top

	daily, err := r.dailyActivity(where, args, now)
	if err != nil {
		return nil, err
	}
	stats.DailyActivity = daily

	return stats, nil
}

func (r *HistoryRepository) topSongs(where string, args []any) ([]models.TopSong, error) {
	query := `
		SELECT h.song_id, s.filename, s.artist, COUNT(*) AS plays
		FROM listening_history h
		JOIN songs s ON s.id = h.song_id AND s.deleted_at IS NULL
		` + where + `
		GROUP BY h.song_id
		ORDER BY plays DESC, MIN(h.id) ASC
		LIMIT ?
	`

	rows, err := r.db.Query(query, append(append([]any{}, args...), topSongsLimit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top songs: %w", err)
	}
	defer rows.Close()

	top := []models.TopSong{}
	for rows.Next() {
		var s models.TopSong
		if err := rows.Scan(&s.ID, &s.Filename, &s.Artist, &s.Plays); err != nil {
			return nil, fmt.Errorf("failed to scan top song: %w", err)
		}
		top = append(top, s)
	}
	return top, rows.Err()
}

func (r *HistoryRepository) dailyActivity(where string, args []any, now time.Time) ([]models.DailyPlays, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(activityDays - 1))

	days := make([]models.DailyPlays, activityDays)
	for i := range days {
		days[i].Name = start.AddDate(0, 0, i).Format("Mon")
	}

	rows, err := r.db.Query(`SELECT h.played_at FROM listening_history h `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playedAt time.Time
		if err := rows.Scan(&playedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}

		local := playedAt.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if day.Before(start) || day.After(today) {
			continue
		}
		// rounded since DST days are 23 or 25 hours long
		idx := int(day.Sub(start).Hours()/24 + 0.5)
		if idx >= 0 && idx < activityDays {
			days[idx].Plays++
		}
	}
	return days, rows.Err()
}
