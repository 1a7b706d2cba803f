package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

const songColumns = `id, sequence, filename, original_filename, url, title, artist, duration, owner_id, source_reference, created_at, updated_at, deleted_at`

// SongRepository implements models.Repository[*models.Song].
//
// The song id is chosen by the caller because it also names the stored file.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a song and its moods, assigning a sequence number.
func (r *SongRepository) Create(song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	song.SetSequence(sequence)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO songs (id, sequence, filename, original_filename, url, title, artist, duration, owner_id, source_reference, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		song.ID(),
		sequence,
		song.Filename,
		song.OriginalFilename,
		song.URL,
		song.Title,
		song.Artist,
		nullFloat(song.Duration),
		song.OwnerID,
		song.SourceReference,
		song.CreatedAt(),
		song.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}

	if err := insertMoods(tx, song.ID(), song.Moods); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit song: %w", err)
	}
	return nil
}

// Get retrieves a song by ID, excluding soft-deleted songs
func (r *SongRepository) Get(id string) (*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ? AND deleted_at IS NULL`

	song, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadMoods([]*models.Song{song}); err != nil {
		return nil, err
	}
	return song, nil
}

// Update rewrites the descriptive fields and moods of a song.
func (r *SongRepository) Update(song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	song.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE songs
		SET filename = ?, title = ?, artist = ?, duration = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query, song.Filename, song.Title, song.Artist, nullFloat(song.Duration), now, song.ID())
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, song.ID())
	}

	if _, err := tx.Exec(`DELETE FROM song_moods WHERE song_id = ?`, song.ID()); err != nil {
		return fmt.Errorf("failed to clear moods: %w", err)
	}
	if err := insertMoods(tx, song.ID(), song.Moods); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete soft-deletes a song by ID
func (r *SongRepository) Delete(id string) error {
	query := `
		UPDATE songs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}

	return nil
}

// List retrieves songs matching the criteria in insertion order.
//
// Supported criteria are "owner_id" and "mood"; empty values are ignored.
func (r *SongRepository) List(criteria map[string]any) ([]*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE deleted_at IS NULL`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(string); ok && ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	if mood, ok := criteria["mood"].(string); ok && mood != "" {
		query += " AND id IN (SELECT song_id FROM song_moods WHERE mood = ?)"
		args = append(args, mood)
	}

	query += " ORDER BY sequence ASC"
	return r.query(query, args...)
}

// Search finds songs whose filename, stored filename, title or artist contains text, ignoring case.
func (r *SongRepository) Search(text string) ([]*models.Song, error) {
	pattern := likePattern(text)
	query := `SELECT ` + songColumns + ` FROM songs
		WHERE deleted_at IS NULL AND (
			filename LIKE ? ESCAPE '\' OR original_filename LIKE ? ESCAPE '\' OR
			title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\'
		)
		ORDER BY sequence ASC`

	return r.query(query, pattern, pattern, pattern, pattern)
}

func (r *SongRepository) query(query string, args ...any) ([]*models.Song, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}

	songs := []*models.Song{}
	for rows.Next() {
		song, err := r.scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if err := r.loadMoods(songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// loadMoods fills Moods for songs with a single query.
func (r *SongRepository) loadMoods(songs []*models.Song) error {
	if len(songs) == 0 {
		return nil
	}

	byID := make(map[string]*models.Song, len(songs))
	args := make([]any, 0, len(songs))
	for _, s := range songs {
		s.Moods = []string{}
		byID[s.ID()] = s
		args = append(args, s.ID())
	}

	query := `SELECT song_id, mood FROM song_moods WHERE song_id IN (` + placeholders(len(args)) + `) ORDER BY rowid ASC`
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query moods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var songID, mood string
		if err := rows.Scan(&songID, &mood); err != nil {
			return fmt.Errorf("failed to scan mood: %w", err)
		}
		if s, ok := byID[songID]; ok {
			s.Moods = append(s.Moods, mood)
		}
	}
	return rows.Err()
}

func insertMoods(tx *sql.Tx, songID string, moods []string) error {
	for _, mood := range moods {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO song_moods (song_id, mood) VALUES (?, ?)`, songID, mood); err != nil {
			return fmt.Errorf("failed to insert mood: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single row into a [models.Song]
func (r *SongRepository) scanOne(row *sql.Row) (*models.Song, error) {
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSongNotFound
	}
	return song, err
}

// scanRow scans a row from [sql.Rows] into a [models.Song]
func (r *SongRepository) scanRow(rows *sql.Rows) (*models.Song, error) {
	return scanSong(rows)
}

func scanSong(row rowScanner) (*models.Song, error) {
	var (
		id               string
		sequence         int
		filename         string
		originalFilename string
		url              string
		title            string
		artist           string
		duration         sql.NullFloat64
		ownerID          string
		sourceReference  string
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(&id, &sequence, &filename, &originalFilename, &url, &title, &artist, &duration, &ownerID, &sourceReference, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	song := models.NewSong(id)
	song.SetSequence(sequence)
	song.Filename = filename
	song.OriginalFilename = originalFilename
	song.URL = url
	song.Title = title
	song.Artist = artist
	song.Duration = floatPtr(duration)
	song.OwnerID = ownerID
	song.SourceReference = sourceReference
	song.SetCreatedAt(createdAt)
	song.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		song.SetDeletedAt(&deletedAt.Time)
	}

	return song, nil
}
