package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

const playlistColumns = `id, sequence, name, description, owner_id, created_at, updated_at, deleted_at`

// PlaylistRepository implements models.Repository[*models.Playlist].
//
// Playlist songs are snapshots stored in playlist_songs and loaded with the playlist.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.SetID(shared.GenerateID())
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO playlists (id, sequence, name, description, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		playlist.ID(),
		sequence,
		playlist.Name,
		playlist.Description,
		playlist.OwnerID,
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist and its songs by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`

	playlist, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadSongs([]*models.Playlist{playlist}); err != nil {
		return nil, err
	}
	return playlist, nil
}

// Update modifies the name and description of a playlist.
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	playlist.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, playlist.Name, playlist.Description, now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return expectRow(result, shared.ErrPlaylistNotFound, playlist.ID())
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(id string) error {
	query := `
		UPDATE playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	return expectRow(result, shared.ErrPlaylistNotFound, id)
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists
//
// The only supported criterion is "owner_id".
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(string); ok && ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY sequence ASC"
	return r.query(query, args...)
}

// Search finds playlists whose name contains text, ignoring case.
func (r *PlaylistRepository) Search(text string) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists
		WHERE deleted_at IS NULL AND name LIKE ? ESCAPE '\'
		ORDER BY sequence ASC`

	return r.query(query, likePattern(text))
}

// AddSong appends ref to the playlist unless a song with the same id is already present.
//
// It reports whether the song was added.
func (r *PlaylistRepository) AddSong(playlistID string, ref models.SongRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM playlists WHERE id = ? AND deleted_at IS NULL)`, playlistID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check playlist: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	query := `
		INSERT OR IGNORE INTO playlist_songs (playlist_id, song_id, position, filename, title, artist, duration, url, added_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_songs WHERE playlist_id = ?), ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		playlistID, ref.ID, playlistID,
		ref.Filename, ref.Title, ref.Artist, nullFloat(ref.Duration), ref.URL,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add song to playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows > 0 {
		if _, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now().UTC(), playlistID); err != nil {
			return false, fmt.Errorf("failed to touch playlist: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit playlist song: %w", err)
	}
	return rows > 0, nil
}

// RemoveSong removes a song from the playlist. Removing a song that is not in the playlist is an error.
func (r *PlaylistRepository) RemoveSong(playlistID, songID string) error {
	if _, err := r.Get(playlistID); err != nil {
		return err
	}

	result, err := r.db.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?`, playlistID, songID)
	if err != nil {
		return fmt.Errorf("failed to remove song from playlist: %w", err)
	}

	return expectRow(result, shared.ErrSongNotInList, songID)
}

// FillSongDuration sets the duration of every playlist snapshot of songID that has none.
//
// It returns the number of snapshots updated.
func (r *PlaylistRepository) FillSongDuration(songID string, duration float64) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE playlist_songs SET duration = ? WHERE song_id = ? AND duration IS NULL`,
		duration, songID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fill playlist durations: %w", err)
	}
	return result.RowsAffected()
}

func (r *PlaylistRepository) query(query string, args ...any) ([]*models.Playlist, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := []*models.Playlist{}
	for rows.Next() {
		playlist, err := r.scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if err := r.loadSongs(playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// loadSongs fills Songs for playlists in position order.
func (r *PlaylistRepository) loadSongs(playlists []*models.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}

	byID := make(map[string]*models.Playlist, len(playlists))
	args := make([]any, 0, len(playlists))
	for _, p := range playlists {
		p.Songs = []models.SongRef{}
		byID[p.ID()] = p
		args = append(args, p.ID())
	}

	query := `
		SELECT playlist_id, song_id, filename, title, artist, duration, url
		FROM playlist_songs
		WHERE playlist_id IN (` + placeholders(len(args)) + `)
		ORDER BY playlist_id, position ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query playlist songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			playlistID string
			ref        models.SongRef
			duration   sql.NullFloat64
		)
		if err := rows.Scan(&playlistID, &ref.ID, &ref.Filename, &ref.Title, &ref.Artist, &duration, &ref.URL); err != nil {
			return fmt.Errorf("failed to scan playlist song: %w", err)
		}
		ref.Duration = floatPtr(duration)
		if p, ok := byID[playlistID]; ok {
			p.Songs = append(p.Songs, ref)
		}
	}
	return rows.Err()
}

// scanOne scans a single row into a [models.Playlist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	playlist, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	return playlist, err
}

// scanRow scans a row from [sql.Rows] into a [models.Playlist]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.Playlist, error) {
	return scanPlaylist(rows)
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		id          string
		sequence    int
		name        string
		description string
		ownerID     string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &description, &ownerID, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPlaylist(name, description, ownerID)
	playlist.SetID(id)
	playlist.SetSequence(sequence)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}

func expectRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
