// Package repositories implements SQLite persistence for the media library.
//
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SongRepository] : stored songs with mood tags, keyed by the id that names their file
//   - [PlaylistRepository] : playlists and their ordered song snapshots
//   - [HistoryRepository] : append-only listening events and aggregated stats
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
