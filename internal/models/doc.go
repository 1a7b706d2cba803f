// Package models defines the domain entities and persistence interfaces of the nexus media library.
//
// Persistent entities embed a record that carries the row id, a sequence number for stable
// ordering, timestamps and soft delete state:
//   - [Song] : a stored audio file with descriptive metadata and mood tags
//   - [Playlist] : an ordered list of [SongRef] snapshots owned by a user
//
// [ListenEvent] and [ListeningStats] are append-only history values without a record.
//
// The Repository[T] interface defines standard CRUD operations for database access.
package models
