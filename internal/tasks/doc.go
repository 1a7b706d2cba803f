// Package tasks turns external acquisitions into library entries with real-time progress reporting.
//
// # Core Operations
//
// [Importer] pairs the acquisition pipeline with the song library:
//
//  1. [Importer.Search] : Free-text catalog search
//     - Returns at most ten normalized candidates
//     - Makes no outbound call for a blank query
//
//  2. [Importer.Import] : Single reference import
//     - Acquires the audio through the client profile fallback chain
//     - Registers the stored file as a song owned by the caller
//     - Optionally appends the new song to a playlist
//
//  3. [Importer.BulkImport] : Many references at once
//     - Bounded worker pool with a shared rate limiter
//     - Partial failures are recorded, not fatal
//     - Optionally writes a JSON manifest of the results
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Orchestrator events are translated into updates as they arrive.
// Updates use select with default to prevent blocking.
package tasks
