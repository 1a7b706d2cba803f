// Package server provides HTTP routing, middleware, and the JSON API of the media library.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware must be added before routes are registered.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so handlers read path wildcards
// with [http.Request.PathValue].
//
// # API
//
// [API] implements [Handler] and registers every endpoint:
//   - /api/external: catalog search and import through the acquisition pipeline
//   - /api/songs: uploads, listing, streaming and deletion
//   - /api/playlists: CRUD, song membership and exports
//   - /api/analytics: play tracking and listening stats
//   - /api/search: text search over songs and playlists
//
// The caller is identified by the X-User-Id header. Playlists with an owner are only visible to that owner.
//
// # Errors
//
// Every error response is JSON of the form {"detail": "...", "hint": "..."}.
// Acquisition failures map to 400 (invalid input), 502 (search failed or every profile refused)
// and 503 (credentials rejected). The hint tells the caller what to do next.
package server
