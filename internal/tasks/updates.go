package tasks

import (
	"fmt"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SearchCatalog Phase = iota
	Acquire
	Download
	Backoff
	Register
	AddToPlaylist
	BulkImport
	Failed
)

func (p Phase) String() string {
	switch p {
	case SearchCatalog:
		return "search_catalog"
	case Acquire:
		return "acquire"
	case Download:
		return "download"
	case Backoff:
		return "backoff"
	case Register:
		return "register"
	case AddToPlaylist:
		return "add_to_playlist"
	case BulkImport:
		return "bulk_import"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func searchUpdate(query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchCatalog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching for %q...", query),
	}
}

func acquireUpdate(reference string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Acquire,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Acquiring %s...", reference),
	}
}

// eventUpdate translates an orchestrator event.
func eventUpdate(ev acquire.Event) ProgressUpdate {
	phase := Download
	switch ev.Kind {
	case acquire.BackingOff:
		phase = Backoff
	case acquire.Aborted, acquire.Exhausted:
		phase = Failed
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    ev.Attempt,
		Total:   ev.Total,
		Message: ev.Message(),
		Data:    ev,
	}
}

func registerUpdate(song *models.Song) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Register,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Added to library: %s", song.Filename),
		Data:    song,
	}
}

func addToPlaylistUpdate(playlistID string, added bool) ProgressUpdate {
	msg := fmt.Sprintf("Added to playlist %s", playlistID)
	if !added {
		msg = fmt.Sprintf("Already in playlist %s", playlistID)
	}
	return ProgressUpdate{
		Phase:   AddToPlaylist,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func failedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✗ %v", err),
	}
}

func bulkItemCompletedUpdate(step, total int, res ItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkImport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d attempts)", step, total, res.Title, res.Attempts),
		Data:    res,
	}
}

func bulkItemFailedUpdate(step, total int, res ItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkImport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, res.Reference, res.Error),
		Data:    res,
	}
}
