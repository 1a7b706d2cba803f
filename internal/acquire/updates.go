package acquire

import (
	"fmt"
	"strings"
	"time"
)

// EventKind enumerates the orchestrator state transitions reported to observers.
type EventKind int

const (
	AttemptStarted EventKind = iota
	AttemptFailed
	BackingOff
	DownloadProgress
	Succeeded
	Aborted
	Exhausted
)

func (k EventKind) String() string {
	switch k {
	case AttemptStarted:
		return "attempt_started"
	case AttemptFailed:
		return "attempt_failed"
	case BackingOff:
		return "backing_off"
	case DownloadProgress:
		return "download_progress"
	case Succeeded:
		return "succeeded"
	case Aborted:
		return "aborted"
	case Exhausted:
		return "exhausted"
	default:
		return ""
	}
}

// Event is one progress notification of an acquisition.
type Event struct {
	Kind    EventKind
	Attempt int           // 1-based attempt number
	Total   int           // number of profiles in this call
	Profile string        // profile of the current attempt
	Delay   time.Duration // BackingOff only
	Line    string        // DownloadProgress only: raw downloader output
	Err     error         // AttemptFailed, Aborted and Exhausted
}

// Message renders the event for a log line or status bar.
func (e Event) Message() string {
	switch e.Kind {
	case AttemptStarted:
		return fmt.Sprintf("[%d/%d] Downloading with %s client...", e.Attempt, e.Total, e.Profile)
	case AttemptFailed:
		return fmt.Sprintf("[%d/%d] %s client failed: %v", e.Attempt, e.Total, e.Profile, e.Err)
	case BackingOff:
		return fmt.Sprintf("[%d/%d] Waiting %s before next attempt...", e.Attempt, e.Total, e.Delay.Round(time.Millisecond))
	case DownloadProgress:
		if strings.TrimSpace(e.Line) == "" {
			return fmt.Sprintf("[%d/%d] Downloading with %s client...", e.Attempt, e.Total, e.Profile)
		}
		return e.Line
	case Succeeded:
		return fmt.Sprintf("[%d/%d] ✓ Downloaded with %s client", e.Attempt, e.Total, e.Profile)
	case Aborted:
		return fmt.Sprintf("[%d/%d] ✗ Credentials rejected", e.Attempt, e.Total)
	case Exhausted:
		return fmt.Sprintf("[%d/%d] ✗ All client profiles failed", e.Attempt, e.Total)
	default:
		return ""
	}
}

// sendEvent delivers ev without blocking; a slow or nil observer misses events.
func sendEvent(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}
