package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SongRef is a snapshot of a song taken when it was added to a playlist.
type SongRef struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Title    string   `json:"title,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	Duration *float64 `json:"duration"`
	URL      string   `json:"url"`
}

// Validate checks the fields a playlist entry needs to be playable.
func (r SongRef) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: song ref id is required", ErrValidation)
	case r.Filename == "":
		return fmt.Errorf("%w: song ref filename is required", ErrValidation)
	case r.URL == "":
		return fmt.Errorf("%w: song ref url is required", ErrValidation)
	}
	return nil
}

// DisplayTitle prefers the title and falls back to the filename.
func (r SongRef) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Filename
}

// Playlist is an ordered collection of songs owned by a user.
//
// An empty OwnerID marks a playlist anyone may read and modify.
type Playlist struct {
	record
	Name        string
	Description string
	OwnerID     string
	Songs       []SongRef
}

// NewPlaylist creates a playlist with no songs.
func NewPlaylist(name, description, ownerID string) *Playlist {
	return &Playlist{
		record:      newRecord(0),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
	}
}

// Validate checks that the playlist has a name.
func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: playlist name is required", ErrValidation)
	}
	return nil
}

// AccessibleBy reports whether the caller identified by userID may read or modify the playlist.
func (p *Playlist) AccessibleBy(userID string) bool {
	return p.OwnerID == "" || p.OwnerID == userID
}

// Contains reports whether a song with songID is in the playlist.
func (p *Playlist) Contains(songID string) bool {
	for _, s := range p.Songs {
		if s.ID == songID {
			return true
		}
	}
	return false
}

// TotalDuration sums the known song durations in seconds.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, s := range p.Songs {
		if s.Duration != nil {
			total += *s.Duration
		}
	}
	return total
}

type playlistJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Songs       []SongRef `json:"songs"`
	OwnerID     string    `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarshalJSON renders the API representation of a playlist.
func (p *Playlist) MarshalJSON() ([]byte, error) {
	songs := p.Songs
	if songs == nil {
		songs = []SongRef{}
	}
	return json.Marshal(playlistJSON{
		ID:          p.ID(),
		Name:        p.Name,
		Description: p.Description,
		Songs:       songs,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt(),
	})
}
