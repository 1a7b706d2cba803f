package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Song is a stored audio file.
//
// Filename is the display name and OriginalFilename the name of the file in the upload directory.
type Song struct {
	record
	Filename         string
	OriginalFilename string
	URL              string
	Title            string
	Artist           string
	Duration         *float64
	OwnerID          string
	Moods            []string
	SourceReference  string
}

// NewSong creates a Song whose id is also the stem of its stored file.
func NewSong(id string) *Song {
	s := &Song{record: newRecord(0)}
	s.SetID(id)
	s.URL = SongURL(id)
	return s
}

// SongURL is the streaming path for a song id.
func SongURL(id string) string {
	return "/api/songs/" + id
}

// Validate checks required fields and the duration sign.
func (s *Song) Validate() error {
	switch {
	case s.ID() == "":
		return fmt.Errorf("%w: song id is required", ErrValidation)
	case strings.TrimSpace(s.Filename) == "":
		return fmt.Errorf("%w: song filename is required", ErrValidation)
	case s.OriginalFilename == "":
		return fmt.Errorf("%w: song original filename is required", ErrValidation)
	case s.URL == "":
		return fmt.Errorf("%w: song url is required", ErrValidation)
	case s.Duration != nil && *s.Duration < 0:
		return fmt.Errorf("%w: song duration must not be negative", ErrValidation)
	}
	return nil
}

// HasMood reports whether the song is tagged with mood.
func (s *Song) HasMood(mood string) bool {
	for _, m := range s.Moods {
		if m == mood {
			return true
		}
	}
	return false
}

// Ref snapshots the song for inclusion in a playlist.
func (s *Song) Ref() SongRef {
	ref := SongRef{
		ID:       s.ID(),
		Filename: s.Filename,
		Title:    s.Title,
		Artist:   s.Artist,
		URL:      s.URL,
	}
	if s.Duration != nil {
		d := *s.Duration
		ref.Duration = &d
	}
	return ref
}

type songJSON struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	URL              string    `json:"url"`
	Title            string    `json:"title,omitempty"`
	Artist           string    `json:"artist,omitempty"`
	Duration         *float64  `json:"duration"`
	OwnerID          string    `json:"owner_id,omitempty"`
	Moods            []string  `json:"moods"`
	SourceReference  string    `json:"source_reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// MarshalJSON renders the API representation of a song.
func (s *Song) MarshalJSON() ([]byte, error) {
	moods := s.Moods
	if moods == nil {
		moods = []string{}
	}
	return json.Marshal(songJSON{
		ID:               s.ID(),
		Filename:         s.Filename,
		OriginalFilename: s.OriginalFilename,
		URL:              s.URL,
		Title:            s.Title,
		Artist:           s.Artist,
		Duration:         s.Duration,
		OwnerID:          s.OwnerID,
		Moods:            moods,
		SourceReference:  s.SourceReference,
		CreatedAt:        s.CreatedAt(),
	})
}
