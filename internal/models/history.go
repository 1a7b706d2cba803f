package models

import "time"

// ListenEvent records one play of a song.
type ListenEvent struct {
	SongID   string    `json:"song_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	PlayedAt time.Time `json:"timestamp"`
}

// TopSong is a song ranked by play count.
type TopSong struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Artist   string `json:"artist,omitempty"`
	Plays    int    `json:"plays"`
}

// DailyPlays counts plays on one calendar day, named by its short weekday ("Mon").
type DailyPlays struct {
	Name  string `json:"name"`
	Plays int    `json:"plays"`
}

// ListeningStats aggregates a user's listening history.
type ListeningStats struct {
	TopSongs      []TopSong    `json:"top_songs"`
	DailyActivity []DailyPlays `json:"daily_activity"`
	TotalPlays    int          `json:"total_plays"`
}
