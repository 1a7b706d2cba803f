package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/formatter"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
	"github.com/desertthunder/nexus/internal/tasks"
)

// DefaultMaxUploadBytes caps the size of a multipart upload.
const DefaultMaxUploadBytes = 200 << 20

// SongLibrary stores and serves songs.
type SongLibrary interface {
	Upload(ctx context.Context, req library.UploadRequest) (*models.Song, error)
	Get(id string) (*models.Song, error)
	List(ownerID, mood string) ([]*models.Song, error)
	Path(id string) (string, error)
	Delete(id string) error
}

// SongSearcher finds songs by text.
type SongSearcher interface {
	Search(text string) ([]*models.Song, error)
}

// PlaylistStore persists playlists.
type PlaylistStore interface {
	Create(playlist *models.Playlist) error
	Get(id string) (*models.Playlist, error)
	Update(playlist *models.Playlist) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Playlist, error)
	Search(text string) ([]*models.Playlist, error)
	AddSong(playlistID string, ref models.SongRef) (bool, error)
	RemoveSong(playlistID, songID string) error
}

// HistoryStore records plays and aggregates them.
type HistoryStore interface {
	Record(event *models.ListenEvent) error
	Stats(ownerID string, now time.Time) (*models.ListeningStats, error)
}

// Importer searches the external catalog and imports from it.
type Importer interface {
	Search(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) ([]acquire.SearchCandidate, error)
	Import(ctx context.Context, req tasks.ImportRequest, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error)
}

// APIOpts holds the collaborators of an [API].
type APIOpts struct {
	Songs          SongLibrary
	SongIndex      SongSearcher
	Playlists      PlaylistStore
	History        HistoryStore
	Importer       Importer
	BaseURL        string // prefix for song URLs in exported playlists
	MaxUploadBytes int64
	Logger         *log.Logger
	Now            func() time.Time
}

// API serves the library over HTTP. It implements [Handler].
type API struct {
	songs          SongLibrary
	songIndex      SongSearcher
	playlists      PlaylistStore
	history        HistoryStore
	importer       Importer
	baseURL        string
	maxUploadBytes int64
	logger         *log.Logger
	now            func() time.Time
}

// NewAPI creates a new API with the provided collaborators.
func NewAPI(opts APIOpts) *API {
	a := &API{
		songs:          opts.Songs,
		songIndex:      opts.SongIndex,
		playlists:      opts.Playlists,
		history:        opts.History,
		importer:       opts.Importer,
		baseURL:        strings.TrimSuffix(opts.BaseURL, "/"),
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
		now:            opts.Now,
	}
	if a.maxUploadBytes <= 0 {
		a.maxUploadBytes = DefaultMaxUploadBytes
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Register adds every API route to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.health))

	r.Handle(http.MethodGet, "/api/external/search", http.HandlerFunc(a.externalSearch))
	r.Handle(http.MethodPost, "/api/external/import", http.HandlerFunc(a.externalImport))

	r.Handle(http.MethodPost, "/api/songs/upload", http.HandlerFunc(a.uploadSong))
	r.Handle(http.MethodGet, "/api/songs", http.HandlerFunc(a.listSongs))
	r.Handle(http.MethodGet, "/api/songs/{id}", http.HandlerFunc(a.streamSong))
	r.Handle(http.MethodDelete, "/api/songs/{id}", http.HandlerFunc(a.deleteSong))
	r.Handle(http.MethodGet, "/api/songs/moods/{mood}", http.HandlerFunc(a.songsByMood))

	r.Handle(http.MethodPost, "/api/playlists", http.HandlerFunc(a.createPlaylist))
	r.Handle(http.MethodGet, "/api/playlists", http.HandlerFunc(a.listPlaylists))
	r.Handle(http.MethodGet, "/api/playlists/{id}", http.HandlerFunc(a.getPlaylist))
	r.Handle(http.MethodPut, "/api/playlists/{id}", http.HandlerFunc(a.updatePlaylist))
	r.Handle(http.MethodDelete, "/api/playlists/{id}", http.HandlerFunc(a.deletePlaylist))
	r.Handle(http.MethodPost, "/api/playlists/{id}/songs", http.HandlerFunc(a.addPlaylistSong))
	r.Handle(http.MethodDelete, "/api/playlists/{id}/songs/{song_id}", http.HandlerFunc(a.removePlaylistSong))
	r.Handle(http.MethodGet, "/api/playlists/{id}/export", http.HandlerFunc(a.exportPlaylist))

	r.Handle(http.MethodPost, "/api/analytics/track", http.HandlerFunc(a.trackPlay))
	r.Handle(http.MethodGet, "/api/analytics/stats", http.HandlerFunc(a.stats))

	r.Handle(http.MethodGet, "/api/search", http.HandlerFunc(a.search))
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail, hint := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Detail: detail, Hint: hint})
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) externalSearch(w http.ResponseWriter, r *http.Request) {
	candidates, err := a.importer.Search(r.Context(), r.URL.Query().Get("q"), nil)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []acquire.SearchCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": candidates})
}

func (a *API) externalImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.importer.Import(r.Context(), tasks.ImportRequest{
		Reference:  q.Get("video_url"),
		OwnerID:    userID(r),
		Moods:      q["moods"],
		PlaylistID: q.Get("playlist_id"),
	}, nil)
	if err != nil && (res == nil || res.Song == nil) {
		a.writeError(w, r, err)
		return
	}
	if err != nil {
		// the song is already stored
		a.logger.Warn("imported song but playlist step failed", "id", res.Song.ID(), "playlist", q.Get("playlist_id"), "error", err)
		writeJSON(w, http.StatusOK, importedSong{Song: res.Song, Warning: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res.Song)
}

// importedSong is a stored song plus a warning about a follow-up step that failed.
type importedSong struct {
	Song    *models.Song
	Warning string
}

// MarshalJSON renders the song representation with a "warning" field added.
func (s importedSong) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(s.Song)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	warning, err := json.Marshal(s.Warning)
	if err != nil {
		return nil, err
	}
	fields["warning"] = warning
	return json.Marshal(fields)
}

func (a *API) uploadSong(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "A file field is required")
		return
	}
	defer file.Close()

	song, err := a.songs.Upload(r.Context(), library.UploadRequest{
		Filename: header.Filename,
		Body:     file,
		OwnerID:  userID(r),
		Moods:    r.MultipartForm.Value["moods"],
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (a *API) listSongs(w http.ResponseWriter, r *http.Request) {
	a.writeSongs(w, r, "")
}

func (a *API) songsByMood(w http.ResponseWriter, r *http.Request) {
	a.writeSongs(w, r, r.PathValue("mood"))
}

func (a *API) writeSongs(w http.ResponseWriter, r *http.Request, mood string) {
	songs, err := a.songs.List(userID(r), mood)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

func (a *API) streamSong(w http.ResponseWriter, r *http.Request) {
	path, err := a.songs.Path(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (a *API) deleteSong(w http.ResponseWriter, r *http.Request) {
	if err := a.songs.Delete(r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type playlistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body playlistRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if body.Name == nil {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}

	pl := models.NewPlaylist(*body.Name, deref(body.Description), userID(r))
	if err := a.playlists.Create(pl); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

func (a *API) listPlaylists(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if user := userID(r); user != "" {
		criteria["owner_id"] = user
	}
	playlists, err := a.playlists.List(criteria)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []*models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

// accessiblePlaylist loads the playlist named in the path and checks the caller may use it.
func (a *API) accessiblePlaylist(r *http.Request) (*models.Playlist, error) {
	pl, err := a.playlists.Get(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if !pl.AccessibleBy(userID(r)) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrForbidden, pl.ID())
	}
	return pl, nil
}

func (a *API) getPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (a *API) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var body playlistRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if body.Name != nil {
		pl.Name = *body.Name
	}
	if body.Description != nil {
		pl.Description = *body.Description
	}

	if err := a.playlists.Update(pl); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (a *API) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.playlists.Delete(pl.ID()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addPlaylistSong accepts a full song snapshot or just {"id": ...}, in which case the snapshot is taken from the library.
func (a *API) addPlaylistSong(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var ref models.SongRef
	if err := decodeJSON(r, &ref); err != nil {
		a.writeError(w, r, err)
		return
	}
	if ref.ID != "" && ref.Filename == "" {
		song, err := a.songs.Get(ref.ID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		ref = song.Ref()
	}

	if _, err := a.playlists.AddSong(pl.ID(), ref); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeReloaded(w, r, pl.ID())
}

func (a *API) removePlaylistSong(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.playlists.RemoveSong(pl.ID(), r.PathValue("song_id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeReloaded(w, r, pl.ID())
}

func (a *API) writeReloaded(w http.ResponseWriter, r *http.Request, id string) {
	pl, err := a.playlists.Get(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (a *API) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := a.accessiblePlaylist(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	data, err := formatter.Render(pl, format, a.baseURL)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": formatter.Filename(pl, format)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) trackPlay(w http.ResponseWriter, r *http.Request) {
	event := &models.ListenEvent{
		SongID:   strings.TrimSpace(r.URL.Query().Get("song_id")),
		OwnerID:  userID(r),
		PlayedAt: a.now(),
	}
	if err := a.history.Record(event); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.history.Stats(userID(r), a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// search matches library songs and the playlists the caller can see.
func (a *API) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeDetail(w, http.StatusBadRequest, "query is required")
		return
	}

	songs, err := a.songIndex.Search(query)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	found, err := a.playlists.Search(query)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	user := userID(r)
	playlists := make([]*models.Playlist, 0, len(found))
	for _, pl := range found {
		if pl.AccessibleBy(user) {
			playlists = append(playlists, pl)
		}
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs, "playlists": playlists})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func allowedList() string {
	return strings.Join(library.AllowedExtensions, ", ")
}
