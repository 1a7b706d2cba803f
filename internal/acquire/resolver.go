package acquire

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/shared"
	"golang.org/x/time/rate"
)

const (
	MaxCandidates = 10

	UnknownArtist = "Unknown"
	UnknownTitle  = "Unknown Title"

	watchURL = "https://www.youtube.com/watch?v="
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// CatalogEntry is one raw search hit. Empty fields are filled with defaults by the [Resolver].
type CatalogEntry struct {
	ID           string
	Title        string
	Artist       string
	Duration     *float64
	ThumbnailURL string
}

// Catalog is the external search service.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]CatalogEntry, error)
}

// SearchCandidate is a normalised search result.
type SearchCandidate struct {
	ExternalID      string
	Title           string
	Artist          string
	DurationSeconds int
	Duration        string
	ThumbnailURL    string
	Reference       string
}

type candidateJSON struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Channel         string          `json:"channel"`
	Duration        string          `json:"duration"`
	DurationSeconds int             `json:"duration_seconds"`
	Thumbnail       string          `json:"thumbnail"`
	Thumbnails      []thumbnailJSON `json:"thumbnails"`
	Link            string          `json:"link"`
}

type thumbnailJSON struct {
	URL string `json:"url"`
}

// MarshalJSON renders the candidate in the shape web clients expect.
func (c SearchCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(candidateJSON{
		ID:              c.ExternalID,
		Title:           c.Title,
		Channel:         c.Artist,
		Duration:        c.Duration,
		DurationSeconds: c.DurationSeconds,
		Thumbnail:       c.ThumbnailURL,
		Thumbnails:      []thumbnailJSON{{URL: c.ThumbnailURL}},
		Link:            c.Reference,
	})
}

// ResolverOptions configures a [Resolver].
//
// RequestsPerSecond <= 0 disables rate limiting.
type ResolverOptions struct {
	Limit             int
	RequestsPerSecond float64
	Burst             int
	Logger            *log.Logger
}

// Resolver turns free-text queries into at most [MaxCandidates] candidates.
type Resolver struct {
	catalog Catalog
	limit   int
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewResolver creates a Resolver over catalog.
func NewResolver(catalog Catalog, opts ResolverOptions) *Resolver {
	limit := opts.Limit
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Resolver{catalog: catalog, limit: limit, limiter: limiter, logger: logger}
}

// Resolve searches the catalog once and returns candidates in upstream order.
//
// Blank queries fail with [KindInvalidInput] without touching the catalog; catalog errors fail with [KindResolveFailed].
func (r *Resolver) Resolve(ctx context.Context, query string) ([]SearchCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidInput("search query is empty")
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindResolveFailed, Err: err}
	}

	entries, err := r.catalog.Search(ctx, query, r.limit)
	if err != nil {
		r.logger.Warn("catalog search failed", "query", query, "error", err)
		return nil, &Error{Kind: KindResolveFailed, Err: err}
	}

	candidates := make([]SearchCandidate, 0, min(len(entries), r.limit))
	for _, e := range entries {
		if len(candidates) == r.limit {
			break
		}
		c, ok := normalizeEntry(e)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	r.logger.Debug("resolved query", "query", query, "candidates", len(candidates))
	return candidates, nil
}

func normalizeEntry(e CatalogEntry) (SearchCandidate, bool) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return SearchCandidate{}, false
	}

	seconds := 0
	if e.Duration != nil && *e.Duration > 0 && !math.IsInf(*e.Duration, 0) {
		seconds = int(*e.Duration)
	}

	return SearchCandidate{
		ExternalID:      id,
		Title:           withDefault(e.Title, UnknownTitle),
		Artist:          withDefault(e.Artist, UnknownArtist),
		DurationSeconds: seconds,
		Duration:        shared.FormatDuration(seconds),
		ThumbnailURL:    strings.TrimSpace(e.ThumbnailURL),
		Reference:       ReferenceFor(id),
	}, true
}

// ReferenceFor derives the canonical reference of an external id.
func ReferenceFor(id string) string {
	return watchURL + url.QueryEscape(id)
}

// NormalizeReference validates a caller-supplied reference.
//
// A bare 11 character video id is expanded with [ReferenceFor]; anything else must be an absolute http(s) URL.
func NormalizeReference(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", invalidInput("reference is empty")
	}
	if videoIDRe.MatchString(reference) {
		return ReferenceFor(reference), nil
	}

	u, err := url.Parse(reference)
	if err != nil {
		return "", invalidInput("reference %q is not a valid URL: %v", reference, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalidInput("reference %q must be an http(s) URL", reference)
	}
	return u.String(), nil
}

func withDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
