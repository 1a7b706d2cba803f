package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/shared"
)

const (
	UnknownTrackTitle  = "Unknown External Track"
	UnknownTrackArtist = "Unknown Artist"
)

// SourceMetadata is what the upstream reported about a finished download. Zero values mean absent.
type SourceMetadata struct {
	Title    string
	Artist   string
	Duration *float64
	Ext      string
}

// DownloadRequest is a single attempt handed to a [Downloader].
type DownloadRequest struct {
	Reference   string
	OutputDir   string
	Stem        string
	Profile     ClientProfile
	Credentials *CredentialBundle
	Progress    func(line string)
}

// Downloader performs one download attempt, writing OutputDir/Stem.<ext>.
//
// Implementations must stop and return when ctx is done.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) (*SourceMetadata, error)
}

// Result is a successful acquisition, ready for library registration.
type Result struct {
	FileID          string
	Path            string
	Ext             string
	Title           string
	Artist          string
	DurationSeconds *float64
	SourceReference string
	Tags            []string
	Profile         string
	Attempts        int
}

// Filename is the display filename of the result, "<title>.<ext>".
func (r *Result) Filename() string {
	if r.Ext == "" {
		return r.Title
	}
	return r.Title + "." + r.Ext
}

// OriginalFilename is the basename of the file on disk.
func (r *Result) OriginalFilename() string {
	return filepath.Base(r.Path)
}

// Options configures an [Orchestrator].
//
// A zero jitter band disables the pause between attempts. Sleep, Rand and NewID are test seams.
type Options struct {
	Profiles  []ClientProfile
	JitterMin time.Duration
	JitterMax time.Duration
	UploadDir string
	Logger    *log.Logger

	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func(n int64) int64
	NewID func() string
}

// Orchestrator drives sequential download attempts over an ordered list of client profiles.
//
// It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	downloader Downloader
	profiles   []ClientProfile
	jitterMin  time.Duration
	jitterMax  time.Duration
	uploadDir  string
	logger     *log.Logger

	sleep func(ctx context.Context, d time.Duration) error
	rand  func(n int64) int64
	newID func() string
}

// NewOrchestrator validates opts and returns an Orchestrator.
func NewOrchestrator(downloader Downloader, opts Options) (*Orchestrator, error) {
	if downloader == nil {
		return nil, fmt.Errorf("%w: downloader is required", shared.ErrInvalidConfig)
	}
	if len(opts.Profiles) == 0 || len(opts.Profiles) > MaxProfiles {
		return nil, fmt.Errorf("%w: need 1 to %d client profiles, got %d", shared.ErrInvalidConfig, MaxProfiles, len(opts.Profiles))
	}
	if strings.TrimSpace(opts.UploadDir) == "" {
		return nil, fmt.Errorf("%w: upload directory is required", shared.ErrInvalidConfig)
	}
	if opts.JitterMin < 0 || opts.JitterMax < opts.JitterMin {
		return nil, fmt.Errorf("%w: invalid jitter band %s..%s", shared.ErrInvalidConfig, opts.JitterMin, opts.JitterMax)
	}

	o := &Orchestrator{
		downloader: downloader,
		profiles:   make([]ClientProfile, len(opts.Profiles)),
		jitterMin:  opts.JitterMin,
		jitterMax:  opts.JitterMax,
		uploadDir:  opts.UploadDir,
		logger:     opts.Logger,
		sleep:      opts.Sleep,
		rand:       opts.Rand,
		newID:      opts.NewID,
	}
	for i, p := range opts.Profiles {
		o.profiles[i] = p.clone()
	}

	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	if o.rand == nil {
		o.rand = rand.Int64N
	}
	if o.newID == nil {
		o.newID = shared.GenerateID
	}
	return o, nil
}

// UploadDir is the directory acquisitions are written to.
func (o *Orchestrator) UploadDir() string {
	return o.uploadDir
}

// Profiles returns the configured profiles in rank order.
func (o *Orchestrator) Profiles() []ClientProfile {
	out := make([]ClientProfile, len(o.profiles))
	for i, p := range o.profiles {
		out[i] = p.clone()
	}
	return out
}

// Acquire downloads reference into the upload directory. See [Orchestrator.AcquireWithProgress].
func (o *Orchestrator) Acquire(ctx context.Context, reference string, creds *CredentialBundle, tags []string) (*Result, error) {
	return o.AcquireWithProgress(ctx, reference, creds, tags, nil)
}

// AcquireWithProgress downloads reference, trying one client profile per attempt until one succeeds,
// a credential rejection aborts the call, or the profiles run out.
//
// Every attempt writes under the same freshly generated stem. On failure or cancellation no file with
// that stem is left behind. events may be nil; sends never block.
func (o *Orchestrator) AcquireWithProgress(
	ctx context.Context,
	reference string,
	creds *CredentialBundle,
	tags []string,
	events chan<- Event,
) (result *Result, err error) {
	reference, err = NormalizeReference(reference)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	stem := o.newID()
	profiles := OrderProfiles(o.profiles, creds.Present())
	total := len(profiles)
	logger := o.logger.With("stem", stem, "credentials", creds.String())

	defer func() {
		if err == nil {
			return
		}
		if rmErr := library.RemoveStem(o.uploadDir, stem, ""); rmErr != nil {
			logger.Warn("failed to clean up after failed acquisition", "error", rmErr)
		}
	}()

	logger.Info("acquiring", "reference", reference, "profiles", ProfileNames(profiles))

	var lastErr error
	for i, profile := range profiles {
		attempt := i + 1

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			if err := o.backoff(ctx, events, attempt, total, profile.Name); err != nil {
				return nil, err
			}
		}

		// stale output from an earlier attempt must not be picked up as this one's
		if err := library.RemoveStem(o.uploadDir, stem, ""); err != nil {
			logger.Warn("failed to clear previous attempt", "error", err)
		}

		sendEvent(events, Event{Kind: AttemptStarted, Attempt: attempt, Total: total, Profile: profile.Name})
		path, meta, attemptErr := o.attempt(ctx, reference, stem, profile, creds, events, attempt, total)
		if attemptErr == nil {
			res := o.buildResult(stem, path, meta, reference, tags, profile.Name, attempt)
			if rmErr := library.RemoveStem(o.uploadDir, stem, path); rmErr != nil {
				logger.Warn("failed to remove leftover files", "error", rmErr)
			}
			logger.Info("acquired", "profile", profile.Name, "attempts", attempt, "file", filepath.Base(path))
			sendEvent(events, Event{Kind: Succeeded, Attempt: attempt, Total: total, Profile: profile.Name})
			return res, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = attemptErr
		sendEvent(events, Event{Kind: AttemptFailed, Attempt: attempt, Total: total, Profile: profile.Name, Err: attemptErr})

		if Classify(attemptErr) == Fatal {
			logger.Error("credentials rejected", "profile", profile.Name, "attempt", attempt, "error", attemptErr)
			sendEvent(events, Event{Kind: Aborted, Attempt: attempt, Total: total, Profile: profile.Name, Err: attemptErr})
			return nil, &Error{Kind: KindCredentialsRejected, Attempts: attempt, Profile: profile.Name, Err: attemptErr}
		}
		logger.Warn("attempt failed", "profile", profile.Name, "attempt", attempt, "of", total, "error", attemptErr)
	}

	last := profiles[total-1].Name
	logger.Error("all client profiles failed", "attempts", total, "error", lastErr)
	sendEvent(events, Event{Kind: Exhausted, Attempt: total, Total: total, Profile: last, Err: lastErr})
	return nil, &Error{Kind: KindExhausted, Attempts: total, Profile: last, Err: lastErr}
}

// attempt runs one download and confirms its output exists on disk.
func (o *Orchestrator) attempt(
	ctx context.Context,
	reference, stem string,
	profile ClientProfile,
	creds *CredentialBundle,
	events chan<- Event,
	attempt, total int,
) (string, *SourceMetadata, error) {
	req := DownloadRequest{
		Reference:   reference,
		OutputDir:   o.uploadDir,
		Stem:        stem,
		Profile:     profile,
		Credentials: creds,
		Progress: func(line string) {
			sendEvent(events, Event{Kind: DownloadProgress, Attempt: attempt, Total: total, Profile: profile.Name, Line: line})
		},
	}

	meta, err := o.downloader.Download(ctx, req)
	if err != nil {
		return "", nil, err
	}

	path, err := library.Locate(o.uploadDir, stem)
	if err != nil {
		return "", nil, fmt.Errorf("download reported success but produced no file: %w", err)
	}
	if meta == nil {
		meta = &SourceMetadata{}
	}
	return path, meta, nil
}

func (o *Orchestrator) backoff(ctx context.Context, events chan<- Event, attempt, total int, profile string) error {
	d := o.jitter()
	if d <= 0 {
		return nil
	}
	sendEvent(events, Event{Kind: BackingOff, Attempt: attempt, Total: total, Profile: profile, Delay: d})
	return o.sleep(ctx, d)
}

// jitter picks a delay uniformly in [JitterMin, JitterMax].
func (o *Orchestrator) jitter() time.Duration {
	if o.jitterMax <= 0 {
		return 0
	}
	span := int64(o.jitterMax - o.jitterMin)
	if span <= 0 {
		return o.jitterMin
	}
	return o.jitterMin + time.Duration(o.rand(span+1))
}

func (o *Orchestrator) buildResult(stem, path string, meta *SourceMetadata, reference string, tags []string, profile string, attempts int) *Result {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = strings.TrimPrefix(meta.Ext, ".")
	}

	var duration *float64
	if meta.Duration != nil && *meta.Duration > 0 {
		d := *meta.Duration
		duration = &d
	}

	return &Result{
		FileID:          stem,
		Path:            path,
		Ext:             ext,
		Title:           withDefault(meta.Title, UnknownTrackTitle),
		Artist:          withDefault(meta.Artist, UnknownTrackArtist),
		DurationSeconds: duration,
		SourceReference: reference,
		Tags:            append([]string(nil), tags...),
		Profile:         profile,
		Attempts:        attempts,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCancelled reports whether err came from caller cancellation rather than the source.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
