package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Acquisition errors
	ErrResolveFailed       = fmt.Errorf("source search failed")
	ErrCredentialsRejected = fmt.Errorf("credentials rejected by source")
	ErrAcquisitionFailed   = fmt.Errorf("acquisition failed")
	ErrDependencyMissing   = fmt.Errorf("required dependency not found")

	// Library errors
	ErrSongNotFound     = fmt.Errorf("song not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrSongNotInList    = fmt.Errorf("song not in playlist")
	ErrFileNotFound     = fmt.Errorf("file not found")
	ErrForbidden        = fmt.Errorf("not authorized")
	ErrUnsupportedType  = fmt.Errorf("unsupported file type")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
