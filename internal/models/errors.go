package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required display-name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrBasePathRequired indicates a source's base save path is empty.
	ErrBasePathRequired = errors.New("base_path is required")

	// ErrRemoteKeyRequired indicates a source or video's stable remote
	// identifier (fid, mid, season_id, bvid, ...) is empty.
	ErrRemoteKeyRequired = errors.New("remote key is required")

	// ErrInvalidCollectionKind indicates a collection source's kind is
	// neither "season" nor "series".
	ErrInvalidCollectionKind = errors.New("collection kind must be 'season' or 'series'")

	// ErrVideoIDRequired indicates a page's owning video id is zero.
	ErrVideoIDRequired = errors.New("video_id is required")

	// ErrJobTypeRequired indicates a job's type field is empty.
	ErrJobTypeRequired = errors.New("job type is required")
)

// ErrorKind classifies a remote or local failure into the handful of
// categories the scheduler, adapters, and pipeline tasks branch on. It is
// the one taxonomy shared across the network boundary (§4.B/§4.D) and the
// download/remux boundary (§4.E).
type ErrorKind int

const (
	// KindUnknown is the zero value; callers should treat it like Network.
	KindUnknown ErrorKind = iota
	// KindNetwork is a transient transport failure. The HTTP client retries
	// it (3 retries by default) with exponential back-off; no jitter is
	// applied to the delay.
	KindNetwork
	// KindRiskControl is the platform's anti-abuse response; it ends the
	// current source scan, leaving that source's remaining videos for its
	// next run. Scans of other sources are not stopped.
	KindRiskControl
	// KindAuthExpired is the platform's expired-session response. Nothing
	// refreshes the credential or retries the call on it; pipeline tasks
	// treat it as an ordinary retryable failure.
	KindAuthExpired
	// KindNotFound is a well-formed "this does not exist" response.
	KindNotFound
	// KindForbidden is a well-formed permission-denied response.
	KindForbidden
	// KindMalformed is a response the client could not parse as the
	// expected envelope shape.
	KindMalformed
	// KindFilesystemFull means a write failed because the target
	// filesystem had no space left.
	KindFilesystemFull
	// KindFilesystemPermission means a write failed due to a permission
	// error on the target path.
	KindFilesystemPermission
	// KindRemuxFailed means the external ffmpeg remux subprocess exited
	// non-zero.
	KindRemuxFailed
	// KindInvariantViolation marks a state the implementation believes is
	// unreachable; it is logged and the task is abandoned without retry.
	KindInvariantViolation
	// KindPolicySkipped marks a task deliberately not attempted because of a
	// download-option choice (audio_only_m4a_only and similar), as opposed to
	// a fetch that was attempted and failed.
	KindPolicySkipped
)

// String renders the kind for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRiskControl:
		return "risk_control"
	case KindAuthExpired:
		return "auth_expired"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindMalformed:
		return "malformed"
	case KindFilesystemFull:
		return "filesystem_full"
	case KindFilesystemPermission:
		return "filesystem_permission"
	case KindRemuxFailed:
		return "remux_failed"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindPolicySkipped:
		return "policy_skipped"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an underlying error with the taxonomy above so
// callers can branch on Kind without string-matching error messages.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap allows errors.Is/errors.As to see through to the underlying error.
func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewClassifiedError wraps err with kind. A nil err still produces a
// classified error carrying just the kind, for sentinel-style comparisons.
func NewClassifiedError(kind ErrorKind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a
// *ClassifiedError, defaulting to KindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// ErrPolicySkipped is the sentinel a sidecar task returns when a download
// option opts it out entirely (audio_only_m4a_only skipping covers, NFOs,
// danmaku, and subtitles), classified as KindPolicySkipped.
var ErrPolicySkipped = NewClassifiedError(KindPolicySkipped, errors.New("assets: skipped by download option"))

// -352 and -101 are the two well-known bilibili response codes the remote
// contract (spec §6) singles out as non-Malformed classes.
const (
	RemoteCodeRiskControl = -352
	RemoteCodeAuthExpired = -101
)

// ClassifyRemoteCode maps a remote envelope's non-zero `code` field to an
// ErrorKind, defaulting to KindMalformed for anything not specifically
// recognized.
func ClassifyRemoteCode(code int) ErrorKind {
	switch code {
	case RemoteCodeRiskControl:
		return KindRiskControl
	case RemoteCodeAuthExpired:
		return KindAuthExpired
	default:
		return KindMalformed
	}
}
