// Package deckerr defines the closed set of failures the presentation pipeline
// can report. Callers switch on Kind rather than on concrete types.
package deckerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates pipeline failures.
type Kind int

const (
	KindGoogleAuth Kind = iota + 1
	KindTokenExpired
	KindTokenRefresh
	KindInvalidImageURL
	KindUntrustedImageDomain
	KindBatchSizeExceeded
	KindSlideCreation
	KindImageInsertion
	KindSpeakerNotes
	KindRateLimit
)

type kindInfo struct {
	code   string
	fatal  bool
	status int
}

var kinds = map[Kind]kindInfo{
	KindGoogleAuth:           {"GOOGLE_AUTH_ERROR", true, http.StatusUnauthorized},
	KindTokenExpired:         {"TOKEN_EXPIRED", true, http.StatusUnauthorized},
	KindTokenRefresh:         {"TOKEN_REFRESH_FAILED", true, http.StatusBadGateway},
	KindInvalidImageURL:      {"INVALID_IMAGE_URL", false, http.StatusUnprocessableEntity},
	KindUntrustedImageDomain: {"UNTRUSTED_IMAGE_DOMAIN", false, http.StatusUnprocessableEntity},
	KindBatchSizeExceeded:    {"BATCH_SIZE_EXCEEDED", true, http.StatusUnprocessableEntity},
	KindSlideCreation:        {"SLIDE_CREATION_FAILED", false, http.StatusBadGateway},
	KindImageInsertion:       {"IMAGE_INSERTION_FAILED", false, http.StatusBadGateway},
	KindSpeakerNotes:         {"SPEAKER_NOTES_FAILED", false, http.StatusBadGateway},
	KindRateLimit:            {"RATE_LIMIT_EXCEEDED", true, http.StatusTooManyRequests},
}

// Code returns the stable machine-readable code for the kind.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "UNKNOWN"
}

// Fatal reports whether a failure of this kind aborts the whole call.
// BatchSizeExceeded is fatal for the slide it names only.
func (k Kind) Fatal() bool {
	return kinds[k].fatal
}

// HTTPStatus maps the kind to the status the API surface responds with.
func (k Kind) HTTPStatus() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	return k.Code()
}

// Error is a pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	// SlideIndex is the affected slide, or -1 when the failure is not slide-scoped.
	SlideIndex int
	Cause      error
	// RetryAfter is set on RateLimit errors only.
	RetryAfter int
}

func (e *Error) Error() string {
	msg := e.Message
	if e.SlideIndex >= 0 {
		msg = fmt.Sprintf("slide %d: %s", e.SlideIndex, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Code returns the stable code of the error's kind.
func (e *Error) Code() string {
	return e.Kind.Code()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrGoogleAuth           = &Error{Kind: KindGoogleAuth, SlideIndex: -1}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired, SlideIndex: -1}
	ErrTokenRefresh         = &Error{Kind: KindTokenRefresh, SlideIndex: -1}
	ErrInvalidImageURL      = &Error{Kind: KindInvalidImageURL, SlideIndex: -1}
	ErrUntrustedImageDomain = &Error{Kind: KindUntrustedImageDomain, SlideIndex: -1}
	ErrBatchSizeExceeded    = &Error{Kind: KindBatchSizeExceeded, SlideIndex: -1}
	ErrSlideCreation        = &Error{Kind: KindSlideCreation, SlideIndex: -1}
	ErrImageInsertion       = &Error{Kind: KindImageInsertion, SlideIndex: -1}
	ErrSpeakerNotes         = &Error{Kind: KindSpeakerNotes, SlideIndex: -1}
	ErrRateLimit            = &Error{Kind: KindRateLimit, SlideIndex: -1}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsFatal reports whether err should abort the whole call. Errors outside the
// taxonomy are treated as fatal.
func IsFatal(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind.Fatal()
}

func newError(kind Kind, index int, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		SlideIndex: index,
		Cause:      cause,
	}
}

// GoogleAuth reports a user who never linked a Google account.
func GoogleAuth(userID string) *Error {
	return newError(KindGoogleAuth, -1, nil, "google account not connected for user %s", userID)
}

// TokenExpired reports an expired access token that could not be refreshed.
func TokenExpired(userID string, cause error) *Error {
	return newError(KindTokenExpired, -1, cause, "access token for user %s expired and could not be refreshed", userID)
}

// TokenRefresh reports a failed call to the token endpoint.
func TokenRefresh(userID string, cause error) *Error {
	return newError(KindTokenRefresh, -1, cause, "failed to refresh access token for user %s", userID)
}

// InvalidImageURL reports an image reference that is not an http(s) URL.
func InvalidImageURL(raw string, cause error) *Error {
	return newError(KindInvalidImageURL, -1, cause, "invalid image url %q", raw)
}

// UntrustedImageDomain reports an image host outside the allow-list.
func UntrustedImageDomain(host string) *Error {
	return newError(KindUntrustedImageDomain, -1, nil, "image host %q is not trusted", host)
}

// BatchSizeExceeded reports a slide whose estimated operation count is over budget.
func BatchSizeExceeded(index, estimated, limit int) *Error {
	return newError(KindBatchSizeExceeded, index, nil, "estimated %d operations exceeds limit of %d", estimated, limit)
}

// SlideCreation reports a rejected batch. batch is 1-based.
func SlideCreation(batch, total int, cause error) *Error {
	return newError(KindSlideCreation, -1, cause, "batch %d of %d failed", batch, total)
}

// ImageInsertion reports an image operation that could not be built or applied.
func ImageInsertion(index int, cause error) *Error {
	return newError(KindImageInsertion, index, cause, "image insertion failed")
}

// SpeakerNotes reports a failed speaker-notes attachment.
func SpeakerNotes(index int, cause error) *Error {
	return newError(KindSpeakerNotes, index, cause, "speaker notes could not be attached")
}

// RateLimit reports a caller that exceeded its request allowance.
func RateLimit(key string, retryAfterSeconds int) *Error {
	e := newError(KindRateLimit, -1, nil, "rate limit exceeded for %s, retry after %ds", key, retryAfterSeconds)
	e.RetryAfter = retryAfterSeconds
	return e
}

// WithSlide returns a copy of e scoped to a slide index.
func (e *Error) WithSlide(index int) *Error {
	c := *e
	c.SlideIndex = index
	return &c
}
