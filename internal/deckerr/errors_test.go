package deckerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Fatal(t *testing.T) {
	tests := []struct {
		kind  Kind
		fatal bool
	}{
		{KindGoogleAuth, true},
		{KindTokenExpired, true},
		{KindTokenRefresh, true},
		{KindInvalidImageURL, false},
		{KindUntrustedImageDomain, false},
		{KindBatchSizeExceeded, true},
		{KindSlideCreation, false},
		{KindImageInsertion, false},
		{KindSpeakerNotes, false},
		{KindRateLimit, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Code(), func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.kind.Fatal())
		})
	}
}

func TestError_IsMatchesKindThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(TokenExpired("u1", errors.New("invalid_grant")), "ensure credential")

	assert.True(t, errors.Is(err, ErrTokenExpired))
	assert.False(t, errors.Is(err, ErrTokenRefresh))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTokenExpired, kind)
	assert.Equal(t, http.StatusUnauthorized, kind.HTTPStatus())
}

func TestError_MessageIncludesSlideAndCause(t *testing.T) {
	err := ImageInsertion(3, fmt.Errorf("boom"))
	assert.Equal(t, "slide 3: image insertion failed: boom", err.Error())
	assert.Equal(t, "IMAGE_INSERTION_FAILED", err.Code())

	err = BatchSizeExceeded(7, 24, 20)
	assert.Equal(t, 7, err.SlideIndex)
	assert.Contains(t, err.Error(), "slide 7")
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("network down")
	err := TokenRefresh("u1", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(GoogleAuth("u1")))
	assert.False(t, IsFatal(SpeakerNotes(0, nil)))
	assert.True(t, IsFatal(errors.New("untyped")))
}

func TestWithSlide(t *testing.T) {
	base := UntrustedImageDomain("evil.example.com")
	scoped := base.WithSlide(4)
	assert.Equal(t, -1, base.SlideIndex)
	assert.Equal(t, 4, scoped.SlideIndex)
	assert.ErrorIs(t, scoped, ErrUntrustedImageDomain)
}

func TestRateLimit_CarriesRetryAfter(t *testing.T) {
	err := RateLimit("user-1", 42)
	assert.Equal(t, 42, err.RetryAfter)
	assert.Equal(t, "rate limit exceeded for user-1, retry after 42s", err.Error())
	assert.True(t, IsFatal(err))
}
