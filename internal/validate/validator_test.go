package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
)

func newTestValidator() *Validator {
	return NewValidator(Config{FlattenMarkdown: true}, nil)
}

func TestValidateImageURL(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name           string
		raw            string
		allowUntrusted bool
		want           string
		wantKind       deckerr.Kind
		wantWarning    bool
	}{
		{name: "http upgraded on trusted host", raw: "http://images.unsplash.com/x.jpg", want: "https://images.unsplash.com/x.jpg"},
		{name: "http default port dropped on upgrade", raw: "http://images.unsplash.com:80/x.jpg", want: "https://images.unsplash.com/x.jpg"},
		{name: "ipv6 default port dropped on upgrade", raw: "http://[::1]:80/x.jpg", allowUntrusted: true, want: "https://[::1]/x.jpg", wantWarning: true},
		{name: "custom port kept on upgrade", raw: "http://images.unsplash.com:8080/x.jpg", want: "https://images.unsplash.com:8080/x.jpg"},
		{name: "exact trusted domain", raw: "https://pexels.com/a.png", want: "https://pexels.com/a.png"},
		{name: "untrusted host rejected", raw: "https://evil.example.com/x.jpg", wantKind: deckerr.KindUntrustedImageDomain},
		{name: "suffix lookalike rejected", raw: "https://notunsplash.com/x.jpg", wantKind: deckerr.KindUntrustedImageDomain},
		{name: "untrusted allowed by override", raw: "https://evil.example.com/x.jpg", allowUntrusted: true, want: "https://evil.example.com/x.jpg"},
		{name: "ftp rejected", raw: "ftp://images.unsplash.com/x.jpg", wantKind: deckerr.KindInvalidImageURL},
		{name: "free text rejected", raw: "a photo of a cat", wantKind: deckerr.KindInvalidImageURL},
		{name: "unparsable rejected", raw: "http://[::1", wantKind: deckerr.KindInvalidImageURL},
		{name: "missing host rejected", raw: "https:///x.jpg", wantKind: deckerr.KindInvalidImageURL},
		{name: "loopback warns under override", raw: "http://127.0.0.1/x.jpg", allowUntrusted: true, want: "https://127.0.0.1/x.jpg", wantWarning: true},
		{name: "private network warns under override", raw: "https://192.168.1.10/x.jpg", allowUntrusted: true, want: "https://192.168.1.10/x.jpg", wantWarning: true},
		{name: "localhost rejected without override", raw: "http://localhost/x.jpg", wantKind: deckerr.KindUntrustedImageDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warning, err := v.ValidateImageURL(tt.raw, tt.allowUntrusted)
			if tt.wantKind != 0 {
				require.Error(t, err)
				kind, ok := deckerr.KindOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantKind, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarning, warning != "")
		})
	}
}

func TestEstimateOperations(t *testing.T) {
	tests := []struct {
		name  string
		slide model.SlideContent
		want  int
	}{
		{"empty slide", model.SlideContent{}, 1},
		{"title only", model.SlideContent{Title: "T"}, 4},
		{"title subtitle image notes", model.SlideContent{Title: "T", Subtitle: "S", ImageURL: "https://x", SpeakerNotes: "n"}, 9},
		{"bullets count per item", model.SlideContent{Bullets: []string{"a", "b", "c"}}, 7},
		{"questions count per item", model.SlideContent{Questions: []string{"q1", "q2"}}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateOperations(tt.slide))
		})
	}
}

func bullets(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("point %d", i+1)
	}
	return out
}

func TestValidate_OverBudgetSlideFailsFast(t *testing.T) {
	v := newTestValidator()
	slides := []model.SlideContent{
		{Kind: model.SlideKindTitle, Title: "Intro"},
		{Kind: model.SlideKindContent, Title: "Too much", Bullets: bullets(20)},
		{Kind: model.SlideKindContent, Title: "Never reached"},
	}

	report, err := v.Validate(slides, Options{})
	require.Error(t, err)
	assert.Nil(t, report)

	var e *deckerr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, deckerr.KindBatchSizeExceeded, e.Kind)
	assert.Equal(t, 1, e.SlideIndex)
}

func TestValidate_UntrustedImageDroppedWithWarning(t *testing.T) {
	v := newTestValidator()
	slides := []model.SlideContent{
		{Kind: model.SlideKindImage, Title: "Evil", ImageURL: "https://evil.example.com/x.jpg"},
		{Kind: model.SlideKindImage, Title: "Good", ImageURL: "http://images.unsplash.com/x.jpg"},
	}

	report, err := v.Validate(slides, Options{})
	require.NoError(t, err)
	require.Len(t, report.Slides, 2)

	assert.Empty(t, report.Slides[0].ImageURL)
	assert.Equal(t, "Evil", report.Slides[0].Title)
	assert.Equal(t, 4, report.Estimates[0])
	assert.Equal(t, "https://images.unsplash.com/x.jpg", report.Slides[1].ImageURL)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "slide 0")
	assert.Contains(t, report.Warnings[0], "evil.example.com")
}

func TestValidate_AllowUntrustedPassesThrough(t *testing.T) {
	v := newTestValidator()
	slides := []model.SlideContent{
		{Kind: model.SlideKindImage, ImageURL: "https://evil.example.com/x.jpg"},
	}

	report, err := v.Validate(slides, Options{AllowUntrustedImages: true})
	require.NoError(t, err)
	assert.Equal(t, "https://evil.example.com/x.jpg", report.Slides[0].ImageURL)
	assert.Empty(t, report.Warnings)
}

func TestValidateSlide_SanitizesWithoutMutatingInput(t *testing.T) {
	v := newTestValidator()
	in := model.SlideContent{
		Kind:         model.SlideKindContent,
		Title:        "  Water cycle  ",
		Body:         "**Evaporation** then _condensation_",
		Bullets:      []string{" rain ", "", "   ", "snow"},
		SpeakerNotes: "# Remind\n\nAsk about clouds",
	}

	vs, estimate, warnings, err := v.ValidateSlide(2, in, Options{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 2, vs.Index)
	assert.Equal(t, "Water cycle", vs.Title)
	assert.Equal(t, "Evaporation then condensation", vs.Body)
	assert.Equal(t, []string{"rain", "snow"}, vs.Bullets)
	assert.Equal(t, "Remind\nAsk about clouds", vs.SpeakerNotes)
	assert.Equal(t, 1+3+3+3+2+1, estimate)

	assert.Equal(t, "  Water cycle  ", in.Title)
	assert.Len(t, in.Bullets, 4)
}

func TestValidateSlide_UnknownKindFallsBackToContent(t *testing.T) {
	v := newTestValidator()

	vs, _, warnings, err := v.ValidateSlide(0, model.SlideContent{Kind: "quiz", Title: "Q"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SlideKindContent, vs.Kind)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "quiz")

	vs, _, warnings, err = v.ValidateSlide(1, model.SlideContent{Title: "No kind"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SlideKindContent, vs.Kind)
	assert.Empty(t, warnings)
}

func TestValidateSlide_UnresolvedImageQueryWarns(t *testing.T) {
	v := newTestValidator()

	vs, _, warnings, err := v.ValidateSlide(5, model.SlideContent{Kind: model.SlideKindImage, ImageQuery: "volcano"}, Options{})
	require.NoError(t, err)
	assert.Empty(t, vs.ImageURL)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "volcano")
}

func TestNewValidator_NormalizesDomains(t *testing.T) {
	v := NewValidator(Config{TrustedDomains: []string{" .Example.ORG ", ""}}, nil)

	got, _, err := v.ValidateImageURL("https://cdn.example.org/a.png", false)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/a.png", got)
	assert.Equal(t, 20, v.OperationLimit())
}
