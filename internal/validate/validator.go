// Package validate sanitizes untrusted slide content before any remote call.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/markdown"
	"github.com/jun/gophdeck/internal/model"
)

// DefaultMaxOperationsPerSlide is the per-slide operation ceiling. A slide is
// rejected when its estimate exceeds twice this value.
const DefaultMaxOperationsPerSlide = 10

// Config controls the validation policy.
type Config struct {
	TrustedDomains        []string
	MaxOperationsPerSlide int
	FlattenMarkdown       bool
}

// Options are per-call overrides.
type Options struct {
	AllowUntrustedImages bool
}

// Report is the outcome of validating a whole slide list.
type Report struct {
	Slides []model.ValidatedSlide
	// Estimates holds the estimated operation count of each entry in Slides.
	Estimates []int
	Warnings  []string
}

// Validator implements the pre-flight content checks.
type Validator struct {
	trustedDomains []string
	maxOps         int
	flatten        bool
	markdown       *markdown.Renderer
	logger         *zap.Logger
}

// NewValidator creates a Validator. Zero config values fall back to defaults.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	domains := cfg.TrustedDomains
	if len(domains) == 0 {
		domains = DefaultTrustedImageDomains
	}
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	maxOps := cfg.MaxOperationsPerSlide
	if maxOps <= 0 {
		maxOps = DefaultMaxOperationsPerSlide
	}
	return &Validator{
		trustedDomains: normalized,
		maxOps:         maxOps,
		flatten:        cfg.FlattenMarkdown,
		markdown:       markdown.NewRenderer(),
		logger:         logger,
	}
}

// OperationLimit is the estimate above which a slide is rejected.
func (v *Validator) OperationLimit() int {
	return 2 * v.maxOps
}

// Validate checks every slide and fails fast on the first slide that is over
// the operation budget. Image problems never fail the call: the image is
// dropped and a warning recorded.
func (v *Validator) Validate(slides []model.SlideContent, opts Options) (*Report, error) {
	report := &Report{
		Slides:    make([]model.ValidatedSlide, 0, len(slides)),
		Estimates: make([]int, 0, len(slides)),
	}
	for i, s := range slides {
		vs, estimate, warnings, err := v.ValidateSlide(i, s, opts)
		if err != nil {
			return nil, err
		}
		report.Slides = append(report.Slides, vs)
		report.Estimates = append(report.Estimates, estimate)
		report.Warnings = append(report.Warnings, warnings...)
	}
	return report, nil
}

// ValidateSlide validates one slide. The returned error is always a
// BatchSizeExceeded error naming index.
func (v *Validator) ValidateSlide(index int, s model.SlideContent, opts Options) (model.ValidatedSlide, int, []string, error) {
	var warnings []string

	clean := v.sanitize(s)
	if clean.Kind == "" {
		clean.Kind = model.SlideKindContent
	} else if !knownKind(clean.Kind) {
		warnings = append(warnings, fmt.Sprintf("slide %d: unknown slide type %q rendered as content", index, clean.Kind))
		clean.Kind = model.SlideKindContent
	}

	estimate := EstimateOperations(clean)
	if estimate > v.OperationLimit() {
		v.logger.Warn("slide over operation budget",
			zap.Int("slide_index", index),
			zap.Int("estimate", estimate),
			zap.Int("limit", v.OperationLimit()),
		)
		return model.ValidatedSlide{}, estimate, nil, deckerr.BatchSizeExceeded(index, estimate, v.OperationLimit())
	}

	if clean.ImageURL != "" {
		imageURL, warning, err := v.ValidateImageURL(clean.ImageURL, opts.AllowUntrustedImages)
		if err != nil {
			warnings = append(warnings, imageWarning(index, err))
			clean.ImageURL = ""
			estimate -= opsImage
		} else {
			clean.ImageURL = imageURL
			if warning != "" {
				warnings = append(warnings, fmt.Sprintf("slide %d: %s", index, warning))
			}
		}
	} else if clean.ImageQuery != "" {
		warnings = append(warnings, fmt.Sprintf("slide %d: image query %q was not resolved to a url", index, clean.ImageQuery))
	}

	return model.ValidatedSlide{SlideContent: clean, Index: index}, estimate, warnings, nil
}

func imageWarning(index int, err error) string {
	var e *deckerr.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("%s; image removed", e.WithSlide(index).Error())
	}
	return fmt.Sprintf("slide %d: %v; image removed", index, err)
}

// sanitize returns a trimmed copy of s. The input is never modified.
func (v *Validator) sanitize(s model.SlideContent) model.SlideContent {
	out := s
	out.Kind = model.SlideKind(strings.TrimSpace(string(s.Kind)))
	out.Title = strings.TrimSpace(s.Title)
	out.Subtitle = strings.TrimSpace(s.Subtitle)
	out.Body = strings.TrimSpace(s.Body)
	out.SpeakerNotes = strings.TrimSpace(s.SpeakerNotes)
	out.ImageURL = strings.TrimSpace(s.ImageURL)
	out.ImageQuery = strings.TrimSpace(s.ImageQuery)
	out.ImageAlt = strings.TrimSpace(s.ImageAlt)
	if v.flatten {
		out.Body = v.markdown.PlainText(out.Body)
		out.SpeakerNotes = v.markdown.PlainText(out.SpeakerNotes)
	}
	out.Bullets = compact(s.Bullets)
	out.Questions = compact(s.Questions)
	return out
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func knownKind(k model.SlideKind) bool {
	return slices.Contains(model.SlideKinds, k)
}
