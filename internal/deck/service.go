// Package deck runs the presentation pipeline: validation, credential,
// presentation creation and batched execution.
package deck

import (
	"context"
	"fmt"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/compiler"
	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/executor"
	"github.com/jun/gophdeck/internal/model"
	"github.com/jun/gophdeck/internal/validate"
)

// DefaultTitle names presentations created without a title.
const DefaultTitle = "Untitled presentation"

// Options configure one presentation. The zero value uses the default theme
// and only trusted image hosts.
type Options struct {
	Theme                string `json:"theme,omitempty" validate:"omitempty,max=32"`
	AllowUntrustedImages bool   `json:"allowUntrustedImages,omitempty"`
}

// CreateRequest is the input of CreatePresentation.
type CreateRequest struct {
	Title   string               `json:"title" validate:"max=255"`
	Slides  []model.SlideContent `json:"slides" validate:"required,min=1,max=100,dive"`
	Options Options              `json:"options"`
}

// Service creates presentations.
type Service struct {
	validator   *validate.Validator
	credentials executor.CredentialProvider
	provider    adapter.SlidesProvider
	executor    *executor.Executor
	logger      *zap.Logger
}

func NewService(v *validate.Validator, credentials executor.CredentialProvider, provider adapter.SlidesProvider, exec *executor.Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		validator:   v,
		credentials: credentials,
		provider:    provider,
		executor:    exec,
		logger:      logger,
	}
}

// CreatePresentation validates req.Slides, creates a new presentation and
// fills it. Slides over the operation budget are left out and reported in
// FailedSlides. Credential failures are returned as errors; every other
// problem shows up as a warning on the result.
func (s *Service) CreatePresentation(ctx context.Context, userID string, req CreateRequest) (*model.PresentationResult, error) {
	log := s.logger.With(zap.String("user_id", userID))

	var warnings []string
	theme := compiler.DefaultTheme()
	if req.Options.Theme != "" {
		if t, ok := compiler.ThemeByName(req.Options.Theme); ok {
			theme = t
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown theme %q, using %s", req.Options.Theme, compiler.DefaultThemeName))
		}
	}

	opts := validate.Options{AllowUntrustedImages: req.Options.AllowUntrustedImages}
	var validated []model.ValidatedSlide
	var excluded []int
	for i, slide := range req.Slides {
		vs, _, w, err := s.validator.ValidateSlide(i, slide, opts)
		if err != nil {
			if kind, _ := deckerr.KindOf(err); kind != deckerr.KindBatchSizeExceeded {
				return nil, err
			}
			excluded = append(excluded, i)
			continue
		}
		validated = append(validated, vs)
		warnings = append(warnings, w...)
	}

	ac, _, err := s.credentials.EnsureValidCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	api, err := s.provider.GetAPI(ctx, ac)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get slides api")
	}

	title := req.Title
	if title == "" {
		title = DefaultTitle
	}
	p, err := api.Create(ctx, title)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create presentation")
	}
	log = log.With(zap.String("presentation_id", p.PresentationId))

	result := &model.PresentationResult{
		PresentationID: p.PresentationId,
		URL:            adapter.EditURL(p.PresentationId),
		FailedSlides:   []int{},
		Warnings:       []string{},
	}
	if len(validated) > 0 {
		result, err = s.executor.Execute(ctx, userID, p.PresentationId, validated, executor.Options{Theme: theme})
		if err != nil {
			return nil, err
		}
	}

	result.FailedSlides = append(result.FailedSlides, excluded...)
	slices.Sort(result.FailedSlides)
	result.Warnings = append(warnings, result.Warnings...)
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	log.Info("presentation created",
		zap.Int("requested", len(req.Slides)),
		zap.Int("success", result.SuccessCount),
		zap.Ints("failed", result.FailedSlides),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}
