// Package executor submits compiled slide requests to the Slides API in
// ordered batches and attaches speaker notes afterwards.
package executor

import (
	"context"
	"fmt"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/auth"
	"github.com/jun/gophdeck/internal/compiler"
	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
)

// DefaultBatchSize is the maximum number of requests per batchUpdate call.
const DefaultBatchSize = 100

// CredentialProvider yields a valid credential for a user.
type CredentialProvider interface {
	EnsureValidCredential(ctx context.Context, userID string) (*auth.AuthContext, *model.Credential, error)
}

// Options tune one Execute call.
type Options struct {
	Theme *model.ColorTheme
}

// Executor materializes validated slides into an existing presentation.
type Executor struct {
	credentials CredentialProvider
	provider    adapter.SlidesProvider
	batchSize   int
	logger      *zap.Logger
}

// NewExecutor creates an Executor. A non-positive batchSize selects DefaultBatchSize.
func NewExecutor(credentials CredentialProvider, provider adapter.SlidesProvider, batchSize int, logger *zap.Logger) *Executor {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		credentials: credentials,
		provider:    provider,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Execute compiles and submits vs. Only a credential failure is returned as
// an error. Every other problem is reported through the result.
func (e *Executor) Execute(ctx context.Context, userID, presentationID string, vs []model.ValidatedSlide, opts Options) (*model.PresentationResult, error) {
	log := e.logger.With(zap.String("user_id", userID), zap.String("presentation_id", presentationID))

	ac, _, err := e.credentials.EnsureValidCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	api, err := e.provider.GetAPI(ctx, ac)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get slides api")
	}

	result := &model.PresentationResult{
		PresentationID: presentationID,
		URL:            adapter.EditURL(presentationID),
		FailedSlides:   []int{},
		Warnings:       []string{},
	}

	var ops []*slides.Request
	if p, err := api.Get(ctx, presentationID); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not inspect presentation for a default slide: %v", err))
	} else if len(p.Slides) > 0 && !compiler.IsCompiledSlideID(p.Slides[0].ObjectId) {
		ops = append(ops, compiler.DeleteObject(p.Slides[0].ObjectId))
	}

	compiled := make(map[int]bool, len(vs))
	for _, s := range vs {
		reqs, err := compiler.Compile(s, s.Index, opts.Theme)
		if err != nil {
			result.FailedSlides = append(result.FailedSlides, s.Index)
			result.Warnings = append(result.Warnings, err.Error())
			log.Warn("slide compilation failed", zap.Int("slide_index", s.Index), zap.Error(err))
			continue
		}
		compiled[s.Index] = true
		ops = append(ops, reqs...)
	}
	result.SuccessCount = len(vs) - len(result.FailedSlides)

	result.Warnings = append(result.Warnings, e.submit(ctx, api, presentationID, ops, log)...)
	result.Warnings = append(result.Warnings, e.attachNotes(ctx, api, presentationID, vs, compiled, log)...)
	return result, nil
}

// submit sends ops in order, one batch at a time. A failed batch is reported
// and the next batch still runs.
func (e *Executor) submit(ctx context.Context, api adapter.SlidesAPI, presentationID string, ops []*slides.Request, log *zap.Logger) []string {
	if len(ops) == 0 {
		return nil
	}
	total := (len(ops) + e.batchSize - 1) / e.batchSize

	var warnings []string
	n := 0
	for batch := range slices.Chunk(ops, e.batchSize) {
		n++
		if err := api.BatchUpdate(ctx, presentationID, batch); err != nil {
			werr := deckerr.SlideCreation(n, total, err)
			warnings = append(warnings, werr.Error())
			log.Warn("batch failed", zap.Int("batch", n), zap.Int("batches", total), zap.Int("requests", len(batch)), zap.Error(err))
			continue
		}
		log.Debug("batch submitted", zap.Int("batch", n), zap.Int("batches", total), zap.Int("requests", len(batch)))
	}
	return warnings
}

// attachNotes inserts speaker notes slide by slide.
func (e *Executor) attachNotes(ctx context.Context, api adapter.SlidesAPI, presentationID string, vs []model.ValidatedSlide, compiled map[int]bool, log *zap.Logger) []string {
	var warnings []string
	for _, s := range vs {
		if !s.HasNotes() || !compiled[s.Index] {
			continue
		}
		if err := e.attachNote(ctx, api, presentationID, s); err != nil {
			werr := deckerr.SpeakerNotes(s.Index, err)
			warnings = append(warnings, werr.Error())
			log.Warn("speaker notes failed", zap.Int("slide_index", s.Index), zap.Error(err))
		}
	}
	return warnings
}

func (e *Executor) attachNote(ctx context.Context, api adapter.SlidesAPI, presentationID string, s model.ValidatedSlide) error {
	page, err := api.GetPage(ctx, presentationID, compiler.SlideID(s.Index))
	if err != nil {
		return err
	}
	bodyID, ok := notesBodyID(page)
	if !ok {
		return pkgerrors.New("notes body placeholder not found")
	}
	return api.BatchUpdate(ctx, presentationID, []*slides.Request{compiler.InsertText(bodyID, s.SpeakerNotes)})
}

func notesBodyID(page *slides.Page) (string, bool) {
	if page.SlideProperties == nil || page.SlideProperties.NotesPage == nil {
		return "", false
	}
	for _, el := range page.SlideProperties.NotesPage.PageElements {
		if el.Shape != nil && el.Shape.Placeholder != nil && el.Shape.Placeholder.Type == "BODY" {
			return el.ObjectId, true
		}
	}
	return "", false
}
