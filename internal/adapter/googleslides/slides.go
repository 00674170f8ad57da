package googleslides

import (
	"context"
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/adapter"
)

// SlidesAdapter implements adapter.SlidesAPI for Google Slides.
type SlidesAdapter struct {
	service *slides.Service
}

// NewSlidesAdapter creates a new SlidesAdapter.
// client should be an http.Client authorized with the user's credential.
func NewSlidesAdapter(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*SlidesAdapter, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := slides.NewService(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to create Slides client")
	}
	return &SlidesAdapter{service: srv}, nil
}

// Create creates an empty presentation. Google adds one default slide.
func (s *SlidesAdapter) Create(ctx context.Context, title string) (*slides.Presentation, error) {
	p, err := s.service.Presentations.Create(&slides.Presentation{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "unable to create presentation")
	}
	return p, nil
}

// Get returns a presentation by ID.
func (s *SlidesAdapter) Get(ctx context.Context, presentationID string) (*slides.Presentation, error) {
	p, err := s.service.Presentations.Get(presentationID).
		Fields("presentationId,title,slides(objectId)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err, "unable to get presentation")
	}
	return p, nil
}

// GetPage returns a page with its notes page.
func (s *SlidesAdapter) GetPage(ctx context.Context, presentationID, pageID string) (*slides.Page, error) {
	page, err := s.service.Presentations.Pages.Get(presentationID, pageID).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "unable to get page")
	}
	return page, nil
}

// BatchUpdate submits reqs as one batchUpdate call.
func (s *SlidesAdapter) BatchUpdate(ctx context.Context, presentationID string, reqs []*slides.Request) error {
	_, err := s.service.Presentations.BatchUpdate(presentationID, &slides.BatchUpdatePresentationRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return mapError(err, "batch update failed")
	}
	return nil
}

// mapError translates googleapi status codes into adapter sentinels.
func mapError(err error, msg string) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		var sentinel error
		switch gErr.Code {
		case http.StatusNotFound:
			sentinel = adapter.ErrNotFound
		case http.StatusTooManyRequests:
			sentinel = adapter.ErrRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			sentinel = adapter.ErrUnauthorized
		case http.StatusBadRequest:
			sentinel = adapter.ErrInvalidRequest
		}
		if sentinel != nil {
			return pkgerrors.Wrapf(sentinel, "%s: %s", msg, gErr.Message)
		}
	}
	return pkgerrors.Wrap(err, msg)
}
