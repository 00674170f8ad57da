package adapter

import (
	"context"
	"fmt"

	"google.golang.org/api/slides/v1"
)

// SlidesAPI is the subset of the Google Slides API the pipeline uses.
// Implementations exist for the real service and for an in-memory demo store.
type SlidesAPI interface {
	// Create creates an empty presentation.
	Create(ctx context.Context, title string) (*slides.Presentation, error)

	// Get returns the presentation with its slide list.
	Get(ctx context.Context, presentationID string) (*slides.Presentation, error)

	// GetPage returns one page, including its notes page once populated.
	GetPage(ctx context.Context, presentationID, pageID string) (*slides.Page, error)

	// BatchUpdate applies reqs in order. The batch succeeds or fails as a whole.
	BatchUpdate(ctx context.Context, presentationID string, reqs []*slides.Request) error
}

// EditURL returns the browser URL for a presentation.
func EditURL(presentationID string) string {
	return fmt.Sprintf("https://docs.google.com/presentation/d/%s/edit", presentationID)
}
