package googleslides

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/auth"
)

// Provider implements adapter.SlidesProvider for Google Slides.
type Provider struct {
	opts []option.ClientOption
}

// NewProvider creates a new Google Slides provider. opts are appended to
// every client, e.g. option.WithEndpoint in tests.
func NewProvider(opts ...option.ClientOption) *Provider {
	return &Provider{opts: opts}
}

// GetAPI returns a SlidesAdapter authorized by ac.
func (p *Provider) GetAPI(ctx context.Context, ac *auth.AuthContext) (adapter.SlidesAPI, error) {
	api, err := NewSlidesAdapter(ctx, ac.HTTPClient(ctx), p.opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create slides adapter")
	}
	return api, nil
}
