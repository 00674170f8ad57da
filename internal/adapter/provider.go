package adapter

import (
	"context"

	"github.com/jun/gophdeck/internal/auth"
)

// SlidesProvider builds a SlidesAPI bound to one user's credential.
type SlidesProvider interface {
	// GetAPI returns a SlidesAPI authorized by ac.
	GetAPI(ctx context.Context, ac *auth.AuthContext) (SlidesAPI, error)
}
