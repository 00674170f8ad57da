package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/jun/gophdeck/internal/credential"
	"github.com/jun/gophdeck/internal/model"
)

// Scopes requested at consent time.
var Scopes = []string{
	"https://www.googleapis.com/auth/presentations",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// ErrNoRefreshToken is returned when neither the token response nor the store
// holds a refresh token for the user.
var ErrNoRefreshToken = errors.New("no refresh token in response")

// UserInfo is the identity behind an OAuth token.
type UserInfo struct {
	ID    string
	Email string
	Name  string
}

// AuthService handles the OAuth2 consent flow and initial credential storage.
type AuthService struct {
	oauthConfig *oauth2.Config
	store       credential.Store
}

// NewAuthService creates a new AuthService.
// The oauthConfig should be constructed by the caller (e.g., from configuration).
func NewAuthService(oauthConfig *oauth2.Config, store credential.Store) *AuthService {
	return &AuthService{oauthConfig: oauthConfig, store: store}
}

// Config returns the OAuth2 config.
func (s *AuthService) Config() *oauth2.Config {
	return s.oauthConfig
}

// NewState returns a fresh anti-CSRF state value.
func NewState() string {
	return uuid.NewString()
}

// GenerateAuthURL returns the URL to redirect the user to for Google login.
// Offline access with forced approval makes Google issue a refresh token.
func (s *AuthService) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges the authorization code for a token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	return token, pkgerrors.Wrap(err, "exchange authorization code")
}

// UserInfo fetches the Google profile of the token's owner.
func (s *AuthService) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(s.oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create oauth2 service")
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get user info")
	}
	return &UserInfo{ID: info.Id, Email: info.Email, Name: info.Name}, nil
}

// SaveToken stores token as the user's credential. A response without a
// refresh token keeps the one already on file.
func (s *AuthService) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		existing, err := s.store.Get(ctx, userID)
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			return pkgerrors.Wrap(err, "load existing credential")
		}
		if existing == nil || existing.RefreshToken == "" {
			return ErrNoRefreshToken
		}
		refreshToken = existing.RefreshToken
	}

	c := &model.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		c.Expiry = &expiry
	}
	return pkgerrors.Wrap(s.store.Put(ctx, c), "save credential")
}
