package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jun/gophdeck/internal/credential"
	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
)

const (
	// DefaultRefreshWindow is how far ahead of expiry a token is refreshed.
	DefaultRefreshWindow = 5 * time.Minute
	// DefaultRefreshTimeout bounds a shared refresh call, which outlives any
	// single caller's context.
	DefaultRefreshTimeout = 15 * time.Second
	// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher refreshes against the provider's token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
}

func NewOAuthRefresher(config *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: config}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	// An empty access token forces the token source to hit the endpoint.
	return r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// AuthContext carries a credential that is valid for the current call.
type AuthContext struct {
	UserID      string
	AccessToken string
	Expiry      time.Time
}

// TokenSource returns a static source for the current access token.
func (a *AuthContext) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: a.AccessToken,
		TokenType:   "Bearer",
		Expiry:      a.Expiry,
	})
}

// HTTPClient returns a client that authorizes every request with the token.
func (a *AuthContext) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, a.TokenSource())
}

// TokenManager hands out valid credentials and refreshes them when they are
// about to expire. Concurrent refreshes for one user share a single call.
type TokenManager struct {
	store     credential.Store
	refresher Refresher
	window    time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time

	inflight singleflight.Group
}

// NewTokenManager creates a TokenManager. A non-positive window selects
// DefaultRefreshWindow.
func NewTokenManager(store credential.Store, refresher Refresher, window time.Duration, logger *zap.Logger) *TokenManager {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		store:     store,
		refresher: refresher,
		window:    window,
		timeout:   DefaultRefreshTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureValidCredential returns an auth context for userID together with the
// possibly refreshed credential.
func (m *TokenManager) EnsureValidCredential(ctx context.Context, userID string) (*AuthContext, *model.Credential, error) {
	cred, err := m.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, nil, deckerr.GoogleAuth(userID)
		}
		return nil, nil, err
	}
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		return nil, nil, deckerr.GoogleAuth(userID)
	}

	if !cred.ExpiresWithin(m.now(), m.window) {
		return newAuthContext(cred), cred, nil
	}

	// The refresh is shared, so it runs detached from this caller and is
	// bounded by its own timeout. The caller stops waiting when ctx ends.
	ch := m.inflight.DoChan(userID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(rctx, cred)
	})
	select {
	case <-ctx.Done():
		m.logger.Warn("gave up waiting for token refresh", zap.String("user_id", userID), zap.Error(ctx.Err()))
		return nil, nil, deckerr.TokenRefresh(userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("joined in-flight token refresh", zap.String("user_id", userID))
		}
		c := *res.Val.(*model.Credential)
		return newAuthContext(&c), &c, nil
	}
}

func (m *TokenManager) refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	expired := cred.Expired(m.now())

	token, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed",
			zap.String("user_id", cred.UserID),
			zap.Bool("expired", expired),
			zap.Error(err),
		)
		if expired {
			return nil, deckerr.TokenExpired(cred.UserID, err)
		}
		return nil, deckerr.TokenRefresh(cred.UserID, err)
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(defaultTokenLifetime)
	}
	update := model.CredentialUpdate{AccessToken: &token.AccessToken, Expiry: &expiry}
	if token.RefreshToken != "" && token.RefreshToken != cred.RefreshToken {
		update.RefreshToken = &token.RefreshToken
	}

	updated, err := m.store.Update(ctx, cred.UserID, update)
	if err != nil {
		return nil, deckerr.TokenRefresh(cred.UserID, err)
	}
	m.logger.Info("token refreshed",
		zap.String("user_id", cred.UserID),
		zap.Bool("rotated_refresh_token", update.RefreshToken != nil),
	)
	return updated, nil
}

func newAuthContext(c *model.Credential) *AuthContext {
	ac := &AuthContext{UserID: c.UserID, AccessToken: c.AccessToken}
	if c.Expiry != nil {
		ac.Expiry = *c.Expiry
	}
	return ac
}
