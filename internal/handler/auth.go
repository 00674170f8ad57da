package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jun/gophdeck/internal/auth"
)

// DemoUserPrefix marks users served by the in-memory slides backend.
const DemoUserPrefix = "demo-user-"

const (
	stateTTL       = 10 * time.Minute
	demoSessionTTL = time.Hour
)

// OAuthFlow is the consent flow the AuthHandler drives.
type OAuthFlow interface {
	GenerateAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (*auth.UserInfo, error)
	SaveToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// AuthHandler handles authentication requests.
type AuthHandler struct {
	flow    OAuthFlow
	session SessionConfig
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(flow OAuthFlow, session SessionConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if session.TTL <= 0 {
		session.TTL = 24 * time.Hour
	}
	return &AuthHandler{flow: flow, session: session, logger: logger}
}

// Login starts the Google consent flow. The state is kept in a short-lived
// cookie and checked on callback.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	state := auth.NewState()
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.flow.GenerateAuthURL(state),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {h.session.cookie(stateCookie, state, "/", stateTTL)},
		},
	}, nil
}

// Callback handles the OAuth2 callback from Google: it stores the user's
// credential and issues a session cookie.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if denied := req.QueryStringParameters["error"]; denied != "" {
		return h.redirect("error=" + url.QueryEscape(denied)), nil
	}

	code := req.QueryStringParameters["code"]
	if code == "" {
		return errorResponse(http.StatusBadRequest, "INVALID_REQUEST", "Missing code"), nil
	}
	state := req.QueryStringParameters["state"]
	expected := cookieValue(req, stateCookie)
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		h.logger.Warn("oauth state mismatch")
		return errorResponse(http.StatusBadRequest, "INVALID_STATE", "Invalid state"), nil
	}

	token, err := h.flow.ExchangeCode(ctx, code)
	if err != nil {
		h.logger.Error("exchange code failed", zap.Error(err))
		return errorResponse(http.StatusBadGateway, "GOOGLE_AUTH_ERROR", "Failed to exchange code"), nil
	}

	info, err := h.flow.UserInfo(ctx, token)
	if err != nil {
		h.logger.Error("get user info failed", zap.Error(err))
		return errorResponse(http.StatusBadGateway, "GOOGLE_AUTH_ERROR", "Failed to get user info"), nil
	}
	log := h.logger.With(zap.String("user_id", info.ID))

	if err := h.flow.SaveToken(ctx, info.ID, token); err != nil {
		if errors.Is(err, auth.ErrNoRefreshToken) {
			log.Warn("consent returned no refresh token")
			return h.redirect("error=relink_required"), nil
		}
		log.Error("save credential failed", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, "INTERNAL", "Failed to save credential"), nil
	}

	signed, err := IssueSessionToken(h.session.JWTSecret, info.ID, info.Email, info.Name, h.session.TTL)
	if err != nil {
		log.Error("sign session failed", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, "INTERNAL", "Failed to sign token"), nil
	}
	log.Info("google account linked")

	resp := h.redirect("success=true")
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {
			h.session.cookie(sessionCookie, signed, "/", h.session.TTL),
			h.session.cookie(stateCookie, "", "/", 0),
		},
	}
	return resp, nil
}

// DemoLogin issues a short session for a throwaway user whose presentations
// live in the in-memory backend.
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID := DemoUserPrefix + uuid.NewString()
	log := h.logger.With(zap.String("user_id", userID))

	placeholder := &oauth2.Token{
		AccessToken:  "demo-access-token",
		RefreshToken: "demo-refresh-token",
		Expiry:       time.Now().Add(demoSessionTTL),
		TokenType:    "Bearer",
	}
	if err := h.flow.SaveToken(ctx, userID, placeholder); err != nil {
		log.Error("save demo credential failed", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, "INTERNAL", "Failed to save demo user credential"), nil
	}

	signed, err := IssueSessionToken(h.session.JWTSecret, userID, "demo@gophdeck.local", "Demo User", demoSessionTTL)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "INTERNAL", "Failed to sign token"), nil
	}
	log.Info("demo session started")

	resp := h.redirect("demo=true")
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {h.session.cookie(sessionCookie, signed, "/", demoSessionTTL)},
	}
	return resp, nil
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := jsonResponse(http.StatusOK, map[string]bool{"success": true})
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {h.session.cookie(sessionCookie, "", "/", 0)},
	}
	return resp, nil
}

func (h *AuthHandler) redirect(query string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?%s", h.session.frontend(), query),
		},
	}
}
