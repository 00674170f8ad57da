package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	sessionCookie = "session_token"
	stateCookie   = "oauth_state"
)

// SessionConfig controls session tokens and cookies.
type SessionConfig struct {
	JWTSecret   string
	FrontendURL string
	TTL         time.Duration
	// DevMode relaxes SameSite to Lax for the local server.
	DevMode bool
}

func (c SessionConfig) sameSite() string {
	if c.DevMode {
		return "Lax"
	}
	return "None"
}

func (c SessionConfig) frontend() string {
	if c.FrontendURL == "" {
		return "http://localhost:3000"
	}
	return strings.TrimSuffix(c.FrontendURL, "/")
}

func (c SessionConfig) cookie(name, value, path string, maxAge time.Duration) string {
	return fmt.Sprintf("%s=%s; HttpOnly; Path=%s; Max-Age=%d; SameSite=%s; Secure",
		name, value, path, int(maxAge.Seconds()), c.sameSite())
}

// IssueSessionToken signs an HS256 session JWT for userID.
func IssueSessionToken(secret, userID, email, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"name":  name,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed, errors.Wrap(err, "sign session token")
}

func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func cookieValue(req events.APIGatewayProxyRequest, name string) string {
	for _, part := range strings.Split(header(req, "Cookie"), ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, name+"="); ok {
			return value
		}
	}
	return ""
}

// GetUserID extracts the user ID from the Authorization header or session cookie.
func GetUserID(req events.APIGatewayProxyRequest, jwtSecret string) (string, error) {
	tokenString, ok := strings.CutPrefix(header(req, "Authorization"), "Bearer ")
	if !ok || tokenString == "" {
		tokenString = cookieValue(req, sessionCookie)
	}
	if tokenString == "" {
		return "", errors.New("no authorization token found")
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Wrap(err, "invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token claims")
	}
	return sub, nil
}

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	RelinkRequired bool   `json:"relink_required,omitempty"`
	SlideIndex     *int   `json:"slide_index,omitempty"`
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func errorResponse(status int, code, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, map[string]errorBody{"error": {Code: code, Message: message}})
}
