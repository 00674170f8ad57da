package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/deck"
	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
	"github.com/jun/gophdeck/internal/ratelimit"
)

// PresentationCreator runs the presentation pipeline.
type PresentationCreator interface {
	CreatePresentation(ctx context.Context, userID string, req deck.CreateRequest) (*model.PresentationResult, error)
}

// PresentationHandler serves POST /presentations.
type PresentationHandler struct {
	creator   PresentationCreator
	limiter   ratelimit.Limiter
	validate  *validator.Validate
	jwtSecret string
	logger    *zap.Logger
}

// NewPresentationHandler creates a PresentationHandler. A nil limiter admits
// every request.
func NewPresentationHandler(creator PresentationCreator, limiter ratelimit.Limiter, jwtSecret string, logger *zap.Logger) *PresentationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresentationHandler{
		creator:   creator,
		limiter:   limiter,
		validate:  validator.New(),
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Create builds a presentation from the slide list in the request body.
func (h *PresentationHandler) Create(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"), nil
	}
	log := h.logger.With(zap.String("user_id", userID))

	if h.limiter != nil {
		if err := h.limiter.Allow(ctx, userID); err != nil {
			return h.failure(log, err), nil
		}
	}

	var body deck.CreateRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"), nil
	}
	if err := h.validate.Struct(body); err != nil {
		return errorResponse(http.StatusBadRequest, "INVALID_REQUEST", describeValidation(err)), nil
	}

	result, err := h.creator.CreatePresentation(ctx, userID, body)
	if err != nil {
		return h.failure(log, err), nil
	}
	return jsonResponse(http.StatusCreated, result), nil
}

// failure maps a pipeline error to a response.
func (h *PresentationHandler) failure(log *zap.Logger, err error) events.APIGatewayProxyResponse {
	var de *deckerr.Error
	if errors.As(err, &de) {
		log.Warn("presentation request failed", zap.String("code", de.Code()), zap.Error(err))
		body := errorBody{
			Code:           de.Code(),
			Message:        de.Error(),
			RelinkRequired: de.Kind == deckerr.KindGoogleAuth || de.Kind == deckerr.KindTokenExpired,
		}
		if de.SlideIndex >= 0 {
			idx := de.SlideIndex
			body.SlideIndex = &idx
		}
		resp := jsonResponse(de.Kind.HTTPStatus(), map[string]errorBody{"error": body})
		if de.Kind == deckerr.KindRateLimit && de.RetryAfter > 0 {
			resp.Headers["Retry-After"] = strconv.Itoa(de.RetryAfter)
		}
		return resp
	}

	switch {
	case errors.Is(err, adapter.ErrUnauthorized):
		log.Warn("slides api rejected credential", zap.Error(err))
		return jsonResponse(http.StatusUnauthorized, map[string]errorBody{"error": {
			Code:           deckerr.KindGoogleAuth.Code(),
			Message:        "Google rejected the linked account",
			RelinkRequired: true,
		}})
	case errors.Is(err, adapter.ErrRateLimited):
		log.Warn("slides api throttled", zap.Error(err))
		return errorResponse(http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", "Google Slides is throttling requests")
	default:
		log.Error("presentation request failed", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, "INTERNAL", "Failed to create presentation")
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
