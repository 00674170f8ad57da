package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/adapter/googleslides"
	"github.com/jun/gophdeck/internal/adapter/memory"
	"github.com/jun/gophdeck/internal/auth"
	"github.com/jun/gophdeck/internal/config"
	"github.com/jun/gophdeck/internal/credential"
	"github.com/jun/gophdeck/internal/crypto"
	"github.com/jun/gophdeck/internal/deck"
	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/executor"
	"github.com/jun/gophdeck/internal/handler"
	"github.com/jun/gophdeck/internal/logger"
	"github.com/jun/gophdeck/internal/model"
	"github.com/jun/gophdeck/internal/ratelimit"
	"github.com/jun/gophdeck/internal/secret"
	"github.com/jun/gophdeck/internal/validate"
)

// HybridProvider delegates to the Google Slides or the in-memory provider
// based on user ID.
type HybridProvider struct {
	googleProvider adapter.SlidesProvider
	memoryProvider adapter.SlidesProvider
}

func (h *HybridProvider) GetAPI(ctx context.Context, ac *auth.AuthContext) (adapter.SlidesAPI, error) {
	if strings.HasPrefix(ac.UserID, handler.DemoUserPrefix) {
		return h.memoryProvider.GetAPI(ctx, ac)
	}
	return h.googleProvider.GetAPI(ctx, ac)
}

// HybridCredentials serves demo users straight from the store, since their
// placeholder tokens can never be refreshed. Everyone else goes through the
// TokenManager.
type HybridCredentials struct {
	tokens *auth.TokenManager
	store  credential.Store
}

func (h *HybridCredentials) EnsureValidCredential(ctx context.Context, userID string) (*auth.AuthContext, *model.Credential, error) {
	if !strings.HasPrefix(userID, handler.DemoUserPrefix) {
		return h.tokens.EnsureValidCredential(ctx, userID)
	}
	cred, err := h.store.Get(ctx, userID)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, nil, deckerr.GoogleAuth(userID)
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "load demo credential")
	}
	ac := &auth.AuthContext{UserID: userID, AccessToken: cred.AccessToken}
	if cred.Expiry != nil {
		ac.Expiry = *cred.Expiry
	}
	return ac, cred, nil
}

// App holds the dependencies for the Lambda function.
type App struct {
	cfg                 *config.Config
	logger              *zap.Logger
	authHandler         *handler.AuthHandler
	presentationHandler *handler.PresentationHandler
	apiGatewaySecret    string
}

// components are the externally backed pieces NewApp builds from AWS and
// Google clients.
type components struct {
	store          credential.Store
	oauthConfig    *oauth2.Config
	googleProvider adapter.SlidesProvider
	memoryProvider adapter.SlidesProvider
	limiter        ratelimit.Limiter
	secrets        *secret.Secrets
}

// NewApp loads configuration and initializes the application dependencies.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load(".", "config")
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.DevMode)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build logger")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to load SDK config")
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	var encryptor crypto.Encryptor
	var resolver secret.Resolver
	if cfg.DevMode {
		encryptor = crypto.NewMockEncryptor()
		resolver = secret.NewEnvResolver()
		log.Info("dev mode: using MockEncryptor, EnvResolver and in-memory slides")
	} else {
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.AWS.KMSKeyID)
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
	}

	secrets, err := secret.ResolveAll(ctx, resolver, secret.Params{
		GoogleClientSecret: cfg.Secrets.GoogleClientSecret,
		JWTSecret:          cfg.Secrets.JWTSecret,
		APIGatewaySecret:   cfg.Secrets.APIGatewaySecret,
	}, cfg.DevMode, log)
	if err != nil {
		return nil, err
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: secrets.GoogleClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       auth.Scopes,
		Endpoint:     google.Endpoint,
	}

	var slidesOpts []option.ClientOption
	if cfg.Google.Endpoint != "" {
		slidesOpts = append(slidesOpts, option.WithEndpoint(cfg.Google.Endpoint))
	}

	limiter, err := newLimiter(ctx, cfg.RateLimit, log)
	if err != nil {
		return nil, err
	}

	return newApp(cfg, log, components{
		store:          credential.NewDynamoStore(dynamoClient, cfg.AWS.CredentialsTable, encryptor),
		oauthConfig:    oauthConfig,
		googleProvider: googleslides.NewProvider(slidesOpts...),
		memoryProvider: memory.NewProvider(dynamoClient, cfg.AWS.PresentationsTable),
		limiter:        limiter,
		secrets:        secrets,
	}), nil
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, log *zap.Logger) (ratelimit.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Backend == config.RateLimitBackendRedis {
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(client, cfg.Config, log), nil
	}
	l := ratelimit.NewMemoryLimiter(cfg.Config, log)
	l.Start(ctx)
	return l, nil
}

func newApp(cfg *config.Config, log *zap.Logger, c components) *App {
	if log == nil {
		log = zap.NewNop()
	}
	var provider adapter.SlidesProvider = &HybridProvider{
		googleProvider: c.googleProvider,
		memoryProvider: c.memoryProvider,
	}
	if cfg.DevMode {
		provider = c.memoryProvider
	}

	tokens := auth.NewTokenManager(c.store, auth.NewOAuthRefresher(c.oauthConfig), cfg.Auth.RefreshWindow, log)
	credentials := &HybridCredentials{tokens: tokens, store: c.store}

	v := validate.NewValidator(validate.Config{
		TrustedDomains:        cfg.Content.TrustedImageDomains,
		MaxOperationsPerSlide: cfg.Content.MaxOperationsPerSlide,
		FlattenMarkdown:       cfg.Content.FlattenMarkdown,
	}, log)
	exec := executor.NewExecutor(credentials, provider, cfg.Executor.BatchSize, log)
	service := deck.NewService(v, credentials, provider, exec, log)

	session := handler.SessionConfig{
		JWTSecret:   c.secrets.JWTSecret,
		FrontendURL: cfg.FrontendURL,
		TTL:         cfg.Auth.SessionTTL,
		DevMode:     cfg.DevMode,
	}

	return &App{
		cfg:                 cfg,
		logger:              log,
		authHandler:         handler.NewAuthHandler(auth.NewAuthService(c.oauthConfig, c.store), session, log),
		presentationHandler: handler.NewPresentationHandler(service, c.limiter, c.secrets.JWTSecret, log),
		apiGatewaySecret:    c.secrets.APIGatewaySecret,
	}
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	path := strings.TrimPrefix(req.Path, "/api")
	method := req.HTTPMethod
	log := app.logger.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
	)
	log.Debug("request")

	if method == http.MethodOptions {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}), nil
	}

	// Only CloudFront knows the origin-verify secret.
	if !app.cfg.DevMode && !app.originVerified(req) {
		log.Warn("missing or invalid X-Origin-Verify header")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusForbidden,
			Body:       "Forbidden: Access denied",
		}, nil
	}

	var (
		resp events.APIGatewayProxyResponse
		err  error
	)
	switch {
	case path == "/auth/login" && method == http.MethodGet:
		resp, err = app.authHandler.Login(ctx, req)
	case path == "/auth/callback" && method == http.MethodGet:
		resp, err = app.authHandler.Callback(ctx, req)
	case path == "/auth/demo-login" && method == http.MethodGet:
		resp, err = app.authHandler.DemoLogin(ctx, req)
	case path == "/auth/logout" && method == http.MethodPost:
		resp, err = app.authHandler.Logout(ctx, req)
	case path == "/presentations" && method == http.MethodPost:
		resp, err = app.presentationHandler.Create(ctx, req)
	default:
		resp = events.APIGatewayProxyResponse{
			StatusCode: http.StatusNotFound,
			Body:       "Not Found: " + method + " " + path,
		}
	}
	if err != nil {
		log.Error("handler error", zap.Error(err))
		resp = events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}

	log.Info("request handled", zap.Int("status", resp.StatusCode))
	return app.corsResponse(resp), nil
}

func (app *App) originVerified(req events.APIGatewayProxyRequest) bool {
	if app.apiGatewaySecret == "" {
		return false
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "X-Origin-Verify") {
			return v == app.apiGatewaySecret
		}
	}
	return false
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.cfg.FrontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}
