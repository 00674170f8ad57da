// Package secret retrieves secrets from SSM Parameter Store or, in dev mode,
// from environment variables.
package secret

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by parameter name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches SecureString parameters with decryption.
type SSMResolver struct {
	client SSMClient
}

func NewSSMResolver(client SSMClient) *SSMResolver {
	return &SSMResolver{client: client}
}

func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", errors.Wrapf(err, "ssm get parameter %q", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Errorf("ssm parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver maps a parameter path onto an environment variable:
// "/gophdeck/jwt-secret" is read from JWT_SECRET.
type EnvResolver struct {
	lookup func(string) (string, bool)
}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val, ok := r.lookup(envName)
	if !ok || val == "" {
		return "", errors.Errorf("environment variable %q (from param %q) is not set", envName, name)
	}
	return val, nil
}

func paramNameToEnvVar(name string) string {
	parts := strings.Split(strings.TrimRight(name, "/"), "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// DevJWTSecret signs sessions when no JWT secret could be resolved in dev mode.
const DevJWTSecret = "default-dev-secret"

// Params names the parameters the service needs.
type Params struct {
	GoogleClientSecret string
	JWTSecret          string
	APIGatewaySecret   string
}

// Secrets are the resolved values of Params.
type Secrets struct {
	GoogleClientSecret string
	JWTSecret          string
	APIGatewaySecret   string
}

// ResolveAll resolves every parameter. Outside dev mode a missing JWT secret
// is an error since sessions could be forged with the fallback; other missing
// secrets are logged and left empty.
func ResolveAll(ctx context.Context, r Resolver, p Params, devMode bool, logger *zap.Logger) (*Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	get := func(name string) string {
		val, err := r.GetSecret(ctx, name)
		if err != nil {
			logger.Warn("failed to resolve secret", zap.String("param", name), zap.Error(err))
		}
		return val
	}

	s := &Secrets{
		GoogleClientSecret: get(p.GoogleClientSecret),
		JWTSecret:          get(p.JWTSecret),
		APIGatewaySecret:   get(p.APIGatewaySecret),
	}
	if s.JWTSecret == "" {
		if !devMode {
			return nil, errors.Errorf("jwt secret %q could not be resolved", p.JWTSecret)
		}
		s.JWTSecret = DevJWTSecret
	}
	return s, nil
}
