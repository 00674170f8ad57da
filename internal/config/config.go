// Package config loads service configuration from an optional YAML file and
// GOPHDECK_* environment variables layered over built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/jun/gophdeck/internal/ratelimit"
)

const (
	EnvPrefix   = "GOPHDECK_"
	defaultFile = "config.yaml"
)

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	DevMode     bool   `koanf:"devMode"`
	FrontendURL string `koanf:"frontendUrl" validate:"required,url"`
	Log         Log    `koanf:"log"`

	Google  GoogleConfig  `koanf:"google"`
	AWS     AWSConfig     `koanf:"aws"`
	Secrets SecretsConfig `koanf:"secrets"`

	Content   ContentConfig   `koanf:"content"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rateLimit"`
}

type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// GoogleConfig holds the public half of the OAuth client. The client secret
// is resolved through Secrets.GoogleClientSecret.
type GoogleConfig struct {
	ClientID    string `koanf:"clientId"`
	RedirectURL string `koanf:"redirectUrl"`
	// Endpoint overrides the Slides API base URL; empty uses Google's.
	Endpoint string `koanf:"endpoint"`
}

type AWSConfig struct {
	CredentialsTable   string `koanf:"credentialsTable" validate:"required"`
	PresentationsTable string `koanf:"presentationsTable" validate:"required"`
	KMSKeyID           string `koanf:"kmsKeyId" validate:"required"`
}

// SecretsConfig names the SSM parameters holding secrets. In dev mode the
// same names map onto environment variables.
type SecretsConfig struct {
	GoogleClientSecret string `koanf:"googleClientSecret" validate:"required"`
	JWTSecret          string `koanf:"jwtSecret" validate:"required"`
	APIGatewaySecret   string `koanf:"apiGatewaySecret" validate:"required"`
}

type ContentConfig struct {
	TrustedImageDomains   []string `koanf:"trustedImageDomains"`
	MaxOperationsPerSlide int      `koanf:"maxOperationsPerSlide" validate:"min=1"`
	FlattenMarkdown       bool     `koanf:"flattenMarkdown"`
}

type ExecutorConfig struct {
	BatchSize int `koanf:"batchSize" validate:"min=1,max=100"`
}

type AuthConfig struct {
	RefreshWindow time.Duration `koanf:"refreshWindow" validate:"min=0"`
	SessionTTL    time.Duration `koanf:"sessionTtl" validate:"min=1m"`
}

type RateLimitConfig struct {
	ratelimit.Config `koanf:",squash"`

	Enabled bool                   `koanf:"enabled"`
	Backend string                 `koanf:"backend" validate:"oneof=memory redis"`
	Redis   ratelimit.RedisOptions `koanf:"redis"`
}

// defaults are the flattened key paths applied before the file and the environment.
var defaults = map[string]any{
	"devMode":                       false,
	"frontendUrl":                   "http://localhost:3000",
	"log.level":                     "info",
	"google.clientId":               "",
	"google.redirectUrl":            "",
	"google.endpoint":               "",
	"aws.credentialsTable":          "UserCredentials",
	"aws.presentationsTable":        "DemoPresentations",
	"aws.kmsKeyId":                  "alias/gophdeck-token-key",
	"secrets.googleClientSecret":    "/gophdeck/google-client-secret",
	"secrets.jwtSecret":             "/gophdeck/jwt-secret",
	"secrets.apiGatewaySecret":      "/gophdeck/api-gateway-secret",
	"content.trustedImageDomains":   []string{},
	"content.maxOperationsPerSlide": 10,
	"content.flattenMarkdown":       true,
	"executor.batchSize":            100,
	"auth.refreshWindow":            "5m",
	"auth.sessionTtl":               "24h",
	"rateLimit.enabled":             true,
	"rateLimit.backend":             RateLimitBackendMemory,
	"rateLimit.limit":               10,
	"rateLimit.window":              "1m",
	"rateLimit.redis.addr":          "localhost:6379",
	"rateLimit.redis.password":      "",
	"rateLimit.redis.db":            0,
}

// Load reads defaults, then the first config.yaml found in searchPaths, then
// GOPHDECK_* environment variables, and validates the result.
func Load(searchPaths ...string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.Wrapf(err, "set default %s", key)
		}
	}

	if path, ok := findFile(searchPaths); ok {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s failed", path)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// GOPHDECK_RATELIMIT_REDIS_ADDR -> rateLimit.redis.addr
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	cfg.Content.TrustedImageDomains = compact(cfg.Content.TrustedImageDomains)
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.defaultRedirectURL()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// defaultRedirectURL points at the local server in dev mode and at the
// CloudFront-proxied API otherwise.
func (c *Config) defaultRedirectURL() string {
	if c.DevMode {
		return "http://localhost:8080/auth/callback"
	}
	return strings.TrimSuffix(c.FrontendURL, "/") + "/api/auth/callback"
}

func findFile(searchPaths []string) (string, bool) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	if explicit := os.Getenv(EnvPrefix + "CONFIG_FILE"); explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, true
		}
	}
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, defaultFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}
	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	if len(current) == 0 {
		return "", nil, false
	}
	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
