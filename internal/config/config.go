package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultUpstreamURL = "http://postgrest:3000"
	DefaultIdentityURL = "https://authentik.tekonline.com.au"
	DefaultAudience    = "localparts"
	DefaultServiceRole = "authenticator"
	DefaultTokenTTL    = time.Hour
	DefaultKeyTTL      = 15 * time.Minute
	DefaultRPC         = "create_user_role"
	DefaultListen      = ":8000"
)

type Config struct {
	// Listen is the address the proxy binds to.
	Listen string `yaml:"listen"`

	Upstream  UpstreamConfig  `yaml:"upstream"`
	Identity  IdentityConfig  `yaml:"identity"`
	Token     TokenConfig     `yaml:"token"`
	Provision ProvisionConfig `yaml:"provision"`
	Audit     AuditConfig     `yaml:"audit"`
	Debug     DebugConfig     `yaml:"debug"`
}

// UpstreamConfig describes the row-level-security data API (PostgREST)
// that all requests are forwarded to.
type UpstreamConfig struct {
	URL string `yaml:"url"`
}

// IdentityConfig describes the OIDC identity provider whose tokens are
// accepted on the inbound side.
type IdentityConfig struct {
	// URL is the base URL of the identity provider.
	URL string `yaml:"url"`

	// Application is the provider-side application slug used to derive
	// the JWKS endpoint.
	Application string `yaml:"application"`

	// JWKSURL overrides the derived key-publication endpoint entirely.
	JWKSURL string `yaml:"jwks_url"`

	// KeyTTL bounds how long a fetched verification key is trusted
	// before it is refetched.
	KeyTTL time.Duration `yaml:"key_ttl"`
}

// TokenConfig controls minting of downstream tokens.
type TokenConfig struct {
	// Secret is the symmetric key shared with the data API.
	Secret string `yaml:"secret"`

	// Audience is the aud claim checked on inbound tokens and set on
	// minted ones.
	Audience string `yaml:"audience"`

	// TTL is the lifetime of minted tokens.
	TTL time.Duration `yaml:"ttl"`

	// ServiceRole is the privileged role used for provisioning calls.
	// It must not collide with any user subject.
	ServiceRole string `yaml:"service_role"`
}

type ProvisionConfig struct {
	// RPC is the name of the role-creation function on the data API.
	RPC string `yaml:"rpc"`

	// CacheTTL enables the already-provisioned memo. Zero disables it,
	// meaning every request pays the provisioning call.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // "file" or "memory"
	Path    string `yaml:"path"`
}

type DebugConfig struct {
	// Enabled exposes the /debug/* introspection endpoints.
	Enabled bool `yaml:"enabled"`

	// RequireAuth gates the debug endpoints behind a service-role token.
	RequireAuth bool `yaml:"require_auth"`
}

// JWKSEndpoint returns the key-publication URL, either the configured
// override or the one derived from the identity provider base URL.
func (c *Config) JWKSEndpoint() string {
	if c.Identity.JWKSURL != "" {
		return c.Identity.JWKSURL
	}
	base := strings.TrimSuffix(c.Identity.URL, "/")
	return fmt.Sprintf("%s/application/o/%s/jwks/", base, c.Identity.Application)
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Identity.URL == "" {
		c.Identity.URL = DefaultIdentityURL
	}
	if c.Identity.Application == "" {
		c.Identity.Application = DefaultAudience
	}
	if c.Identity.KeyTTL == 0 {
		c.Identity.KeyTTL = DefaultKeyTTL
	}
	if c.Token.Audience == "" {
		c.Token.Audience = DefaultAudience
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = DefaultTokenTTL
	}
	if c.Token.ServiceRole == "" {
		c.Token.ServiceRole = DefaultServiceRole
	}
	if c.Provision.RPC == "" {
		c.Provision.RPC = DefaultRPC
	}
	if c.Audit.Type == "" {
		c.Audit.Type = "memory"
	}
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
// An empty path yields the defaults (environment overrides are applied by
// the caller before Validate).
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return errors.New("token.secret is required (PGRST_JWT_SECRET)")
	}
	if _, err := url.ParseRequestURI(c.Upstream.URL); err != nil {
		return fmt.Errorf("upstream.url is not a valid URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.JWKSEndpoint()); err != nil {
		return fmt.Errorf("jwks endpoint is not a valid URL: %w", err)
	}
	if c.Token.TTL <= 0 {
		return errors.New("token.ttl must be positive")
	}
	if c.Token.ServiceRole == "" {
		return errors.New("token.service_role must not be empty")
	}
	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return errors.New("audit.path is required for file auditing")
	}
	return nil
}
