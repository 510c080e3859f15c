package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/localparts/tokenbridge/internal/config"
)

// loadConfig reads the config file (if any) and applies environment
// overrides before validation. Environment wins over file values.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if s := viper.GetString("listen"); s != "" {
		cfg.Listen = s
	}
	if s := viper.GetString("upstream.url"); s != "" {
		cfg.Upstream.URL = s
	}
	if s := viper.GetString("token.secret"); s != "" {
		cfg.Token.Secret = s
	}
	if s := viper.GetString("token.audience"); s != "" {
		cfg.Token.Audience = s
	}
	if s := viper.GetString("token.service_role"); s != "" {
		cfg.Token.ServiceRole = s
	}
	if s := viper.GetString("identity.url"); s != "" {
		cfg.Identity.URL = s
	}
	if s := viper.GetString("identity.application"); s != "" {
		cfg.Identity.Application = s
	}
	if s := viper.GetString("identity.jwks_url"); s != "" {
		cfg.Identity.JWKSURL = s
	}
	if s := viper.GetString("provision.rpc"); s != "" {
		cfg.Provision.RPC = s
	}
	if s := viper.GetString("audit.type"); s != "" {
		cfg.Audit.Type = s
	}
	if s := viper.GetString("audit.path"); s != "" {
		cfg.Audit.Path = s
	}

	if err := overrideDuration("token.ttl", &cfg.Token.TTL); err != nil {
		return nil, err
	}
	if err := overrideDuration("identity.key_ttl", &cfg.Identity.KeyTTL); err != nil {
		return nil, err
	}
	if err := overrideDuration("provision.cache_ttl", &cfg.Provision.CacheTTL); err != nil {
		return nil, err
	}

	if err := overrideBool("audit.enabled", &cfg.Audit.Enabled); err != nil {
		return nil, err
	}
	if err := overrideBool("debug.enabled", &cfg.Debug.Enabled); err != nil {
		return nil, err
	}
	if err := overrideBool("debug.require_auth", &cfg.Debug.RequireAuth); err != nil {
		return nil, err
	}

	return cfg, nil
}

// A malformed value is a startup error; silently keeping the file or
// default value would mask an operator typo.
func overrideDuration(key string, dst *time.Duration) error {
	s := viper.GetString(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", key, s, err)
	}
	*dst = d
	return nil
}

func overrideBool(key string, dst *bool) error {
	s := viper.GetString(key)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", key, s, err)
	}
	*dst = b
	return nil
}
