package credentials

import (
	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig implements Config from environment variables.
//
// The token TTLs are duration strings ("15m", "168h") shared between signing
// and the expires_in value reported to clients. Keep them parseable by
// time.ParseDuration.
type EnvConfig struct {
	AccessSigningKey       string   `env:"CREDENTIALS_ACCESS_SIGNING_KEY,notEmpty"`
	RefreshSigningKey      string   `env:"CREDENTIALS_REFRESH_SIGNING_KEY,notEmpty"`
	AccessTokenExpiration  string   `env:"CREDENTIALS_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenExpiration string   `env:"CREDENTIALS_REFRESH_TOKEN_TTL" envDefault:"168h"`
	Issuer                 string   `env:"CREDENTIALS_ISSUER"`
	Audience               []string `env:"CREDENTIALS_AUDIENCE" envSeparator:","`
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig loads configuration from environment variables.
func NewEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c *EnvConfig) GetAccessSigningKey() string { return c.AccessSigningKey }

func (c *EnvConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }

func (c *EnvConfig) GetAccessTokenExpiration() string { return c.AccessTokenExpiration }

func (c *EnvConfig) GetRefreshTokenExpiration() string { return c.RefreshTokenExpiration }

func (c *EnvConfig) GetIssuer() string { return c.Issuer }

func (c *EnvConfig) GetAudience() []string { return c.Audience }
