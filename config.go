package sessiontrust

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/sessiontrust/password"
)

// EnvPrefix prefixes every variable read by [LoadConfigFromEnv].
const EnvPrefix = "SESSIONTRUST_"

// Config is the engine configuration. Start from [DefaultConfig] and override fields,
// or load overrides from the environment with [LoadConfigFromEnv].
type Config struct {
	Token         TokenConfig         `envPrefix:"TOKEN_"`
	Cookie        CookieConfig        `envPrefix:"COOKIE_"`
	Password      PasswordConfig      `envPrefix:"PASSWORD_"`
	TwoFactor     TwoFactorConfig     `envPrefix:"TWO_FACTOR_"`
	PasswordReset PasswordResetConfig `envPrefix:"PASSWORD_RESET_"`
	Session       SessionConfig       `envPrefix:"SESSION_"`
	Security      SecurityConfig      `envPrefix:"SECURITY_"`
	Audit         AuditConfig         `envPrefix:"AUDIT_"`
}

// TokenConfig controls session token signing. Lifetime also sets the cookie Max-Age.
type TokenConfig struct {
	Lifetime      time.Duration `env:"LIFETIME"`
	SigningMethod string        `env:"SIGNING_METHOD"`
	// Secret is the HS256 key, or the Ed25519 private key (raw or PEM) for ed25519.
	Secret    string        `env:"SECRET"`
	PublicKey string        `env:"PUBLIC_KEY"`
	Issuer    string        `env:"ISSUER"`
	Leeway    time.Duration `env:"LEEWAY"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string `env:"NAME"`
	Path   string `env:"PATH"`
	Domain string `env:"DOMAIN"`
	Secure bool   `env:"SECURE"`
}

// PasswordConfig controls hashing cost and the complexity policy.
type PasswordConfig struct {
	Memory         uint32 `env:"MEMORY"`
	Time           uint32 `env:"TIME"`
	Parallelism    uint8  `env:"PARALLELISM"`
	SaltLength     uint32 `env:"SALT_LENGTH"`
	KeyLength      uint32 `env:"KEY_LENGTH"`
	MinLength      int    `env:"MIN_LENGTH"`
	UpgradeOnLogin bool   `env:"UPGRADE_ON_LOGIN"`
}

// TwoFactorConfig controls the emailed login code. CodeTTL 0 means codes never expire.
type TwoFactorConfig struct {
	CodeTTL time.Duration `env:"CODE_TTL"`
}

// PasswordResetConfig controls the reset flow. TokenTTL 0 means tokens never expire.
type PasswordResetConfig struct {
	TokenTTL              time.Duration `env:"TOKEN_TTL"`
	LinkBaseURL           string        `env:"LINK_BASE_URL"`
	RevokeSessionsOnReset bool          `env:"REVOKE_SESSIONS"`
}

// SessionConfig controls session lookup.
type SessionConfig struct {
	// RevocationAwareLookup makes ResolveSession reject tokens that were revoked.
	RevocationAwareLookup bool   `env:"REVOCATION_AWARE"`
	RedisPrefix           string `env:"REDIS_PREFIX"`
}

// SecurityConfig controls the optional Redis login throttle. MaxLoginAttempts 0
// disables it.
type SecurityConfig struct {
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown    time.Duration `env:"LOGIN_COOLDOWN"`
	EnableIPThrottle bool          `env:"IP_THROTTLE"`
}

// AuditConfig controls activity event dispatch.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// DefaultConfig returns the defaults: 24h HS256 tokens, USER_SESSION cookie without
// the Secure flag, no challenge expiry, revocation-unaware lookup, throttle off.
func DefaultConfig() Config {
	hashing := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			Lifetime:      24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "sessiontrust",
		},
		Cookie: CookieConfig{
			Name: "USER_SESSION",
			Path: "/",
		},
		Password: PasswordConfig{
			Memory:         hashing.Memory,
			Time:           hashing.Time,
			Parallelism:    hashing.Parallelism,
			SaltLength:     hashing.SaltLength,
			KeyLength:      hashing.KeyLength,
			MinLength:      password.DefaultPolicy().MinLength,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			LinkBaseURL: "http://localhost:5173/reset-password",
		},
		Session: SessionConfig{
			RedisPrefix: "st",
		},
		Security: SecurityConfig{
			LoginCooldown: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// LoadConfigFromEnv returns [DefaultConfig] overlaid with SESSIONTRUST_* variables,
// for example SESSIONTRUST_TOKEN_SECRET or SESSIONTRUST_TWO_FACTOR_CODE_TTL.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Token.Lifetime <= 0 {
		errs = append(errs, errors.New("Token.Lifetime must be > 0"))
	}
	switch strings.ToLower(c.Token.SigningMethod) {
	case "hs256":
		if len(c.Token.Secret) < 32 {
			errs = append(errs, errors.New("Token.Secret must be at least 32 bytes for hs256"))
		}
	case "ed25519":
		if c.Token.PublicKey == "" {
			errs = append(errs, errors.New("Token.PublicKey is required for ed25519"))
		}
	default:
		errs = append(errs, fmt.Errorf("Token.SigningMethod %q is not supported", c.Token.SigningMethod))
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		errs = append(errs, errors.New("Token.Leeway must be within [0, 2m]"))
	}
	if c.Cookie.Name == "" {
		errs = append(errs, errors.New("Cookie.Name must not be empty"))
	}
	if err := c.hashingConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("Password: %w", err))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("Password.MinLength must be >= 1"))
	}
	if c.TwoFactor.CodeTTL < 0 {
		errs = append(errs, errors.New("TwoFactor.CodeTTL must be >= 0"))
	}
	if c.PasswordReset.TokenTTL < 0 {
		errs = append(errs, errors.New("PasswordReset.TokenTTL must be >= 0"))
	}
	if u, err := url.Parse(c.PasswordReset.LinkBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("PasswordReset.LinkBaseURL must be an absolute URL"))
	}
	if c.Security.MaxLoginAttempts < 0 {
		errs = append(errs, errors.New("Security.MaxLoginAttempts must be >= 0"))
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		errs = append(errs, errors.New("Security.LoginCooldown must be > 0 when throttling is enabled"))
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		errs = append(errs, errors.New("Audit.BufferSize must be > 0 when audit is enabled"))
	}

	return errors.Join(errs...)
}

func (c Config) hashingConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}
