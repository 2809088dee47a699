package sessiontrust

import (
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = strings.Repeat("k", 32)
	return cfg
}

func TestDefaultConfigNeedsOnlyASecret(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Fatal("expected default config without a secret to fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDefaultConfigMatchesSessionDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Token.Lifetime != 24*time.Hour {
		t.Fatalf("unexpected token lifetime %v", cfg.Token.Lifetime)
	}
	if cfg.Cookie.Name != "USER_SESSION" || cfg.Cookie.Path != "/" || cfg.Cookie.Secure {
		t.Fatalf("unexpected cookie defaults %+v", cfg.Cookie)
	}
	if cfg.TwoFactor.CodeTTL != 0 || cfg.PasswordReset.TokenTTL != 0 {
		t.Fatal("challenges must not expire by default")
	}
	if cfg.Session.RevocationAwareLookup || cfg.PasswordReset.RevokeSessionsOnReset {
		t.Fatal("revocation-aware lookup and reset revocation are opt-in")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Token.Lifetime = 0
	cfg.Cookie.Name = ""
	cfg.TwoFactor.CodeTTL = -time.Second
	cfg.PasswordReset.LinkBaseURL = "not a url"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"Token.Lifetime", "Cookie.Name", "TwoFactor.CodeTTL", "LinkBaseURL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidateThrottleNeedsCooldown(t *testing.T) {
	cfg := validConfig()
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.LoginCooldown = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected cooldown error")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := loadConfig(env.Options{
		Prefix: EnvPrefix,
		Environment: map[string]string{
			"SESSIONTRUST_TOKEN_SECRET":                    strings.Repeat("s", 40),
			"SESSIONTRUST_TOKEN_LIFETIME":                  "2h",
			"SESSIONTRUST_COOKIE_SECURE":                   "true",
			"SESSIONTRUST_TWO_FACTOR_CODE_TTL":             "10m",
			"SESSIONTRUST_PASSWORD_RESET_REVOKE_SESSIONS":  "true",
			"SESSIONTRUST_SESSION_REVOCATION_AWARE":        "true",
			"SESSIONTRUST_SECURITY_MAX_LOGIN_ATTEMPTS":     "7",
			"SESSIONTRUST_PASSWORD_RESET_LINK_BASE_URL":    "https://app.example.com/reset",
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Lifetime != 2*time.Hour || !cfg.Cookie.Secure || cfg.TwoFactor.CodeTTL != 10*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.PasswordReset.RevokeSessionsOnReset || !cfg.Session.RevocationAwareLookup || cfg.Security.MaxLoginAttempts != 7 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PasswordReset.LinkBaseURL != "https://app.example.com/reset" {
		t.Fatalf("unexpected link base %q", cfg.PasswordReset.LinkBaseURL)
	}
	if cfg.Cookie.Name != "USER_SESSION" {
		t.Fatal("unset variables must keep defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	_, err := loadConfig(env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{"SESSIONTRUST_TOKEN_LIFETIME": "forever"},
	})
	if err == nil {
		t.Fatal("expected parse error")
	}
}
