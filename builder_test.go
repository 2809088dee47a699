package sessiontrust

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessiontrust/storage/memory"
)

func TestBuildRequiresDependencies(t *testing.T) {
	store := memory.New()

	tests := []struct {
		name    string
		builder *Builder
		want    string
	}{
		{"invalid config", New().WithAccountStore(store).WithTokenStore(store).WithNotifier(newFakeNotifier()), "Token.Secret"},
		{"no account store", New().WithConfig(testConfig()).WithTokenStore(store).WithNotifier(newFakeNotifier()), "account store"},
		{"no notifier", New().WithConfig(testConfig()).WithAccountStore(store).WithTokenStore(store), "notifier"},
		{"no token store", New().WithConfig(testConfig()).WithAccountStore(store).WithNotifier(newFakeNotifier()), "token store"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	store := memory.New()
	b := New().WithConfig(testConfig()).WithAccountStore(store).WithTokenStore(store).WithNotifier(newFakeNotifier())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildDefaultsToRedisTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := New().
		WithConfig(testConfig()).
		WithAccountStore(memory.New()).
		WithNotifier(newFakeNotifier()).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	p, err := engine.Register(ctx, RegisterRequest{Email: "fay@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := engine.Login(ctx, "fay@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	active, err := engine.ActiveSessions(ctx, p.AccountID)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one token in redis, got %d (%v)", len(active), err)
	}
	if keys := mr.Keys(); len(keys) == 0 {
		t.Fatal("expected token keys in redis")
	}
}

func TestCookieManagerMatchesTokenLifetime(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Cookie.Secure = true })
	cookies := env.engine.Cookies()
	if cookies == nil || cookies.Name() != "USER_SESSION" {
		t.Fatalf("unexpected cookie manager %+v", cookies)
	}
}
