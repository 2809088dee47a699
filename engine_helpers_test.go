package sessiontrust

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessiontrust/storage/memory"
)

const testPassword = "Secr3t@pass"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu      sync.Mutex
	codes   map[string]string
	links   map[string]string
	changed []string

	codeErr    error
	linkErr    error
	changedErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: map[string]string{}, links: map[string]string{}}
}

func (n *fakeNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codeErr != nil {
		return n.codeErr
	}
	n.codes[email] = code
	return nil
}

func (n *fakeNotifier) SendPasswordResetLink(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.linkErr != nil {
		return n.linkErr
	}
	n.links[email] = link
	return nil
}

func (n *fakeNotifier) SendPasswordChanged(_ context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.changedErr != nil {
		return n.changedErr
	}
	n.changed = append(n.changed, email)
	return nil
}

func (n *fakeNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

func (n *fakeNotifier) resetToken(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	link := n.links[email]
	n.mu.Unlock()
	if link == "" {
		t.Fatalf("no reset link sent to %s", email)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse reset link %q: %v", link, err)
	}
	return u.Query().Get("token")
}

type testEnv struct {
	engine   *Engine
	store    *memory.Store
	notifier *fakeNotifier
	clock    *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = strings.Repeat("k", 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config), extra ...func(*Builder)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store:    memory.New(),
		notifier: newFakeNotifier(),
		clock:    newTestClock(),
	}
	b := New().
		WithConfig(cfg).
		WithAccountStore(env.store).
		WithTokenStore(env.store).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now)
	for _, fn := range extra {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, email string, twoFactor bool) Principal {
	t.Helper()
	p, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:            email,
		Name:             "Test User",
		Password:         testPassword,
		TwoFactorEnabled: twoFactor,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return p
}

func (env *testEnv) login(t *testing.T, email string) LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) activeCount(t *testing.T, accountID string) int {
	t.Helper()
	active, err := env.engine.ActiveSessions(context.Background(), accountID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	return len(active)
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
