package sessiontrust

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessiontrust/session"
)

func TestLoginWithoutTwoFactorEstablishesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "alice@example.com", false)

	res := env.login(t, "  Alice@Example.com ")
	if res.RequiresTwoFactor {
		t.Fatal("expected no two-factor step")
	}
	if res.Token == "" {
		t.Fatal("expected a session token")
	}
	if res.Message != MessageLoginSucceeded {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if want := env.clock.Now().Add(24 * time.Hour); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.ExpiresAt)
	}
	if res.Principal.AccountID != p.AccountID {
		t.Fatalf("unexpected principal %+v", res.Principal)
	}
	if n := env.activeCount(t, p.AccountID); n != 1 {
		t.Fatalf("expected 1 active token, got %d", n)
	}

	got, err := env.engine.ResolveSession(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Fatalf("unexpected resolved email %q", got.Email)
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "bob@example.com", false)
	ctx := context.Background()

	_, errUnknown := env.engine.Login(ctx, "nobody@example.com", testPassword)
	_, errWrong := env.engine.Login(ctx, "bob@example.com", "Wrong@pass1")

	expectErr(t, errUnknown, ErrInvalidCredentials)
	expectErr(t, errWrong, ErrInvalidCredentials)
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("expected identical errors, got %q and %q", errUnknown, errWrong)
	}
}

func TestLoginDisabledAccountRevealedOnlyWithCorrectPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "carol@example.com", false)
	ctx := context.Background()

	if err := env.engine.SetAccountEnabled(ctx, p.AccountID, false); err != nil {
		t.Fatalf("SetAccountEnabled failed: %v", err)
	}

	_, err := env.engine.Login(ctx, "carol@example.com", "Wrong@pass1")
	expectErr(t, err, ErrInvalidCredentials)

	_, err = env.engine.Login(ctx, "carol@example.com", testPassword)
	expectErr(t, err, ErrAccountDisabled)

	if n := env.activeCount(t, p.AccountID); n != 0 {
		t.Fatalf("expected no active token, got %d", n)
	}
}

func TestSecondLoginRevokesFirstToken(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "dave@example.com", false)

	first := env.login(t, "dave@example.com")
	second := env.login(t, "dave@example.com")
	if first.Token == second.Token {
		t.Fatal("expected distinct tokens")
	}

	active, err := env.engine.ActiveSessions(context.Background(), p.AccountID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(active) != 1 || active[0].ValueHash != session.HashValue(second.Token) {
		t.Fatalf("expected only the second token active, got %+v", active)
	}

	rec, err := env.store.ByHash(context.Background(), session.HashValue(first.Token))
	if err != nil {
		t.Fatalf("ByHash failed: %v", err)
	}
	if !rec.Revoked || !rec.Expired {
		t.Fatalf("expected first token revoked and expired, got %+v", rec)
	}
}

func TestResolveSessionRevocationAwareness(t *testing.T) {
	t.Run("unaware lookup accepts superseded token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.register(t, "erin@example.com", false)
		first := env.login(t, "erin@example.com")
		env.login(t, "erin@example.com")

		if _, err := env.engine.ResolveSession(context.Background(), first.Token); err != nil {
			t.Fatalf("expected signed token to resolve, got %v", err)
		}
	})

	t.Run("aware lookup rejects superseded token", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.Session.RevocationAwareLookup = true })
		env.register(t, "erin@example.com", false)
		first := env.login(t, "erin@example.com")
		second := env.login(t, "erin@example.com")

		_, err := env.engine.ResolveSession(context.Background(), first.Token)
		expectErr(t, err, ErrTokenRevoked)
		if _, err := env.engine.ResolveSession(context.Background(), second.Token); err != nil {
			t.Fatalf("expected current token to resolve, got %v", err)
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.register(t, "erin@example.com", false)
		res := env.login(t, "erin@example.com")

		_, err := env.engine.ResolveSession(context.Background(), res.Token+"x")
		expectErr(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.register(t, "erin@example.com", false)
		res := env.login(t, "erin@example.com")
		env.clock.Advance(25 * time.Hour)

		_, err := env.engine.ResolveSession(context.Background(), res.Token)
		expectErr(t, err, ErrInvalidToken)
	})
}

func TestTwoFactorLoginPausesThenCompletes(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "frank@example.com", true)
	ctx := context.Background()

	res := env.login(t, "frank@example.com")
	if !res.RequiresTwoFactor || res.Token != "" {
		t.Fatalf("expected pending two-factor login, got %+v", res)
	}
	if res.Message != MessageTwoFactorSent {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if n := env.activeCount(t, p.AccountID); n != 0 {
		t.Fatalf("expected no token before verification, got %d", n)
	}

	code := env.notifier.code("frank@example.com")
	if len(code) != 6 || code[0] == '0' {
		t.Fatalf("unexpected code %q", code)
	}

	wrong := "000000"
	_, err := env.engine.VerifyTwoFactor(ctx, "frank@example.com", wrong)
	expectErr(t, err, ErrInvalidTwoFactorCode)

	done, err := env.engine.VerifyTwoFactor(ctx, "frank@example.com", code)
	if err != nil {
		t.Fatalf("VerifyTwoFactor failed: %v", err)
	}
	if done.Token == "" || done.RequiresTwoFactor {
		t.Fatalf("expected established session, got %+v", done)
	}
	if n := env.activeCount(t, p.AccountID); n != 1 {
		t.Fatalf("expected 1 active token, got %d", n)
	}

	_, err = env.engine.VerifyTwoFactor(ctx, "frank@example.com", code)
	expectErr(t, err, ErrInvalidTwoFactorCode)
}

func TestTwoFactorNewChallengeReplacesOldCode(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "gina@example.com", true)

	env.login(t, "gina@example.com")
	first := env.notifier.code("gina@example.com")
	env.login(t, "gina@example.com")
	second := env.notifier.code("gina@example.com")
	if first == second {
		t.Skip("two consecutive codes collided")
	}

	_, err := env.engine.VerifyTwoFactor(context.Background(), "gina@example.com", first)
	expectErr(t, err, ErrInvalidTwoFactorCode)
	if _, err := env.engine.VerifyTwoFactor(context.Background(), "gina@example.com", second); err != nil {
		t.Fatalf("expected latest code to verify, got %v", err)
	}
}

func TestTwoFactorDeliveryFailureKeepsChallenge(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "hank@example.com", true)
	env.notifier.codeErr = errors.New("smtp down")

	res := env.login(t, "hank@example.com")
	if !res.RequiresTwoFactor {
		t.Fatal("expected pending two-factor login")
	}
	expectErr(t, res.DeliveryErr, ErrNotificationDelivery)
	if res.Message != "Error sending email: smtp down" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	acc, err := env.engine.Account(context.Background(), p.AccountID)
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if !acc.HasTwoFactorChallenge() {
		t.Fatal("expected stored challenge despite delivery failure")
	}
	if _, err := env.engine.VerifyTwoFactor(context.Background(), "hank@example.com", acc.TwoFactorCode); err != nil {
		t.Fatalf("expected stored code to verify, got %v", err)
	}
}

func TestTwoFactorVerifyUnknownAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.VerifyTwoFactor(context.Background(), "ghost@example.com", "123456")
	expectErr(t, err, ErrAccountNotFound)
}

func TestTwoFactorVerifyRejectsDisabledAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.register(t, "ivy@example.com", true)
	ctx := context.Background()

	env.login(t, "ivy@example.com")
	code := env.notifier.code("ivy@example.com")
	if err := env.engine.SetAccountEnabled(ctx, p.AccountID, false); err != nil {
		t.Fatalf("SetAccountEnabled failed: %v", err)
	}

	_, err := env.engine.VerifyTwoFactor(ctx, "ivy@example.com", code)
	expectErr(t, err, ErrAccountDisabled)
	if n := env.activeCount(t, p.AccountID); n != 0 {
		t.Fatalf("expected no token, got %d", n)
	}
}

func TestTwoFactorCodeTTL(t *testing.T) {
	t.Run("zero ttl never expires", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.register(t, "jack@example.com", true)
		env.login(t, "jack@example.com")
		env.clock.Advance(72 * time.Hour)

		code := env.notifier.code("jack@example.com")
		if _, err := env.engine.VerifyTwoFactor(context.Background(), "jack@example.com", code); err != nil {
			t.Fatalf("expected old code to verify, got %v", err)
		}
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.TwoFactor.CodeTTL = 5 * time.Minute })
		env.register(t, "jack@example.com", true)
		env.login(t, "jack@example.com")
		env.clock.Advance(6 * time.Minute)

		code := env.notifier.code("jack@example.com")
		_, err := env.engine.VerifyTwoFactor(context.Background(), "jack@example.com", code)
		expectErr(t, err, ErrInvalidTwoFactorCode)
	})
}

func TestConcurrentTwoFactorVerifySingleSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "kate@example.com", true)
	env.login(t, "kate@example.com")
	code := env.notifier.code("kate@example.com")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.VerifyTwoFactor(context.Background(), "kate@example.com", code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
}

func TestConcurrentLoginsLeaveOneActiveToken(t *testing.T) {
	run := func(t *testing.T, env *testEnv) {
		p := env.register(t, "liam@example.com", false)

		const workers = 24
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := env.engine.Login(context.Background(), "liam@example.com", testPassword); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("Login failed: %v", err)
		}

		if n := env.activeCount(t, p.AccountID); n != 1 {
			t.Fatalf("expected 1 active token, got %d", n)
		}
	}

	t.Run("memory", func(t *testing.T) {
		run(t, newTestEnv(t, nil))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		run(t, newTestEnv(t, nil, func(b *Builder) {
			b.WithTokenStore(session.NewRedisStore(rdb, "test"))
		}))
	})
}

func TestLoginThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, func(c *Config) {
		c.Security.MaxLoginAttempts = 3
		c.Security.LoginCooldown = time.Minute
	}, func(b *Builder) {
		b.WithRedis(rdb)
	})
	env.register(t, "mia@example.com", false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.engine.Login(ctx, "mia@example.com", "Wrong@pass1")
		expectErr(t, err, ErrInvalidCredentials)
	}

	_, err := env.engine.Login(ctx, "mia@example.com", testPassword)
	expectErr(t, err, ErrLoginRateLimited)

	mr.FastForward(2 * time.Minute)
	if _, err := env.engine.Login(ctx, "mia@example.com", testPassword); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestLoginRejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.Login(context.Background(), "", "")
	expectErr(t, err, ErrInvalidCredentials)
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	_, err := e.Login(context.Background(), "a@example.com", testPassword)
	expectErr(t, err, ErrEngineNotReady)
	if !strings.Contains(ErrEngineNotReady.Error(), "not initialized") {
		t.Fatalf("unexpected message %q", ErrEngineNotReady)
	}
}
