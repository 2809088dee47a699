package account

import "testing"

func TestPrincipalOmitsChallengesAndHash(t *testing.T) {
	acc := Account{
		ID:               "u1",
		Email:            "a@x.io",
		PasswordHash:     "secret-hash",
		Role:             "ADMIN",
		TwoFactorEnabled: true,
		TwoFactorCode:    "123456",
		ResetTokenHash:   "abc",
	}

	p := acc.Principal()
	if p.AccountID != "u1" || p.Email != "a@x.io" || p.Role != "ADMIN" || !p.TwoFactorEnabled {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestClearChallenges(t *testing.T) {
	acc := Account{TwoFactorCode: "123456", ResetTokenHash: "h"}
	if !acc.HasTwoFactorChallenge() || !acc.HasResetChallenge() {
		t.Fatal("expected both challenges outstanding")
	}
	acc.ClearTwoFactorChallenge()
	acc.ClearResetChallenge()
	if acc.HasTwoFactorChallenge() || acc.HasResetChallenge() {
		t.Fatal("expected challenges cleared")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}
