package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrPolicy is wrapped by every [Policy.Check] failure.
var ErrPolicy = errors.New("password does not meet policy")

// Specials is the set of characters accepted as the required special character.
const Specials = "@#$%^&+="

// Policy describes the complexity rule new passwords must satisfy.
type Policy struct {
	MinLength int
}

// DefaultPolicy requires 8 characters with a digit, a lowercase and an uppercase
// letter, one of [Specials], and no whitespace.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8}
}

// Check returns nil when candidate satisfies the policy, otherwise an error wrapping
// [ErrPolicy] whose message lists every unmet rule.
func (p Policy) Check(candidate string) error {
	var (
		digit, lower, upper, special bool
		missing                      []string
	)

	for _, r := range candidate {
		switch {
		case unicode.IsSpace(r):
			return errors.Join(ErrPolicy, errors.New("must not contain whitespace"))
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case strings.ContainsRune(Specials, r):
			special = true
		}
	}

	if utf8.RuneCountInString(candidate) < p.MinLength {
		missing = append(missing, "too short")
	}
	if !digit {
		missing = append(missing, "needs a digit")
	}
	if !lower {
		missing = append(missing, "needs a lowercase letter")
	}
	if !upper {
		missing = append(missing, "needs an uppercase letter")
	}
	if !special {
		missing = append(missing, "needs one of "+Specials)
	}

	if len(missing) > 0 {
		return errors.Join(ErrPolicy, errors.New(strings.Join(missing, ", ")))
	}
	return nil
}
