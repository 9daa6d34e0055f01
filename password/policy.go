package password

import (
	"fmt"
	"strings"
	"unicode"
)

const specialRunes = `!@#$%^&*()_+-=[]{}|;:'",.<>/?~` + "`"

// commonPasswords is checked case-insensitively when RejectCommon is set.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"abc123":      {},
	"letmein":     {},
	"welcome":     {},
	"welcome1":    {},
	"admin":       {},
	"admin123":    {},
	"iloveyou":    {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
}

// PolicyConfig selects which strength rules apply.
type PolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	RejectCommon     bool
}

// Policy validates candidate passwords against the configured rules. All
// rules are evaluated so callers receive every violation at once, not just
// the first.
type Policy struct {
	config PolicyConfig
}

// NewPolicy returns a Policy; a non-positive MinLength falls back to 8.
func NewPolicy(cfg PolicyConfig) *Policy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 8
	}
	return &Policy{config: cfg}
}

// Validate returns the list of violated rules, or nil when the password is
// acceptable.
func (p *Policy) Validate(password string) []string {
	var violations []string

	if len(password) < p.config.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", p.config.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialRunes, r):
			hasSpecial = true
		}
	}

	if p.config.RequireUppercase && !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if p.config.RequireLowercase && !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if p.config.RequireDigit && !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if p.config.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain at least one special character")
	}

	if p.config.RejectCommon {
		if _, ok := commonPasswords[strings.ToLower(password)]; ok {
			violations = append(violations, "is too common")
		}
	}

	return violations
}

// Requirements describes the active rules, suitable for display next to a
// registration form.
func (p *Policy) Requirements() []string {
	reqs := []string{fmt.Sprintf("at least %d characters", p.config.MinLength)}

	if p.config.RequireUppercase {
		reqs = append(reqs, "at least one uppercase letter")
	}
	if p.config.RequireLowercase {
		reqs = append(reqs, "at least one lowercase letter")
	}
	if p.config.RequireDigit {
		reqs = append(reqs, "at least one digit")
	}
	if p.config.RequireSpecial {
		reqs = append(reqs, "at least one special character")
	}
	if p.config.RejectCommon {
		reqs = append(reqs, "not a commonly used password")
	}

	return reqs
}
