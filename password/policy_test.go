package password

import (
	"strings"
	"testing"
)

func strictPolicy() *Policy {
	return NewPolicy(PolicyConfig{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
		RejectCommon:     true,
	})
}

func TestValidateAcceptsStrongPassword(t *testing.T) {
	if v := strictPolicy().Validate("Correct-horse-9"); v != nil {
		t.Fatalf("unexpected violations: %v", v)
	}
}

func TestValidateReportsAllViolationsAtOnce(t *testing.T) {
	// Short, no upper, no digit, no special: four rules at once.
	v := strictPolicy().Validate("abc")
	if len(v) != 4 {
		t.Fatalf("violations = %v, want 4 entries", v)
	}
}

func TestValidateIndividualRules(t *testing.T) {
	p := strictPolicy()

	cases := []struct {
		password string
		want     string
	}{
		{"Sh0rt!", "at least 8 characters"},
		{"lowercase-only-9", "uppercase"},
		{"UPPERCASE-ONLY-9", "lowercase"},
		{"No-Digits-Here!", "digit"},
		{"NoSpecial9Chars", "special"},
	}
	for _, tc := range cases {
		v := p.Validate(tc.password)
		found := false
		for _, msg := range v {
			if strings.Contains(msg, tc.want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Validate(%q) = %v, want a violation mentioning %q", tc.password, v, tc.want)
		}
	}
}

func TestValidateRejectsCommonPasswords(t *testing.T) {
	p := NewPolicy(PolicyConfig{MinLength: 8, RejectCommon: true})

	v := p.Validate("Password123")
	found := false
	for _, msg := range v {
		if strings.Contains(msg, "common") {
			found = true
		}
	}
	if !found {
		t.Fatalf("Validate = %v, want common-password violation", v)
	}
}

func TestValidateDisabledRulesDoNotFire(t *testing.T) {
	p := NewPolicy(PolicyConfig{MinLength: 8})

	if v := p.Validate("alllowercase"); v != nil {
		t.Fatalf("unexpected violations with rules disabled: %v", v)
	}
}

func TestRequirementsMatchConfiguration(t *testing.T) {
	reqs := strictPolicy().Requirements()
	if len(reqs) != 6 {
		t.Fatalf("requirements = %v, want 6 entries", reqs)
	}

	reqs = NewPolicy(PolicyConfig{MinLength: 12}).Requirements()
	if len(reqs) != 1 || !strings.Contains(reqs[0], "12") {
		t.Fatalf("requirements = %v, want only the length rule", reqs)
	}
}
