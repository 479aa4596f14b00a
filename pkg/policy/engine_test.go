package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/leadflow/pkg/engine"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop(), opts)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func lead(email, first, company string) engine.Lead {
	return engine.Lead{
		Email:      email,
		Attributes: engine.Attributes{FirstName: first, Company: company},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t, Options{})

	policies := eng.ListPolicies()
	if len(policies) != len(BuiltinNames) {
		t.Fatalf("expected %d built-in policies, got %d", len(BuiltinNames), len(policies))
	}
	for i, name := range BuiltinNames {
		if policies[i].Name != name {
			t.Errorf("policy %d = %s, want %s", i, policies[i].Name, name)
		}
	}

	subset := newTestEngine(t, Options{Builtins: []string{RoleAddress}})
	if got := subset.ListPolicies(); len(got) != 1 || got[0].Name != RoleAddress {
		t.Errorf("expected only %s, got %+v", RoleAddress, got)
	}

	none := newTestEngine(t, Options{Builtins: []string{}})
	if len(none.ListPolicies()) != 0 {
		t.Error("an empty builtin list should disable all built-ins")
	}

	if _, err := NewEngine(zerolog.Nop(), Options{Builtins: []string{"vip-only"}}); err == nil {
		t.Error("expected error for unknown built-in")
	}
}

func TestScreen(t *testing.T) {
	eng := newTestEngine(t, Options{SuppressDomains: []string{" Competitor.example "}})

	tests := []struct {
		name    string
		lead    engine.Lead
		allowed bool
		reason  string
	}{
		{"complete lead", lead("sam@acme.example", "Sam", "Acme"), true, ""},
		{"missing first name", lead("sam@acme.example", "  ", "Acme"), false, "required-fields: first name is required"},
		{"missing company", lead("sam@acme.example", "Sam", ""), false, "company is required"},
		{"role mailbox", lead("NoReply@acme.example", "Sam", "Acme"), false, "role-address: noreply@acme.example is a role mailbox"},
		{"suppressed domain", lead("sam@competitor.example", "Sam", "Rival"), false, "suppressed-domain"},
		{"suppressed subdomain", lead("sam@eu.competitor.example", "Sam", "Rival"), false, "suppressed-domain"},
		{"similar domain", lead("sam@notcompetitor.example", "Sam", "Other"), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Screen(context.Background(), tt.lead)
			if err != nil {
				t.Fatalf("Screen failed: %v", err)
			}
			if result.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reasons %v)", result.Allowed, tt.allowed, result.Reasons)
			}
			if tt.reason == "" {
				if len(result.Reasons) != 0 {
					t.Errorf("expected no reasons, got %v", result.Reasons)
				}
				return
			}
			if !strings.Contains(strings.Join(result.Reasons, "; "), tt.reason) {
				t.Errorf("reasons %v do not mention %q", result.Reasons, tt.reason)
			}
		})
	}
}

func TestScreenCollectsAllReasons(t *testing.T) {
	eng := newTestEngine(t, Options{})

	result, err := eng.Screen(context.Background(), lead("postmaster@acme.example", "", ""))
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected lead to be denied")
	}
	if len(result.Reasons) != 3 {
		t.Errorf("expected 3 reasons, got %v", result.Reasons)
	}
}

func TestScreenWithoutSuppressionList(t *testing.T) {
	eng := newTestEngine(t, Options{})

	result, err := eng.Screen(context.Background(), lead("sam@competitor.example", "Sam", "Rival"))
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("expected allowed with an empty suppression list, got %v", result.Reasons)
	}
}

func TestLoadPolicies(t *testing.T) {
	dir := t.TempDir()
	custom := `package leadflow.custom.industry

import rego.v1

# Tobacco leads are out of scope.

deny contains msg if {
	lower(input.lead.industry) == "tobacco"
	msg := "industry is excluded"
}
`
	warn := `package leadflow.custom.free_mail

import rego.v1

# severity: warning

deny contains msg if {
	input.lead.domain == "gmail.com"
	msg := "free mail address"
}
`
	if err := os.WriteFile(filepath.Join(dir, "industry.rego"), []byte(custom), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "free-mail.rego"), []byte(warn), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	eng := newTestEngine(t, Options{Builtins: []string{}})
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}
	if len(eng.ListPolicies()) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(eng.ListPolicies()))
	}

	tobacco := lead("a@corp.example", "A", "Corp")
	tobacco.Attributes.Industry = "Tobacco"
	result, err := eng.Screen(context.Background(), tobacco)
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if result.Allowed || result.Reasons[0] != "industry: industry is excluded" {
		t.Errorf("expected industry denial, got %+v", result)
	}

	result, err = eng.Screen(context.Background(), lead("a@gmail.com", "A", "Corp"))
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("warning-level violations must not deny, got %v", result.Reasons)
	}

	violations, err := eng.Evaluate(context.Background(), NewInput(lead("a@gmail.com", "A", "Corp")))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Severity != SeverityWarning {
		t.Errorf("expected one warning violation, got %+v", violations)
	}
}

func TestLoadPoliciesInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package x\n\ndeny contains msg if {"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	eng := newTestEngine(t, Options{})
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err == nil {
		t.Error("expected compile error")
	}

	dup := filepath.Join(t.TempDir(), RoleAddress+".rego")
	if err := os.WriteFile(dup, []byte("package y\n\nimport rego.v1\n\ndeny contains 1 if { false }\n"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := eng.LoadPolicies(context.Background(), []string{dup}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestNewInput(t *testing.T) {
	in := NewInput(engine.Lead{Email: " Jane.Doe@Sub.Example.COM "})
	if in.Lead.Email != "jane.doe@sub.example.com" || in.Lead.LocalPart != "jane.doe" || in.Lead.Domain != "sub.example.com" {
		t.Errorf("unexpected input %+v", in.Lead)
	}

	noAt := NewInput(engine.Lead{Email: "nobody"})
	if noAt.Lead.LocalPart != "nobody" || noAt.Lead.Domain != "" {
		t.Errorf("unexpected input %+v", noAt.Lead)
	}
}
