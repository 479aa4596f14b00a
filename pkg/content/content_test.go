package content

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

var testSender = Sender{
	Name:          "Jane Doe",
	Title:         "Producer",
	Organization:  "Northlight Films",
	Email:         "jane@northlight.example",
	PortfolioLink: "https://northlight.example/reel",
}

func testLead() engine.Lead {
	return engine.Lead{
		Email: " Sam@Acme.example ",
		Attributes: engine.Attributes{
			FirstName: "Sam",
			LastName:  "Lee",
			Company:   "Acme",
			Title:     "CMO",
		},
	}
}

func TestTemplateCrafterDefaults(t *testing.T) {
	c, err := NewTemplateCrafter(testSender, TemplateFiles{})
	if err != nil {
		t.Fatalf("NewTemplateCrafter failed: %v", err)
	}

	initial, err := c.Craft(context.Background(), testLead(), engine.StageInitial)
	if err != nil {
		t.Fatalf("Craft initial failed: %v", err)
	}
	if initial.Subject != "A Partnership in Storytelling for Acme" {
		t.Errorf("unexpected subject %q", initial.Subject)
	}
	for _, want := range []string{"Hi Sam,", "Jane Doe from Northlight Films", testSender.PortfolioLink, "Producer"} {
		if !strings.Contains(initial.Body, want) {
			t.Errorf("initial body missing %q:\n%s", want, initial.Body)
		}
	}

	followup, err := c.Craft(context.Background(), testLead(), engine.StageFollowup)
	if err != nil {
		t.Fatalf("Craft followup failed: %v", err)
	}
	if followup.Subject != "Re: A Partnership in Storytelling for Acme" {
		t.Errorf("unexpected follow-up subject %q", followup.Subject)
	}

	again, _ := c.Craft(context.Background(), testLead(), engine.StageInitial)
	if again != initial {
		t.Error("rendering must be deterministic")
	}
}

func TestTemplateCrafterOptionalSenderFields(t *testing.T) {
	c, err := NewTemplateCrafter(Sender{Name: "Jane"}, TemplateFiles{})
	if err != nil {
		t.Fatalf("NewTemplateCrafter failed: %v", err)
	}
	got, err := c.Craft(context.Background(), testLead(), engine.StageInitial)
	if err != nil {
		t.Fatalf("Craft failed: %v", err)
	}
	if strings.Contains(got.Body, "glimpse") || strings.Contains(got.Body, "Jane from") {
		t.Errorf("empty optional fields should drop their sentences:\n%s", got.Body)
	}
}

func TestTemplateCrafterOverrides(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return p
	}

	c, err := NewTemplateCrafter(testSender, TemplateFiles{
		InitialSubject: write("s.tmpl", "Hello\n{{.Lead.Company}}\n"),
		InitialBody:    write("b.tmpl", "{{.Email}} / {{.Stage}}"),
	})
	if err != nil {
		t.Fatalf("NewTemplateCrafter failed: %v", err)
	}
	got, err := c.Craft(context.Background(), testLead(), engine.StageInitial)
	if err != nil {
		t.Fatalf("Craft failed: %v", err)
	}
	if got.Subject != "Hello Acme" {
		t.Errorf("subject must be folded to one line, got %q", got.Subject)
	}
	if got.Body != "sam@acme.example / initial" {
		t.Errorf("unexpected body %q", got.Body)
	}

	if _, err := NewTemplateCrafter(testSender, TemplateFiles{InitialBody: write("bad.tmpl", "{{.Lead")}); err == nil {
		t.Error("expected parse error")
	}
	if _, err := NewTemplateCrafter(testSender, TemplateFiles{FollowupBody: filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected read error")
	}
}

func TestCraftUnknownStage(t *testing.T) {
	tc, err := NewTemplateCrafter(testSender, TemplateFiles{})
	if err != nil {
		t.Fatalf("NewTemplateCrafter failed: %v", err)
	}
	sc, err := newStarlarkCrafter("craft.star", []byte("def craft(lead, stage):\n    return {\"subject\": \"s\", \"body\": \"b\"}\n"), testSender, time.Second)
	if err != nil {
		t.Fatalf("newStarlarkCrafter failed: %v", err)
	}

	for _, c := range []engine.ContentCrafter{tc, sc} {
		_, err := c.Craft(context.Background(), testLead(), engine.Stage("reminder"))
		if engine.CodeOf(err) != engine.ErrCodeContentInvalid {
			t.Errorf("%T: expected CONTENT_INVALID, got %v", c, err)
		}
	}
}

func TestTemplateCrafterEmptyRender(t *testing.T) {
	dir := t.TempDir()
	subject := filepath.Join(dir, "s.tmpl")
	body := filepath.Join(dir, "b.tmpl")
	os.WriteFile(subject, []byte("{{.Lead.Industry}}"), 0o644)
	os.WriteFile(body, []byte("body"), 0o644)

	c, err := NewTemplateCrafter(testSender, TemplateFiles{InitialSubject: subject, InitialBody: body})
	if err != nil {
		t.Fatalf("NewTemplateCrafter failed: %v", err)
	}
	_, err = c.Craft(context.Background(), testLead(), engine.StageInitial)
	if engine.ClassOf(err) != engine.ErrorClassPermanent || engine.CodeOf(err) != engine.ErrCodeContentInvalid {
		t.Errorf("expected permanent CONTENT_INVALID, got %v", err)
	}
}

const craftScript = `
def craft(lead, stage):
    subject = "Storytelling for " + lead.company
    if stage == "followup":
        subject = "Re: " + subject
    return {
        "subject": subject,
        "body": "Hi %s,\n\n%s" % (lead.first_name, lead.sender.name),
    }
`

func TestStarlarkCrafter(t *testing.T) {
	c, err := newStarlarkCrafter("craft.star", []byte(craftScript), testSender, time.Second)
	if err != nil {
		t.Fatalf("newStarlarkCrafter failed: %v", err)
	}

	got, err := c.Craft(context.Background(), testLead(), engine.StageFollowup)
	if err != nil {
		t.Fatalf("Craft failed: %v", err)
	}
	if got.Subject != "Re: Storytelling for Acme" {
		t.Errorf("unexpected subject %q", got.Subject)
	}
	if got.Body != "Hi Sam,\n\nJane Doe" {
		t.Errorf("unexpected body %q", got.Body)
	}
}

func TestStarlarkCrafterStruct(t *testing.T) {
	script := `
def craft(lead, stage):
    return struct(subject = "Hi " + lead.email, body = stage)
`
	c, err := newStarlarkCrafter("craft.star", []byte(script), testSender, time.Second)
	if err != nil {
		t.Fatalf("newStarlarkCrafter failed: %v", err)
	}
	got, err := c.Craft(context.Background(), testLead(), engine.StageInitial)
	if err != nil {
		t.Fatalf("Craft failed: %v", err)
	}
	if got.Subject != "Hi sam@acme.example" || got.Body != "initial" {
		t.Errorf("unexpected content %+v", got)
	}
}

func TestStarlarkCrafterErrors(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		loadErr   bool
		permanent bool
	}{
		{"syntax error", "def craft(lead, stage)\n    return 1\n", true, false},
		{"no craft", "x = 1\n", true, false},
		{"missing body", "def craft(lead, stage):\n    return {\"subject\": \"s\"}\n", false, true},
		{"wrong type", "def craft(lead, stage):\n    return \"text\"\n", false, true},
		{"subject not a string", "def craft(lead, stage):\n    return {\"subject\": 1, \"body\": \"b\"}\n", false, true},
		{"runtime error", "def craft(lead, stage):\n    return lead.nope\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newStarlarkCrafter("craft.star", []byte(tt.script), testSender, time.Second)
			if tt.loadErr {
				if err == nil {
					t.Fatal("expected load error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newStarlarkCrafter failed: %v", err)
			}

			_, err = c.Craft(context.Background(), testLead(), engine.StageInitial)
			if err == nil {
				t.Fatal("expected craft error")
			}
			if got := engine.ClassOf(err) == engine.ErrorClassPermanent; got != tt.permanent {
				t.Errorf("permanent = %v, want %v (%v)", got, tt.permanent, err)
			}
			if !tt.permanent && !engine.IsRetryable(err) {
				t.Errorf("script failures should be retryable, got %v", err)
			}
		})
	}
}

func TestStarlarkCrafterTimeout(t *testing.T) {
	script := `
def craft(lead, stage):
    n = 0
    for i in range(1000000000):
        n += i
    return {"subject": "s", "body": str(n)}
`
	c, err := newStarlarkCrafter("slow.star", []byte(script), testSender, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("newStarlarkCrafter failed: %v", err)
	}

	start := time.Now()
	_, err = c.Craft(context.Background(), testLead(), engine.StageInitial)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if engine.CodeOf(err) != engine.ErrCodeTimeout || !engine.IsRetryable(err) {
		t.Errorf("expected retryable timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("script was not cancelled")
	}
}

func TestNewStarlarkCrafterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "craft.star")
	if err := os.WriteFile(path, []byte(craftScript), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	if _, err := NewStarlarkCrafter(path, testSender, 0); err != nil {
		t.Errorf("NewStarlarkCrafter failed: %v", err)
	}
	if _, err := NewStarlarkCrafter(path+".missing", testSender, 0); err == nil {
		t.Error("expected error for missing script")
	}
}
