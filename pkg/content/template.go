package content

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Sender is the person the emails are signed by.
type Sender struct {
	Name          string
	Title         string
	Organization  string
	Email         string
	PortfolioLink string
}

// TemplateData is the value templates are executed against.
type TemplateData struct {
	Lead   engine.Attributes
	Email  string
	Sender Sender
	Stage  engine.Stage
}

const (
	defaultInitialSubject = `A Partnership in Storytelling for {{.Lead.Company}}`

	defaultInitialBody = `Hi {{.Lead.FirstName}},

I'm {{.Sender.Name}}{{with .Sender.Organization}} from {{.}}{{end}}. We partner with creators and brands like yours to tell powerful stories through cinematic video.

Our team handles every aspect of production, from initial concept and creative strategy to the final cut. We start by diving deep into your brand's objectives so the final product is both beautiful and impactful.
{{with .Sender.PortfolioLink}}
Here's a glimpse into our style: {{.}}
{{end}}
If you're looking for a dedicated partner for your next project, we'd love to schedule a brief call to learn more about your vision.

All the best,

{{.Sender.Name}}
{{- with .Sender.Title}}
{{.}}{{end}}
{{- with .Sender.Organization}}
{{.}}{{end}}`

	defaultFollowupSubject = `Re: A Partnership in Storytelling for {{.Lead.Company}}`

	defaultFollowupBody = `Hi {{.Lead.FirstName}},

Just bringing my earlier note back to the top of your inbox. If a cinematic piece for {{.Lead.Company}} is on your radar this year, I'd be glad to share a few ideas.
{{with .Sender.PortfolioLink}}
Our latest work: {{.}}
{{end}}
All the best,

{{.Sender.Name}}`
)

// TemplateFiles names optional override files. An empty pair keeps the
// built-in template for that stage.
type TemplateFiles struct {
	InitialSubject  string
	InitialBody     string
	FollowupSubject string
	FollowupBody    string
}

type stageTemplates struct {
	subject *template.Template
	body    *template.Template
}

// TemplateCrafter renders subject and body with text/template.
// Rendering is deterministic for a given lead and stage.
type TemplateCrafter struct {
	sender    Sender
	templates map[engine.Stage]stageTemplates
}

var _ engine.ContentCrafter = (*TemplateCrafter)(nil)

// NewTemplateCrafter parses the built-in templates and any overrides.
func NewTemplateCrafter(sender Sender, files TemplateFiles) (*TemplateCrafter, error) {
	initial, err := loadStage(engine.StageInitial,
		defaultInitialSubject, defaultInitialBody, files.InitialSubject, files.InitialBody)
	if err != nil {
		return nil, err
	}
	followup, err := loadStage(engine.StageFollowup,
		defaultFollowupSubject, defaultFollowupBody, files.FollowupSubject, files.FollowupBody)
	if err != nil {
		return nil, err
	}

	return &TemplateCrafter{
		sender: sender,
		templates: map[engine.Stage]stageTemplates{
			engine.StageInitial:  initial,
			engine.StageFollowup: followup,
		},
	}, nil
}

func loadStage(stage engine.Stage, subject, body, subjectFile, bodyFile string) (stageTemplates, error) {
	if subjectFile != "" {
		data, err := os.ReadFile(subjectFile)
		if err != nil {
			return stageTemplates{}, fmt.Errorf("failed to read %s subject template: %w", stage, err)
		}
		subject = string(data)
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return stageTemplates{}, fmt.Errorf("failed to read %s body template: %w", stage, err)
		}
		body = string(data)
	}

	st, err := template.New(string(stage) + "-subject").Option("missingkey=error").Parse(strings.TrimSpace(subject))
	if err != nil {
		return stageTemplates{}, fmt.Errorf("failed to parse %s subject template: %w", stage, err)
	}
	bt, err := template.New(string(stage) + "-body").Option("missingkey=error").Parse(body)
	if err != nil {
		return stageTemplates{}, fmt.Errorf("failed to parse %s body template: %w", stage, err)
	}
	return stageTemplates{subject: st, body: bt}, nil
}

// Craft renders the email for the lead at the given stage.
func (c *TemplateCrafter) Craft(ctx context.Context, lead engine.Lead, stage engine.Stage) (engine.Content, error) {
	if err := ctx.Err(); err != nil {
		return engine.Content{}, engine.NewTransientError("content cancelled", err)
	}
	if err := stage.Validate(); err != nil {
		return engine.Content{}, engine.NewPermanentError("unknown content stage", err).
			WithCode(engine.ErrCodeContentInvalid)
	}
	tmpl := c.templates[stage]

	data := TemplateData{
		Lead:   lead.Attributes,
		Email:  lead.Identity(),
		Sender: c.sender,
		Stage:  stage,
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return engine.Content{}, engine.NewPermanentError("failed to render subject", err).
			WithCode(engine.ErrCodeContentInvalid)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return engine.Content{}, engine.NewPermanentError("failed to render body", err).
			WithCode(engine.ErrCodeContentInvalid)
	}

	return finish(subject.String(), body.String())
}

// finish normalizes rendered content and rejects empty results.
func finish(subject, body string) (engine.Content, error) {
	// Subjects are a single header line.
	subject = strings.Join(strings.Fields(subject), " ")
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return engine.Content{}, engine.NewPermanentError("rendered content has an empty subject or body", nil).
			WithCode(engine.ErrCodeContentInvalid)
	}
	return engine.Content{Subject: subject, Body: body}, nil
}
