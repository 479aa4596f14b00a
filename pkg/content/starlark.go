package content

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// DefaultScriptTimeout bounds one craft() call.
const DefaultScriptTimeout = 5 * time.Second

// StarlarkCrafter produces content by calling craft(lead, stage) in a
// Starlark script. The script is compiled once; every call runs in a fresh
// thread with fresh globals, so no state leaks between leads.
type StarlarkCrafter struct {
	filename string
	program  *starlark.Program
	sender   Sender
	timeout  time.Duration
}

var _ engine.ContentCrafter = (*StarlarkCrafter)(nil)

// NewStarlarkCrafter compiles the script at path and checks that it defines
// a callable craft.
func NewStarlarkCrafter(path string, sender Sender, timeout time.Duration) (*StarlarkCrafter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content script: %w", err)
	}
	return newStarlarkCrafter(path, src, sender, timeout)
}

func newStarlarkCrafter(filename string, src []byte, sender Sender, timeout time.Duration) (*StarlarkCrafter, error) {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}

	_, program, err := starlark.SourceProgram(filename, src, predeclared().Has)
	if err != nil {
		return nil, fmt.Errorf("failed to compile content script: %w", err)
	}

	c := &StarlarkCrafter{
		filename: filename,
		program:  program,
		sender:   sender,
		timeout:  timeout,
	}

	globals, err := program.Init(newThread(), predeclared())
	if err != nil {
		return nil, fmt.Errorf("failed to load content script: %w", err)
	}
	if _, ok := globals["craft"].(starlark.Callable); !ok {
		return nil, fmt.Errorf("content script %s must define craft(lead, stage)", filename)
	}

	return c, nil
}

// Craft calls craft(lead, stage) and reads subject and body from the result,
// which may be a dict or a struct.
func (c *StarlarkCrafter) Craft(ctx context.Context, lead engine.Lead, stage engine.Stage) (engine.Content, error) {
	if err := stage.Validate(); err != nil {
		return engine.Content{}, engine.NewPermanentError("unknown content stage", err).
			WithCode(engine.ErrCodeContentInvalid)
	}

	evalCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	thread := newThread()
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(evalCtx.Err().Error())
	})
	defer stop()

	globals, err := c.program.Init(thread, predeclared())
	if err != nil {
		return engine.Content{}, c.scriptError(evalCtx, "failed to load content script", err)
	}
	craft, ok := globals["craft"].(starlark.Callable)
	if !ok {
		return engine.Content{}, engine.NewPermanentError("content script no longer defines craft", nil).
			WithCode(engine.ErrCodeContentInvalid)
	}

	args := starlark.Tuple{c.leadValue(lead), starlark.String(stage)}
	result, err := starlark.Call(thread, craft, args, nil)
	if err != nil {
		return engine.Content{}, c.scriptError(evalCtx, "craft failed", err)
	}

	fields, err := contentFields(result)
	if err != nil {
		return engine.Content{}, engine.NewPermanentError("craft returned an unsupported value", err).
			WithCode(engine.ErrCodeContentInvalid)
	}

	subject, body := fields["subject"], fields["body"]
	return finish(subject, body)
}

func (c *StarlarkCrafter) scriptError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return engine.NewTransientError(fmt.Sprintf("content script timed out after %s", c.timeout), err).
			WithCode(engine.ErrCodeTimeout)
	}
	return engine.NewTransientError(msg, err)
}

func (c *StarlarkCrafter) leadValue(lead engine.Lead) starlark.Value {
	a := lead.Attributes
	return starlarkstruct.FromStringDict(starlark.String("lead"), starlark.StringDict{
		"email":      starlark.String(lead.Identity()),
		"first_name": starlark.String(a.FirstName),
		"last_name":  starlark.String(a.LastName),
		"full_name":  starlark.String(a.FullName()),
		"company":    starlark.String(a.Company),
		"title":      starlark.String(a.Title),
		"industry":   starlark.String(a.Industry),
		"sender": starlarkstruct.FromStringDict(starlark.String("sender"), starlark.StringDict{
			"name":           starlark.String(c.sender.Name),
			"title":          starlark.String(c.sender.Title),
			"organization":   starlark.String(c.sender.Organization),
			"email":          starlark.String(c.sender.Email),
			"portfolio_link": starlark.String(c.sender.PortfolioLink),
		}),
	})
}

func newThread() *starlark.Thread {
	return &starlark.Thread{
		Name: "leadflow-content",
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print output
		},
	}
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}
