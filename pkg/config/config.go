package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/telemetry"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "leadflow.yaml"

// Config is the complete leadflow configuration.
type Config struct {
	// DataDir holds the database and, by default, the outbox.
	DataDir string `yaml:"data_dir" validate:"required"`

	// Database is the SQLite file. Defaults to <data_dir>/leadflow.db.
	Database string `yaml:"database"`

	Sender    SenderConfig     `yaml:"sender"`
	Workflow  WorkflowConfig   `yaml:"workflow"`
	Source    SourceConfig     `yaml:"source"`
	Content   ContentConfig    `yaml:"content"`
	Delivery  DeliveryConfig   `yaml:"delivery"`
	Replies   RepliesConfig    `yaml:"replies"`
	Google    GoogleConfig     `yaml:"google"`
	Policy    PolicyConfig     `yaml:"policy"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// SenderConfig describes who the emails come from.
type SenderConfig struct {
	Email         string `yaml:"email" validate:"required,email"`
	Name          string `yaml:"name" validate:"required"`
	Title         string `yaml:"title"`
	Organization  string `yaml:"organization"`
	PortfolioLink string `yaml:"portfolio_link" validate:"omitempty,url"`
}

// WorkflowConfig holds the per-invocation orchestration settings.
type WorkflowConfig struct {
	FollowupDelay        time.Duration `yaml:"followup_delay" validate:"gte=0"`
	CloseAfter           time.Duration `yaml:"close_after" validate:"gte=0"`
	MaxParallel          int           `yaml:"max_parallel" validate:"min=1,max=64"`
	PortTimeout          time.Duration `yaml:"port_timeout" validate:"gt=0"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors" validate:"gte=0"`
	ClaimTTL             time.Duration `yaml:"claim_ttl" validate:"gt=0"`
}

// SourceConfig selects the lead source.
type SourceConfig struct {
	Type       string `yaml:"type" validate:"oneof=csv sheets"`
	CSVPath    string `yaml:"csv_path" validate:"required_if=Type csv"`
	SheetID    string `yaml:"sheet_id" validate:"required_if=Type sheets"`
	SheetRange string `yaml:"sheet_range"`
}

// ContentConfig selects the content crafter.
type ContentConfig struct {
	Type string `yaml:"type" validate:"oneof=template starlark"`

	// Template overrides, one file per subject and body. Empty means built-in.
	InitialSubject  string `yaml:"initial_subject"`
	InitialBody     string `yaml:"initial_body"`
	FollowupSubject string `yaml:"followup_subject"`
	FollowupBody    string `yaml:"followup_body"`

	Script        string        `yaml:"script" validate:"required_if=Type starlark"`
	ScriptTimeout time.Duration `yaml:"script_timeout" validate:"gte=0"`
}

// DeliveryConfig selects the delivery adapter.
type DeliveryConfig struct {
	Type      string `yaml:"type" validate:"oneof=gmail outbox"`
	OutboxDir string `yaml:"outbox_dir"`
}

// RepliesConfig selects the reply signal adapter.
type RepliesConfig struct {
	Type string `yaml:"type" validate:"oneof=gmail file"`
	File string `yaml:"file" validate:"required_if=Type file"`
}

// GoogleConfig holds the credentials for the Sheets and Gmail adapters.
type GoogleConfig struct {
	// CredentialsPath is a service account or authorized user JSON file.
	CredentialsPath string `yaml:"credentials_path"`

	// Subject is the mailbox impersonated by a service account with
	// domain-wide delegation. Defaults to the sender email.
	Subject string `yaml:"subject" validate:"omitempty,email"`
}

// PolicyConfig configures lead screening.
type PolicyConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Builtins        []string `yaml:"builtins" validate:"dive,oneof=required-fields role-address suppressed-domain"`
	Paths           []string `yaml:"paths"`
	SuppressDomains []string `yaml:"suppress_domains" validate:"dive,hostname_rfc1123"`
}

// Default returns the default configuration.
func Default() *Config {
	opts := engine.DefaultOptions()
	return &Config{
		DataDir: ".leadflow",
		Sender: SenderConfig{
			Email: "you@example.com",
			Name:  "Your Name",
		},
		Workflow: WorkflowConfig{
			FollowupDelay:        opts.FollowupDelay,
			CloseAfter:           opts.CloseAfter,
			MaxParallel:          opts.MaxParallel,
			PortTimeout:          opts.PortTimeout,
			MaxConsecutiveErrors: opts.MaxConsecutiveErrors,
			ClaimTTL:             opts.ClaimTTL,
		},
		Source: SourceConfig{
			Type:       "csv",
			CSVPath:    "leads.csv",
			SheetRange: "Lead Sheet!A2:F",
		},
		Content: ContentConfig{
			Type:          "template",
			ScriptTimeout: 5 * time.Second,
		},
		Delivery: DeliveryConfig{
			Type: "outbox",
		},
		Replies: RepliesConfig{
			Type: "file",
			File: "replies.yaml",
		},
		Google: GoogleConfig{
			CredentialsPath: "credentials.json",
		},
		Policy: PolicyConfig{
			Enabled:  true,
			Builtins: []string{"required-fields", "role-address", "suppressed-domain"},
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptional loads path, falling back to the defaults when path is the
// default file and does not exist.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil && path == DefaultPath && errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return cfg, err
}

// resolvePaths makes relative file paths relative to the config file.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{
		&c.DataDir,
		&c.Database,
		&c.Source.CSVPath,
		&c.Content.InitialSubject,
		&c.Content.InitialBody,
		&c.Content.FollowupSubject,
		&c.Content.FollowupBody,
		&c.Content.Script,
		&c.Delivery.OutboxDir,
		&c.Replies.File,
		&c.Google.CredentialsPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for i, p := range c.Policy.Paths {
		if !filepath.IsAbs(p) {
			c.Policy.Paths[i] = filepath.Join(base, p)
		}
	}
}

// DatabasePath returns the SQLite file path.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.DataDir, "leadflow.db")
}

// OutboxDir returns the directory the outbox adapter writes to.
func (c *Config) OutboxDir() string {
	if c.Delivery.OutboxDir != "" {
		return c.Delivery.OutboxDir
	}
	return filepath.Join(c.DataDir, "outbox")
}

// GoogleSubject returns the impersonated mailbox for service accounts.
func (c *Config) GoogleSubject() string {
	if c.Google.Subject != "" {
		return c.Google.Subject
	}
	return c.Sender.Email
}

// Options converts the workflow settings to orchestrator options.
func (c *Config) Options() engine.Options {
	return engine.Options{
		FollowupDelay:        c.Workflow.FollowupDelay,
		CloseAfter:           c.Workflow.CloseAfter,
		MaxParallel:          c.Workflow.MaxParallel,
		PortTimeout:          c.Workflow.PortTimeout,
		MaxConsecutiveErrors: c.Workflow.MaxConsecutiveErrors,
		ClaimTTL:             c.Workflow.ClaimTTL,
	}
}

// UsesGoogle reports whether any adapter needs Google credentials.
func (c *Config) UsesGoogle() bool {
	return c.Source.Type == "sheets" || c.Delivery.Type == "gmail" || c.Replies.Type == "gmail"
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return f.Close()
}
