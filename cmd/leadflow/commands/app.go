package commands

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/openfroyo/leadflow/pkg/config"
	"github.com/openfroyo/leadflow/pkg/content"
	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/gapi"
	"github.com/openfroyo/leadflow/pkg/mail"
	"github.com/openfroyo/leadflow/pkg/policy"
	"github.com/openfroyo/leadflow/pkg/report"
	"github.com/openfroyo/leadflow/pkg/sources"
	"github.com/openfroyo/leadflow/pkg/stores"
	"github.com/openfroyo/leadflow/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// app holds what a command needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
	store  *stores.SQLiteStore

	googleOpts []option.ClientOption
}

// ports are the adapters selected by the configuration.
type ports struct {
	source    engine.LeadSource
	crafter   engine.ContentCrafter
	deliverer engine.Deliverer
	replies   engine.ReplyChecker
	screener  engine.Screener
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.LoadOptional(config.DefaultPath)
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	cfg.Telemetry.ServiceVersion = buildVersion

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads the configuration and starts telemetry.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &app{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("cli").Zerolog(),
	}, nil
}

// openStore opens and migrates the database.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	if err := os.MkdirAll(a.cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", a.cfg.DataDir, err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: a.cfg.DatabasePath()})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.cfg.DatabasePath(), err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a.store = store
	return store, nil
}

// close releases the store and flushes telemetry. It is safe to call on a
// partially initialized app.
func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.tel.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

func (a *app) renderer() *report.Renderer {
	return report.New(os.Stdout, jsonOutput)
}

func (a *app) sender() content.Sender {
	s := a.cfg.Sender
	return content.Sender{
		Name:          s.Name,
		Title:         s.Title,
		Organization:  s.Organization,
		Email:         s.Email,
		PortfolioLink: s.PortfolioLink,
	}
}

func (a *app) fromAddress() netmail.Address {
	return netmail.Address{Name: a.cfg.Sender.Name, Address: a.cfg.Sender.Email}
}

// google returns the client options shared by the Sheets and Gmail adapters.
func (a *app) google(ctx context.Context) ([]option.ClientOption, error) {
	if a.googleOpts != nil {
		return a.googleOpts, nil
	}

	scopes := append([]string{sheets.SpreadsheetsReadonlyScope}, mail.GmailScopes...)
	opts, err := gapi.ClientOptions(ctx, gapi.Credentials{
		Path:    a.cfg.Google.CredentialsPath,
		Subject: a.cfg.GoogleSubject(),
	}, scopes...)
	if err != nil {
		return nil, err
	}
	a.googleOpts = opts
	return opts, nil
}

// newSource builds the configured lead source.
func (a *app) newSource(ctx context.Context) (engine.LeadSource, error) {
	switch a.cfg.Source.Type {
	case "csv":
		return sources.NewCSVSource(a.cfg.Source.CSVPath, a.logger), nil
	case "sheets":
		opts, err := a.google(ctx)
		if err != nil {
			return nil, err
		}
		return sources.NewSheetsSource(ctx, a.cfg.Source.SheetID, a.cfg.Source.SheetRange, a.logger, opts...)
	default:
		return nil, fmt.Errorf("unknown source type %q", a.cfg.Source.Type)
	}
}

// buildPorts builds every adapter the orchestrator needs. Nothing here talks
// to a remote service.
func (a *app) buildPorts(ctx context.Context) (*ports, error) {
	var (
		p   ports
		err error
	)

	if p.source, err = a.newSource(ctx); err != nil {
		return nil, fmt.Errorf("lead source: %w", err)
	}

	switch a.cfg.Content.Type {
	case "template":
		p.crafter, err = content.NewTemplateCrafter(a.sender(), content.TemplateFiles{
			InitialSubject:  a.cfg.Content.InitialSubject,
			InitialBody:     a.cfg.Content.InitialBody,
			FollowupSubject: a.cfg.Content.FollowupSubject,
			FollowupBody:    a.cfg.Content.FollowupBody,
		})
	case "starlark":
		p.crafter, err = content.NewStarlarkCrafter(a.cfg.Content.Script, a.sender(), a.cfg.Content.ScriptTimeout)
	default:
		err = fmt.Errorf("unknown content type %q", a.cfg.Content.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	var gmail *mail.Gmail
	if a.cfg.Delivery.Type == "gmail" || a.cfg.Replies.Type == "gmail" {
		opts, err := a.google(ctx)
		if err != nil {
			return nil, fmt.Errorf("gmail: %w", err)
		}
		if gmail, err = mail.NewGmail(ctx, a.fromAddress(), a.logger, opts...); err != nil {
			return nil, err
		}
	}

	switch a.cfg.Delivery.Type {
	case "gmail":
		p.deliverer = gmail
	case "outbox":
		if p.deliverer, err = mail.NewOutbox(a.cfg.OutboxDir(), a.fromAddress(), a.logger); err != nil {
			return nil, fmt.Errorf("delivery: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown delivery type %q", a.cfg.Delivery.Type)
	}

	switch a.cfg.Replies.Type {
	case "gmail":
		p.replies = gmail
	case "file":
		p.replies = mail.NewReplyFile(a.cfg.Replies.File)
	default:
		return nil, fmt.Errorf("unknown replies type %q", a.cfg.Replies.Type)
	}

	if a.cfg.Policy.Enabled {
		screener, err := policy.NewEngine(a.logger, policy.Options{
			Builtins:        a.cfg.Policy.Builtins,
			SuppressDomains: a.cfg.Policy.SuppressDomains,
		})
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		if err := screener.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		p.screener = screener
	}

	return &p, nil
}

// isNotFound reports whether err means the lead does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, engine.ErrNotFound)
}
