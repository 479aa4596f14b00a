package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values from the environment. LEADFLOW_*
// variables take precedence over the unprefixed names kept for existing
// deployments.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	str(&c.DataDir, "LEADFLOW_DATA_DIR")
	str(&c.Database, "LEADFLOW_DATABASE")
	str(&c.Sender.Email, "LEADFLOW_SENDER_EMAIL", "SENDER_EMAIL")
	str(&c.Sender.Name, "LEADFLOW_SENDER_NAME", "YOUR_NAME")
	str(&c.Sender.Title, "LEADFLOW_SENDER_TITLE", "YOUR_TITLE")
	str(&c.Sender.Organization, "LEADFLOW_SENDER_ORGANIZATION")
	str(&c.Sender.PortfolioLink, "LEADFLOW_PORTFOLIO_LINK", "PORTFOLIO_LINK")
	str(&c.Source.Type, "LEADFLOW_SOURCE")
	str(&c.Source.CSVPath, "LEADFLOW_CSV_PATH")
	str(&c.Source.SheetID, "LEADFLOW_SHEET_ID", "GOOGLE_SHEET_ID")
	str(&c.Source.SheetRange, "LEADFLOW_SHEET_RANGE")
	str(&c.Content.Type, "LEADFLOW_CONTENT")
	str(&c.Content.Script, "LEADFLOW_CONTENT_SCRIPT")
	str(&c.Delivery.Type, "LEADFLOW_DELIVERY")
	str(&c.Delivery.OutboxDir, "LEADFLOW_OUTBOX_DIR")
	str(&c.Replies.Type, "LEADFLOW_REPLIES")
	str(&c.Replies.File, "LEADFLOW_REPLY_FILE")
	str(&c.Google.CredentialsPath, "LEADFLOW_GOOGLE_CREDENTIALS", "GOOGLE_CREDENTIALS_PATH")
	str(&c.Google.Subject, "LEADFLOW_GOOGLE_SUBJECT")
	str(&c.Telemetry.Logging.Level, "LEADFLOW_LOG_LEVEL", "LOG_LEVEL")
	str(&c.Telemetry.Metrics.Textfile, "LEADFLOW_METRICS_TEXTFILE")
	str(&c.Telemetry.Metrics.PushgatewayURL, "LEADFLOW_PUSHGATEWAY_URL")
	str(&c.Telemetry.Tracing.Endpoint, "LEADFLOW_OTLP_ENDPOINT")

	c.Telemetry.Logging.Level = strings.ToLower(c.Telemetry.Logging.Level)
	if c.Telemetry.Tracing.Endpoint != "" && !c.Telemetry.Tracing.Enabled {
		if _, ok := lookup("LEADFLOW_OTLP_ENDPOINT"); ok {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.Exporter = "otlp"
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Workflow.FollowupDelay, "LEADFLOW_FOLLOWUP_DELAY"},
		{&c.Workflow.CloseAfter, "LEADFLOW_CLOSE_AFTER"},
		{&c.Workflow.PortTimeout, "LEADFLOW_PORT_TIMEOUT"},
		{&c.Workflow.ClaimTTL, "LEADFLOW_CLAIM_TTL"},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	// FOLLOW_UP_DELAY_HOURS is honoured only when the prefixed form is absent.
	if _, ok := lookup("LEADFLOW_FOLLOWUP_DELAY"); !ok {
		if v, ok := lookup("FOLLOW_UP_DELAY_HOURS"); ok && strings.TrimSpace(v) != "" {
			hours, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid FOLLOW_UP_DELAY_HOURS: %w", err)
			}
			c.Workflow.FollowupDelay = time.Duration(hours * float64(time.Hour))
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Workflow.MaxParallel, "LEADFLOW_MAX_PARALLEL"},
		{&c.Workflow.MaxConsecutiveErrors, "LEADFLOW_MAX_CONSECUTIVE_ERRORS"},
	}
	for _, n := range ints {
		v, ok := lookup(n.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", n.key, err)
		}
		*n.dst = parsed
	}

	if v, ok := lookup("LEADFLOW_SUPPRESS_DOMAINS"); ok && strings.TrimSpace(v) != "" {
		c.Policy.SuppressDomains = nil
		for _, d := range strings.Split(v, ",") {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				c.Policy.SuppressDomains = append(c.Policy.SuppressDomains, d)
			}
		}
	}

	return nil
}
