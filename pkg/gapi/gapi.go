// Package gapi holds the Google API plumbing shared by the Sheets source and
// the Gmail adapters: credential loading and error classification.
package gapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Credentials describes how to authenticate against Google APIs.
type Credentials struct {
	// Path is a service account key or an authorized user (token) JSON file.
	Path string

	// Subject is the mailbox a service account impersonates. Ignored for
	// authorized user credentials.
	Subject string
}

// ClientOptions returns the client options for the given scopes.
func ClientOptions(ctx context.Context, creds Credentials, scopes ...string) ([]option.ClientOption, error) {
	data, err := os.ReadFile(creds.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read google credentials: %w", err)
	}

	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &kind); err != nil {
		return nil, fmt.Errorf("failed to parse google credentials %s: %w", creds.Path, err)
	}

	var ts oauth2.TokenSource
	if kind.Type == "service_account" && creds.Subject != "" {
		jwt, err := google.JWTConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to load service account: %w", err)
		}
		jwt.Subject = creds.Subject
		ts = jwt.TokenSource(ctx)
	} else {
		c, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to load google credentials: %w", err)
		}
		ts = c.TokenSource
	}

	return []option.ClientOption{
		option.WithTokenSource(oauth2.ReuseTokenSource(nil, ts)),
		option.WithUserAgent("leadflow"),
	}, nil
}

// Classify maps a Google API error onto the engine taxonomy: quota and
// server errors are retryable, request and permission errors are permanent.
func Classify(err error, operation, message string) error {
	if err == nil {
		return nil
	}

	var classified *engine.Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return engine.NewTransientError(message, err).
			WithOperation(operation).WithCode(engine.ErrCodeTimeout)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode >= 500 {
			return engine.NewTransientError(message, err).WithOperation(operation)
		}
		return engine.NewPermanentError(message+": credentials rejected", err).
			WithOperation(operation).WithCode(engine.ErrCodePermissionDenied)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return engine.NewThrottledError(message, err).WithOperation(operation)
		case gerr.Code == http.StatusForbidden && isRateLimitReason(gerr):
			return engine.NewThrottledError(message, err).WithOperation(operation)
		case gerr.Code >= 500 || gerr.Code == http.StatusRequestTimeout:
			return engine.NewTransientError(message, err).WithOperation(operation)
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return engine.NewPermanentError(message, err).
				WithOperation(operation).WithCode(engine.ErrCodePermissionDenied)
		case gerr.Code == http.StatusNotFound:
			return engine.NewPermanentError(message, err).
				WithOperation(operation).WithCode(engine.ErrCodeNotFound)
		default:
			return engine.NewPermanentError(message, err).WithOperation(operation)
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return engine.NewTransientError(message, err).WithOperation(operation)
	}

	// Unknown failures are retried.
	return engine.NewTransientError(message, err).WithOperation(operation)
}

// IsInvalidRecipient reports whether a Gmail send error rejects the address.
func IsInvalidRecipient(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "invalidArgument" || item.Reason == "failedPrecondition" {
			return true
		}
	}
	return false
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}
