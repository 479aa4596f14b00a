// Package config loads and validates the leadflow configuration.
//
// # Overview
//
// Configuration is read from a YAML file on top of built-in defaults, then
// overridden from the environment, then validated. Relative paths in the file
// are resolved against the directory of the file.
//
// # Sources of Values
//
//  1. Default() - safe defaults: CSV source, template content, outbox delivery, reply file
//  2. YAML file - leadflow.yaml unless --config is given
//  3. Environment - LEADFLOW_* variables, plus SENDER_EMAIL, YOUR_NAME,
//     YOUR_TITLE, PORTFOLIO_LINK, GOOGLE_SHEET_ID, GOOGLE_CREDENTIALS_PATH,
//     FOLLOW_UP_DELAY_HOURS and LOG_LEVEL
//
// Durations use Go syntax ("48h", "90m").
//
// # Validation
//
// Field constraints are declared with go-playground/validator tags;
// Validate adds cross-field rules and reports every problem at once in a
// *ValidationError.
//
// # Example
//
//	sender:
//	  email: jane@studio.example
//	  name: Jane Doe
//	  title: Producer
//	workflow:
//	  followup_delay: 48h
//	  close_after: 168h
//	  max_parallel: 4
//	source:
//	  type: sheets
//	  sheet_id: 1AbC...
//	delivery:
//	  type: gmail
//	replies:
//	  type: gmail
//	google:
//	  credentials_path: token.json
package config
