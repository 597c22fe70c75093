// Package sheets publishes rule tables to Google Sheets.
package sheets

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSpreadsheetName is used when no spreadsheet name is configured.
const DefaultSpreadsheetName = "Association Rules"

// AuthMethod names the credentials a Writer signs in with.
type AuthMethod string

// Supported authentication methods.
const (
	AuthServiceAccount AuthMethod = "service_account"
	AuthOAuth          AuthMethod = "oauth"
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string // Empty creates a new spreadsheet on each export
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int // Rows per values.update call
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  DefaultSpreadsheetName,
		EnableFormatting: true,
		TimeZone:         "UTC",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// AuthMethod reports which complete set of credentials is configured.
func (c *Config) AuthMethod() (AuthMethod, error) {
	oauth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	serviceAccount := c.ServiceAccountPath != ""

	switch {
	case oauth && serviceAccount:
		return "", errors.New("multiple authentication methods configured; use either OAuth2 or service account")
	case serviceAccount:
		return AuthServiceAccount, nil
	case oauth:
		return AuthOAuth, nil
	default:
		return "", errors.New("no authentication method configured")
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.AuthMethod(); err != nil {
		return err
	}

	switch {
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.RetryAttempts < 0:
		return errors.New("retry attempts cannot be negative")
	case c.RetryDelay < 0:
		return errors.New("retry delay cannot be negative")
	}

	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
		}
	}
	return nil
}
