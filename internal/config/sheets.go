package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/sheets"
)

// sheetsEnv lists the sheets.* keys that the GOOGLE_SHEETS_* variables also
// set. BASKET_SHEETS_* wins when both are present.
var sheetsEnv = []struct{ key, env string }{
	{"sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"},
	{"sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID"},
	{"sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET"},
	{"sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN"},
	{"sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID"},
	{"sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"},
}

// BindSheetsEnv binds the sheets.* keys to their environment variables.
func BindSheetsEnv() error {
	for _, b := range sheetsEnv {
		name := "BASKET_" + strings.ToUpper(strings.ReplaceAll(b.key, ".", "_"))
		if err := viper.BindEnv(b.key, name, b.env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}
	return nil
}

// LoadSheetsConfig builds the Google Sheets writer configuration from the
// sheets.* keys.
func LoadSheetsConfig() (*sheets.Config, error) {
	if err := BindSheetsEnv(); err != nil {
		return nil, err
	}

	cfg := sheets.DefaultConfig()
	cfg.ServiceAccountPath = ExpandPath(viper.GetString("sheets.service_account_path"))
	cfg.ClientID = viper.GetString("sheets.client_id")
	cfg.ClientSecret = viper.GetString("sheets.client_secret")
	cfg.RefreshToken = viper.GetString("sheets.refresh_token")
	cfg.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")

	if v := viper.GetString("sheets.spreadsheet_name"); v != "" {
		cfg.SpreadsheetName = v
	}
	if v := viper.GetString("sheets.time_zone"); v != "" {
		cfg.TimeZone = v
	}
	if viper.IsSet("sheets.batch_size") {
		cfg.BatchSize = viper.GetInt("sheets.batch_size")
	}
	if viper.IsSet("sheets.retry_attempts") {
		cfg.RetryAttempts = viper.GetInt("sheets.retry_attempts")
	}
	if viper.IsSet("sheets.retry_delay") {
		cfg.RetryDelay = viper.GetDuration("sheets.retry_delay")
	}
	if viper.IsSet("sheets.formatting") {
		cfg.EnableFormatting = viper.GetBool("sheets.formatting")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return &cfg, nil
}
