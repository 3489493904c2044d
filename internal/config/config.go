package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Admin HTTP server
	AdminPort string

	// Database
	SQLiteDBPath string

	// AMQP, empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTimeout  time.Duration
	EmailFrom    string

	// SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// Scheduler
	DueScanInterval        time.Duration
	WarningScanInterval    time.Duration
	ThresholdSweepInterval time.Duration
	WarningLeadDays        int
	BudgetAlertPercent     int
	SchedulerLeaseTTL      time.Duration

	// Google Sheets export, empty ID uses the in-memory writer
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	LogLevel string
}

func Load() *Config {
	return &Config{
		AdminPort:    getEnv("ADMIN_PORT", "8090"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/lana.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "lana"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_transactions"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPTimeout:  getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		EmailFrom:    getEnv("EMAIL_FROM", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       getEnv("TWILIO_FROM", ""),

		DueScanInterval:        getEnvDuration("DUE_SCAN_INTERVAL", time.Minute),
		WarningScanInterval:    getEnvDuration("WARNING_SCAN_INTERVAL", time.Minute),
		ThresholdSweepInterval: getEnvDuration("THRESHOLD_SWEEP_INTERVAL", 24*time.Hour),
		WarningLeadDays:        getEnvInt("WARNING_LEAD_DAYS", 2),
		BudgetAlertPercent:     getEnvInt("BUDGET_ALERT_PERCENT", 80),
		SchedulerLeaseTTL:      getEnvDuration("SCHEDULER_LEASE_TTL", 5*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.AdminPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid admin port '%s': must be a number", c.AdminPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid admin port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SMTPHost != "" {
		if c.EmailFrom == "" {
			errors = append(errors, "EMAIL_FROM is required when SMTP_HOST is set")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.SMTPTimeout != 0 && c.SMTPTimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid SMTP timeout %v: must be at least 1 second", c.SMTPTimeout))
		}
	}

	twilio := []string{c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioFrom}
	set := 0
	for _, v := range twilio {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(twilio) {
		errors = append(errors, "TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM must be set together")
	}

	for name, d := range map[string]time.Duration{
		"due scan interval":        c.DueScanInterval,
		"warning scan interval":    c.WarningScanInterval,
		"threshold sweep interval": c.ThresholdSweepInterval,
	} {
		if d < time.Second {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at least 1 second", name, d))
		} else if d > 7*24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at most 7 days", name, d))
		}
	}
	if c.SchedulerLeaseTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scheduler lease TTL %v: must be at least 1 second", c.SchedulerLeaseTTL))
	}

	if c.WarningLeadDays < 1 || c.WarningLeadDays > 31 {
		errors = append(errors, fmt.Sprintf("invalid warning lead days %d: must be between 1 and 31", c.WarningLeadDays))
	}
	if c.BudgetAlertPercent < 1 || c.BudgetAlertPercent > 100 {
		errors = append(errors, fmt.Sprintf("invalid budget alert percent %d: must be between 1 and 100", c.BudgetAlertPercent))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
