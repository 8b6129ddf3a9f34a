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
	// HTTP Server
	Port     string
	LogLevel string

	// Data backend selection
	DataBackend string

	// CSV and workbook backends
	DataDir      string
	BrandsFile   string
	MoviesFile   string
	WorkbookFile string

	// Database
	SQLiteDBPath string

	// AMQP (reload fan-out)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleBrandsRange     string
	GoogleMoviesRange     string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string

	// Charts and animation
	TopN          int
	FrameInterval time.Duration
	DecayK        float64
	CacheTTL      time.Duration

	// Periodic reload, disabled when zero
	RefreshInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8082"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", "csv"),

		DataDir:    getEnv("DATA_DIR", "./data"),
		BrandsFile: getEnv("BRANDS_FILE", "brand.csv"),
		MoviesFile: getEnv("MOVIES_FILE", "peliculas_mayor_recaudacion.csv"),

		WorkbookFile: getEnv("WORKBOOK_FILE", "studios.xlsx"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/studiocharts.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "studiocharts"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_reload"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBrandsRange:     getEnv("GOOGLE_BRANDS_RANGE", "brand!A:E"),
		GoogleMoviesRange:     getEnv("GOOGLE_MOVIES_RANGE", "peliculas!A:E"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		TopN:          getEnvInt("TOP_N", 10),
		FrameInterval: getEnvDuration("FRAME_INTERVAL", 30*time.Millisecond),
		DecayK:        getEnvFloat("DECAY_K", 50),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),
	}

	return cfg
}

// BrandsPath returns the Schema A CSV location for the csv backend.
func (c *Config) BrandsPath() string {
	return filepath.Join(c.DataDir, c.BrandsFile)
}

// MoviesPath returns the Schema B CSV location for the csv backend.
func (c *Config) MoviesPath() string {
	return filepath.Join(c.DataDir, c.MoviesFile)
}

// WorkbookPath returns the workbook location for the xlsx backend.
func (c *Config) WorkbookPath() string {
	return filepath.Join(c.DataDir, c.WorkbookFile)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"csv", "xlsx", "sqlite", "sheets"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "csv":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using csv backend")
		}
		if c.BrandsFile == "" || c.MoviesFile == "" {
			errors = append(errors, "BRANDS_FILE and MOVIES_FILE are required when using csv backend")
		}
	case "xlsx":
		if c.WorkbookFile == "" {
			errors = append(errors, "WORKBOOK_FILE is required when using xlsx backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleBrandsRange == "" || c.GoogleMoviesRange == "" {
			errors = append(errors, "GOOGLE_BRANDS_RANGE and GOOGLE_MOVIES_RANGE are required when using sheets backend")
		}

		hasClientFile := c.GoogleOAuthClientFile != ""
		hasClientJSON := c.GoogleOAuthClientJSON != ""
		if !hasClientFile && !hasClientJSON {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for sheets backend")
		}

		hasTokenFile := c.GoogleOAuthTokenFile != ""
		hasTokenJSON := c.GoogleOAuthTokenJSON != ""
		if !hasTokenFile && !hasTokenJSON {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for sheets backend")
		}

		if hasClientFile {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
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

	if c.TopN < 1 {
		errors = append(errors, fmt.Sprintf("invalid top N %d: must be at least 1", c.TopN))
	} else if c.TopN > 100 {
		errors = append(errors, fmt.Sprintf("invalid top N %d: must be at most 100", c.TopN))
	}

	if c.FrameInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid frame interval %v: must be positive", c.FrameInterval))
	} else if c.FrameInterval > 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid frame interval %v: must be at most 10s", c.FrameInterval))
	}

	if c.DecayK <= 0 {
		errors = append(errors, fmt.Sprintf("invalid decay constant %v: must be positive", c.DecayK))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RefreshInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must not be negative", c.RefreshInterval))
	} else if c.RefreshInterval > 0 && c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1s", c.RefreshInterval))
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
