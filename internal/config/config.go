package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Reports  ReportsConfig  `json:"reports"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	APIPrefix       string        `json:"api_prefix"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig holds the connection parameters handed to the report engine.
// The service itself only connects when company verification is enabled.
type DatabaseConfig struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// ReportsConfig controls the external report engine and temp file handling
type ReportsConfig struct {
	StarterPath     string        `json:"starter_path"`
	TemplateDir     string        `json:"template_dir"`
	TempDir         string        `json:"temp_dir"`
	Timeout         time.Duration `json:"timeout"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	MaxAge          time.Duration `json:"max_age"`
	DeleteDelay     time.Duration `json:"delete_delay"`
	MaxConcurrent   int           `json:"max_concurrent"`
	StrictStderr    bool          `json:"strict_stderr"`
	InfoMarker      string        `json:"info_marker"`
	ToolCheckTTL    time.Duration `json:"tool_check_ttl"`
	CompanyTemplate string        `json:"company_template"`
	VerifyCompany   bool          `json:"verify_company"`
	CompanyDatabase bool          `json:"company_database"`
	RateLimit       float64       `json:"rate_limit"`
	RateBurst       int           `json:"rate_burst"`
}

// LoggingConfig
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

var supportedDatabaseTypes = map[string]bool{
	"mysql":    true,
	"postgres": true,
}

// Default returns the configuration used when neither a file nor the
// environment provide a value. Platform specific values are resolved here.
func Default() *Config {
	starter := "jasperstarter"
	timeout := 30 * time.Second
	if runtime.GOOS == "windows" {
		starter = "jasperstarter.bat"
		timeout = 45 * time.Second
	}

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			APIPrefix:       "/api/v1",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Type:   "mysql",
			Host:   "localhost",
			Port:   3306,
			DBName: "siete_bd",
			User:   "root",
		},
		Reports: ReportsConfig{
			StarterPath:     starter,
			TemplateDir:     "reports",
			TempDir:         "temp",
			Timeout:         timeout,
			CleanupInterval: 5 * time.Minute,
			MaxAge:          10 * time.Minute,
			DeleteDelay:     5 * time.Second,
			MaxConcurrent:   4,
			InfoMarker:      "INFO",
			ToolCheckTTL:    time.Minute,
			CompanyTemplate: "reporte_empresa",
			CompanyDatabase: true,
			RateBurst:       10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if err := envInt("SERVER_PORT", &config.Server.Port); err != nil {
		return err
	}
	if prefix := os.Getenv("API_PREFIX"); prefix != "" {
		config.Server.APIPrefix = prefix
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = strings.ToLower(dbType)
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if err := envInt("DB_PORT", &config.Database.Port); err != nil {
		return err
	}
	if dbName := os.Getenv("DATABASE"); dbName != "" {
		config.Database.DBName = dbName
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass, ok := os.LookupEnv("DB_PASSWORD"); ok {
		config.Database.Password = dbPass
	}

	if starter := os.Getenv("JASPER_STARTER_PATH"); starter != "" {
		config.Reports.StarterPath = starter
	}
	if dir := os.Getenv("REPORTS_TEMPLATE_DIR"); dir != "" {
		config.Reports.TemplateDir = dir
	}
	if dir := os.Getenv("REPORTS_TEMP_DIR"); dir != "" {
		config.Reports.TempDir = dir
	}
	if marker := os.Getenv("REPORTS_INFO_MARKER"); marker != "" {
		config.Reports.InfoMarker = marker
	}
	if name := os.Getenv("REPORTS_COMPANY_TEMPLATE"); name != "" {
		config.Reports.CompanyTemplate = name
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"REPORTS_TIMEOUT", &config.Reports.Timeout},
		{"REPORTS_CLEANUP_INTERVAL", &config.Reports.CleanupInterval},
		{"REPORTS_MAX_AGE", &config.Reports.MaxAge},
		{"REPORTS_DELETE_DELAY", &config.Reports.DeleteDelay},
		{"REPORTS_TOOL_CHECK_TTL", &config.Reports.ToolCheckTTL},
		{"SERVER_SHUTDOWN_TIMEOUT", &config.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := envDuration(d.key, d.dest); err != nil {
			return err
		}
	}

	if err := envInt("REPORTS_MAX_CONCURRENT", &config.Reports.MaxConcurrent); err != nil {
		return err
	}
	if err := envInt("REPORTS_RATE_BURST", &config.Reports.RateBurst); err != nil {
		return err
	}
	if err := envBool("REPORTS_STRICT_STDERR", &config.Reports.StrictStderr); err != nil {
		return err
	}
	if err := envBool("REPORTS_VERIFY_COMPANY", &config.Reports.VerifyCompany); err != nil {
		return err
	}
	if err := envBool("REPORTS_COMPANY_DATABASE", &config.Reports.CompanyDatabase); err != nil {
		return err
	}
	if v := os.Getenv("REPORTS_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REPORTS_RATE_LIMIT: invalid number %q", v)
		}
		config.Reports.RateLimit = f
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = strings.ToLower(format)
	}
	return nil
}

// Validate checks the configuration and prepares the template and temp
// directories, creating them when missing and probing the temp directory
// for write access.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if !supportedDatabaseTypes[c.Database.Type] {
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.Port <= 0 {
		return fmt.Errorf("database port must be positive")
	}

	r := &c.Reports
	if strings.TrimSpace(r.StarterPath) == "" {
		return fmt.Errorf("report engine path is required")
	}
	if r.TemplateDir == "" || r.TempDir == "" {
		return fmt.Errorf("template and temp directories are required")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("report timeout must be positive")
	}
	if r.CleanupInterval <= 0 || r.MaxAge <= 0 {
		return fmt.Errorf("cleanup interval and max age must be positive")
	}
	if r.DeleteDelay < 0 {
		return fmt.Errorf("delete delay must not be negative")
	}
	if r.MaxConcurrent < 0 {
		return fmt.Errorf("max concurrent must not be negative")
	}
	if r.RateLimit < 0 || r.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}
	if r.CompanyTemplate == "" {
		return fmt.Errorf("company template name is required")
	}

	var err error
	if r.TemplateDir, err = filepath.Abs(r.TemplateDir); err != nil {
		return fmt.Errorf("resolve template dir: %w", err)
	}
	if r.TempDir, err = filepath.Abs(r.TempDir); err != nil {
		return fmt.Errorf("resolve temp dir: %w", err)
	}

	for _, dir := range []string{r.TemplateDir, r.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	check, err := os.CreateTemp(r.TempDir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("temp dir %s is not writable: %w", r.TempDir, err)
	}
	check.Close()
	_ = os.Remove(check.Name())

	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DriverName returns the database/sql driver registered for the configured type
func (c *DatabaseConfig) DriverName() string {
	return c.Type
}

// GetDSN returns the connection string for the configured database type
func (c *DatabaseConfig) GetDSN() string {
	if c.Type == "postgres" {
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

func envInt(key string, dest *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dest = n
	return nil
}

func envBool(key string, dest *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	*dest = b
	return nil
}

func envDuration(key string, dest *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are milliseconds, matching the legacy configuration.
		ms, convErr := strconv.ParseInt(v, 10, 64)
		if convErr != nil {
			return fmt.Errorf("%s: invalid duration %q", key, v)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	*dest = d
	return nil
}
