package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at startup
// and passed into component constructors; nothing reads viper after Load
// returns.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	OCR          OCRConfig          `mapstructure:"ocr"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Register     RegisterConfig     `mapstructure:"register"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds document file storage configuration
type StorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	InvoiceFolder string `mapstructure:"invoice_folder"`
	AuditFolder   string `mapstructure:"audit_folder"`
}

// OCRConfig holds the OCR/extraction collaborator configuration.
// An empty endpoint disables the remote service; ingestion then runs on the
// local PDF text fallback only.
type OCRConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// OrchestratorConfig holds the AI orchestrator collaborator configuration.
// When Endpoint is empty and openai.api_key is set, the OpenAI-backed
// orchestrator is used instead.
type OrchestratorConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RegisterConfig holds the spreadsheet register mirror configuration
type RegisterConfig struct {
	Path      string `mapstructure:"path"`
	SheetName string `mapstructure:"sheet_name"`
}

// LarkConfig holds Lark API configuration for review notifications.
// Notifications are disabled when AppID is empty.
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	ChatID     string        `mapstructure:"chat_id"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/invoiceflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("storage.base_path", "data/files")
	viper.SetDefault("storage.invoice_folder", "Invoices")
	viper.SetDefault("storage.audit_folder", "AuditLogs")

	viper.SetDefault("ocr.timeout", 60*time.Second)
	viper.SetDefault("ocr.poll_interval", 2*time.Second)

	viper.SetDefault("orchestrator.timeout", 60*time.Second)

	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.max_tokens", 1000)
	viper.SetDefault("openai.timeout", 60*time.Second)

	viper.SetDefault("register.path", "data/invoice_register.xlsx")
	viper.SetDefault("register.sheet_name", "Invoices")

	viper.SetDefault("lark.api_timeout", 30*time.Second)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("ocr.endpoint", "OCR_ENDPOINT")
	viper.BindEnv("ocr.api_key", "OCR_API_KEY")
	viper.BindEnv("orchestrator.endpoint", "ORCHESTRATOR_ENDPOINT")
	viper.BindEnv("orchestrator.api_key", "ORCHESTRATOR_API_KEY")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("lark.app_id", "LARK_APP_ID")
	viper.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	viper.BindEnv("lark.chat_id", "LARK_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BasePath == "" {
		return fmt.Errorf("storage.base_path is required")
	}
	if c.Register.Path == "" {
		return fmt.Errorf("register.path is required")
	}
	if c.Orchestrator.Endpoint == "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("either orchestrator.endpoint or openai.api_key is required")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	return nil
}
