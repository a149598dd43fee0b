package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        string
	Env         string
	PublicURL   string // externally reachable URL of this API, injected into deployed sites
	FrontendURL string // dashboard URL used in emails and OAuth redirects
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// RedisConfig holds cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// LLMConfig holds the chat-completion endpoint settings
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// ChatbotConfig tunes context assembly for the chatbot
type ChatbotConfig struct {
	SelectionThreshold int
	MaxSnippets        int
	HistoryLimit       int
	MaxMessageChars    int
	ContextTTL         time.Duration
}

// StripeConfig holds billing configuration
type StripeConfig struct {
	SecretKey             string
	WebhookSecret         string
	ApplicationFeePercent int64
	PlanPrices            map[string]string // plan name -> Stripe price ID
}

// HostingConfig holds the site-hosting provider configuration
type HostingConfig struct {
	APIURL        string
	Token         string
	TeamID        string
	ProjectPrefix string
	TemplateDir   string
	PollInterval  time.Duration
	DeployTimeout time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MailConfig holds SMTP configuration
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EventsConfig holds message broker configuration
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// OAuthProviderConfig holds the client credentials of one login provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// OAuthConfig holds social login configuration
type OAuthConfig struct {
	RedirectBaseURL string
	Google          OAuthProviderConfig
	GitHub          OAuthProviderConfig
}

// Config holds all configuration
type Config struct {
	DB      DBConfig
	Server  ServerConfig
	JWT     JWTConfig
	Log     LogConfig
	Metrics MetricsConfig
	Redis   RedisConfig
	LLM     LLMConfig
	Chatbot ChatbotConfig
	Stripe  StripeConfig
	Hosting HostingConfig
	Storage StorageConfig
	Mail    MailConfig
	Events  EventsConfig
	OAuth   OAuthConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	publicURL := getEnv("PUBLIC_API_URL", "http://localhost:8080")

	config := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "tourismos"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Env:         getEnv("APP_ENV", "development"),
			PublicURL:   publicURL,
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "tourismossecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "tourismos"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 800),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 3),
		},
		Chatbot: ChatbotConfig{
			SelectionThreshold: getEnvAsInt("CHATBOT_SELECTION_THRESHOLD", 3),
			MaxSnippets:        getEnvAsInt("CHATBOT_MAX_SNIPPETS", 5),
			HistoryLimit:       getEnvAsInt("CHATBOT_HISTORY_LIMIT", 20),
			MaxMessageChars:    getEnvAsInt("CHATBOT_MAX_MESSAGE_CHARS", 2000),
			ContextTTL:         getEnvAsDuration("CHATBOT_CONTEXT_TTL", 5*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:             getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:         getEnv("STRIPE_WEBHOOK_SECRET", ""),
			ApplicationFeePercent: int64(getEnvAsInt("STRIPE_APPLICATION_FEE_PERCENT", 5)),
			PlanPrices: map[string]string{
				"starter":      getEnv("STRIPE_PRICE_STARTER", ""),
				"professional": getEnv("STRIPE_PRICE_PROFESSIONAL", ""),
				"enterprise":   getEnv("STRIPE_PRICE_ENTERPRISE", ""),
			},
		},
		Hosting: HostingConfig{
			APIURL:        getEnv("HOSTING_API_URL", "https://api.vercel.com"),
			Token:         getEnv("HOSTING_TOKEN", ""),
			TeamID:        getEnv("HOSTING_TEAM_ID", ""),
			ProjectPrefix: getEnv("HOSTING_PROJECT_PREFIX", "tourismos"),
			TemplateDir:   getEnv("HOSTING_TEMPLATE_DIR", "./site-template"),
			PollInterval:  getEnvAsDuration("HOSTING_POLL_INTERVAL", 5*time.Second),
			DeployTimeout: getEnvAsDuration("HOSTING_DEPLOY_TIMEOUT", 10*time.Minute),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:    getEnv("STORAGE_BUCKET", "tourismos-deployments"),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "TourismOS <no-reply@tourismos.local>"),
		},
		Events: EventsConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "tourismos.events"),
		},
		OAuth: OAuthConfig{
			RedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", publicURL),
			Google: OAuthProviderConfig{
				ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			},
			GitHub: OAuthProviderConfig{
				ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			},
		},
	}

	if config.Server.Env == "production" && config.JWT.SigningKey == "tourismossecretkey" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("redis_addr", c.Redis.Addr),
		zap.String("llm_model", c.LLM.Model),
		zap.Bool("llm_configured", c.LLM.APIKey != ""),
		zap.Bool("stripe_configured", c.Stripe.SecretKey != ""),
		zap.Bool("hosting_configured", c.Hosting.Token != ""),
		zap.Bool("storage_configured", c.Storage.Endpoint != ""),
		zap.Bool("mail_configured", c.Mail.Host != ""),
		zap.Strings("kafka_brokers", c.Events.Brokers),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get comma separated environment variables
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
