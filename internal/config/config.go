package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Mongo      MongoConfig
	JWT        JWTConfig
	Google     GoogleConfig
	Cloudinary CloudinaryConfig
	SMTP       SMTPConfig
	SMS        SMSConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Notify     NotifyConfig

	// RateLimitRPM is the per-client-IP request budget for the whole API.
	RateLimitRPM int
	// AdminEmails may moderate reviews.
	AdminEmails []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	Env            string
	HealthGRPCPort string
	FrontendURL    string
}

// MongoConfig holds database configuration
type MongoConfig struct {
	URI      string
	Database string
}

// JWTConfig holds token signing configuration. Keys, when present, enables
// rotation and takes precedence over Secret.
type JWTConfig struct {
	Secret     string
	Keys       map[string]string
	ActiveKid  string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// GoogleConfig holds federated sign-in configuration
type GoogleConfig struct {
	ClientID string
	CertsURL string
}

// CloudinaryConfig holds image host credentials
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether uploads can be performed.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// SMTPConfig holds outbound email configuration
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
}

// SMSConfig holds Gupshup configuration
type SMSConfig struct {
	APIKey       string
	AppName      string
	SourceNumber string
	BaseURL      string
}

// KafkaConfig holds event stream configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds the optional shared rate-limit store
type RedisConfig struct {
	URL string
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// NotifyConfig sizes the notification worker pool
type NotifyConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	frontend := getEnv("FRONTEND_URL", "http://localhost:3000")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			Env:            getEnv("ENV", "development"),
			HealthGRPCPort: getEnv("HEALTH_GRPC_PORT", ""),
			FrontendURL:    strings.TrimRight(frontend, "/"),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGODB_URI"),
			Database: getEnv("DATABASE_NAME", "wild_welcome"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			ActiveKid:  os.Getenv("JWT_ACTIVE_KID"),
			Algorithm:  getEnv("JWT_ALGORITHM", "HS256"),
			AccessTTL:  time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			RefreshTTL: time.Duration(getEnvAsInt("REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,
		},
		Google: GoogleConfig{
			ClientID: os.Getenv("GOOGLE_CLIENT_ID"),
			CertsURL: getEnv("GOOGLE_CERTS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:    getEnv("CLOUDINARY_FOLDER", "wild_welcome"),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_SERVER", "smtp.gmail.com"),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			FromEmail: getEnv("FROM_EMAIL", "noreply@wildwelcome.rw"),
		},
		SMS: SMSConfig{
			APIKey:       os.Getenv("GUPSHUP_API_KEY"),
			AppName:      getEnv("GUPSHUP_APP_NAME", "WildWelcome"),
			SourceNumber: os.Getenv("GUPSHUP_SOURCE_NUMBER"),
			BaseURL:      getEnv("GUPSHUP_BASE_URL", "https://api.gupshup.io/sm/api/v1"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "booking-events"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Notify: NotifyConfig{
			Workers:   getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize: getEnvAsInt("NOTIFY_QUEUE", 256),
		},
		RateLimitRPM: getEnvAsInt("RATE_LIMIT_RPM", 120),
		AdminEmails:  getEnvAsList("ADMIN_EMAILS"),
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{cfg.Server.FrontendURL}
	}

	keys, err := parseKeys(os.Getenv("JWT_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.JWT.Keys = keys

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent required settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGODB_URI must be set"))
	}
	if c.JWT.Secret == "" && len(c.JWT.Keys) == 0 {
		errs = append(errs, errors.New("either JWT_SECRET or JWT_KEYS must be set"))
	}
	if len(c.JWT.Keys) > 0 {
		if _, ok := c.JWT.Keys[c.JWT.ActiveKid]; !ok {
			errs = append(errs, fmt.Errorf("JWT_ACTIVE_KID %q not present in JWT_KEYS", c.JWT.ActiveKid))
		}
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// parseKeys parses kid:secret pairs separated by commas.
func parseKeys(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	keys := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
