package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderJWTSecret is the shipped example secret. It is refused in production.
const PlaceholderJWTSecret = "change-this-in-production"

// Config holds all configuration values
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Verification VerificationConfig
	Admin        AdminConfig
	Mail         MailConfig
	RateLimit    RateLimitConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port      string
	Env       string
	PublicURL string
	// TrustedProxies may set X-Forwarded-For. Empty trusts no proxy, so the
	// client IP is always the socket peer.
	TrustedProxies []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	Path        string
	AutoMigrate bool
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

var pqEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pqValue quotes a value for a lib/pq key/value connection string.
func pqValue(v string) string {
	return "'" + pqEscaper.Replace(v) + "'"
}

// DSN returns a key/value connection string understood by lib/pq.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pqValue(c.Host), c.Port, pqValue(c.User), pqValue(c.Password), pqValue(c.DBName), pqValue(c.SSLMode))
}

// IsSQLite reports whether the server should run on a local SQLite file.
func (c DatabaseConfig) IsSQLite() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
	Enabled  bool
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// VerificationConfig holds email verification policy
type VerificationConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	SweepInterval  time.Duration
	// SweepGrace is how long an expired token is kept so consume can still
	// answer Expired before the sweeper clears it.
	SweepGrace time.Duration
}

// AdminConfig holds the admin allow-list
type AdminConfig struct {
	Email string
}

// MailConfig holds outgoing mail settings. Driver "log" only logs messages.
type MailConfig struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// RateLimitConfig holds request limits
type RateLimitConfig struct {
	LoginPerMinute int
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                 "8080",
	"SERVER_ENV":                  "development",
	"PUBLIC_URL":                  "http://localhost:8080",
	"DB_DRIVER":                   "postgres",
	"DB_HOST":                     "localhost",
	"DB_PORT":                     5432,
	"DB_USER":                     "postgres",
	"DB_PASSWORD":                 "postgres",
	"DB_NAME":                     "hostelhub",
	"DB_SSLMODE":                  "disable",
	"DB_PATH":                     "data/hostelhub.db",
	"DB_AUTO_MIGRATE":             true,
	"REDIS_URL":                   "redis://localhost:6379",
	"REDIS_PASSWORD":              "",
	"REDIS_ENABLED":               true,
	"JWT_SECRET":                  "",
	"JWT_EXPIRES":                 "7d",
	"JWT_ISSUER":                  "hostel-hub",
	"VERIFICATION_TTL":            "15m",
	"RESEND_COOLDOWN":             "60s",
	"VERIFICATION_SWEEP_INTERVAL": "5m",
	"VERIFICATION_SWEEP_GRACE":    "24h",
	"TRUSTED_PROXIES":             "",
	"ADMIN_EMAIL":                 "",
	"MAIL_DRIVER":                 "log",
	"SMTP_HOST":                   "",
	"SMTP_PORT":                   587,
	"SMTP_USERNAME":               "",
	"SMTP_PASSWORD":               "",
	"MAIL_FROM":                   "noreply@hostelhub.local",
	"MAIL_FROM_NAME":              "Hostel Hub",
	"RATE_LIMIT_LOGIN_PER_MINUTE": 10,
}

// Load loads configuration from environment variables and an optional config file
func Load() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			PublicURL:      strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
			TrustedProxies: getList(v, "TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(v.GetString("DB_DRIVER")),
			Host:        v.GetString("DB_HOST"),
			Port:        getInt(v, "DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			Path:        v.GetString("DB_PATH"),
			AutoMigrate: getBool(v, "DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("REDIS_URL"),
			Password: v.GetString("REDIS_PASSWORD"),
			Enabled:  getBool(v, "REDIS_ENABLED"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: getDuration(v, "JWT_EXPIRES"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Verification: VerificationConfig{
			TTL:            getDuration(v, "VERIFICATION_TTL"),
			ResendCooldown: getDuration(v, "RESEND_COOLDOWN"),
			SweepInterval:  getDuration(v, "VERIFICATION_SWEEP_INTERVAL"),
			SweepGrace:     getDuration(v, "VERIFICATION_SWEEP_GRACE"),
		},
		Admin: AdminConfig{
			Email: strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		},
		Mail: MailConfig{
			Driver:   strings.ToLower(v.GetString("MAIL_DRIVER")),
			Host:     v.GetString("SMTP_HOST"),
			Port:     getInt(v, "SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("MAIL_FROM"),
			FromName: v.GetString("MAIL_FROM_NAME"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getInt(v, "RATE_LIMIT_LOGIN_PER_MINUTE"),
		},
	}
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Server.Env == "production" && c.JWT.Secret == PlaceholderJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES must be positive"))
	}
	if c.Verification.TTL <= 0 {
		errs = append(errs, errors.New("VERIFICATION_TTL must be positive"))
	}
	if c.Mail.Driver == "smtp" && c.Mail.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp"))
	}
	return errors.Join(errs...)
}

// ParseDuration extends time.ParseDuration with a day unit, e.g. "7d".
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}

func getDuration(v *viper.Viper, key string) time.Duration {
	if d, err := ParseDuration(v.GetString(key)); err == nil {
		return d
	}
	d, _ := ParseDuration(fmt.Sprint(defaults[key]))
	return d
}

// getList splits a comma separated value, dropping blanks.
func getList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(v *viper.Viper, key string) int {
	if i, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return i
	}
	return defaults[key].(int)
}

func getBool(v *viper.Viper, key string) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key))); err == nil {
		return b
	}
	return defaults[key].(bool)
}
