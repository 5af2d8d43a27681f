package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs, bools for feature switches.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign JWTs and reset-link tokens
	AccessTTLMin    int    // access token time-to-live in minutes
	RefreshTTLHours int    // refresh token time-to-live in hours
	ResetTTLHours   int    // password-reset link time-to-live in hours
	BcryptCost      int    // bcrypt cost for password hashing
	EmailSend       bool   // when false, new accounts are created active and no mail goes out
	EmailFrom       string // From address on outbound mail
	SMTPHost        string // SMTP relay host
	SMTPPort        int    // SMTP relay port
	SMTPUser        string // SMTP username (empty allowed for local relays)
	SMTPPass        string // SMTP password
	ResetLinkBase   string // frontend base URL the reset link points at
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Mail settings are
// only required when EMAIL_SEND is true.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTTLMin:    envInt("ACCESS_TOKEN_TTL_MIN", 5),
		RefreshTTLHours: envInt("REFRESH_TOKEN_TTL_HOURS", 24),
		ResetTTLHours:   envInt("RESET_TOKEN_TTL_HOURS", 24),
		BcryptCost:      mustInt("BCRYPT_COST"),
		EmailSend:       envBool("EMAIL_SEND", false),
		EmailFrom:       os.Getenv("EMAIL_FROM"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        envInt("SMTP_PORT", 587),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		ResetLinkBase:   envStr("RESET_LINK_BASE_URL", "http://localhost:3000"),
	}
	if cfg.EmailSend {
		if cfg.SMTPHost == "" || cfg.EmailFrom == "" {
			log.Fatal("EMAIL_SEND=true requires SMTP_HOST and EMAIL_FROM")
		}
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
