package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values for the server.  Each field
// corresponds to an environment variable; required variables are enforced by
// must() and missing values cause the program to exit with a fatal log
// message.
type Config struct {
	Env              string  // application environment (e.g. "dev", "prod")
	Port             string  // HTTP port to listen on
	DBUser           string  // database username
	DBPass           string  // database password (optional)
	DBHost           string  // database host address
	DBPort           string  // database port number
	DBName           string  // database name
	JWTSecret        string  // secret used to sign JWTs
	AccessTTLMin     int     // access token time-to-live in minutes
	RefreshTTLDays   int     // refresh token time-to-live in days
	BcryptCost       int     // bcrypt cost for password hashing
	SessionTTLHours  int     // work-session time-to-live in hours (default 8)
	DriftThresholdKm float64 // displacement threshold for drift alerts (default 1.0)
}

// Load reads configuration values from environment variables and returns a
// Config.
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:   mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:       mustInt("BCRYPT_COST"),
		SessionTTLHours:  intOr("SESSION_TTL_HOURS", 8),
		DriftThresholdKm: floatOr("DRIFT_THRESHOLD_KM", 1.0),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to def.
func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// floatOr reads an optional float variable, falling back to def.
func floatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid float for %s: %q", key, v)
	}
	return f
}
