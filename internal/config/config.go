package config // package config loads application configuration from environment variables

import (
	"os" // os provides access to environment variables

	"github.com/sirupsen/logrus" // logrus reports configuration errors and halts execution
)

// Config holds the core runtime configuration values.  Each field corresponds
// to an environment variable.  Optional groups (PayPal, sweeper, events,
// cache, rate limit, Redis) have their own loaders in this package.
type Config struct {
	Env          string   // application environment (e.g. "dev", "prod")
	Port         string   // HTTP port to listen on
	DBUser       string   // database username
	DBPass       string   // database password (optional)
	DBHost       string   // database host address
	DBPort       string   // database port number
	DBName       string   // database name
	JWTSecret    string   // secret used to sign JWTs
	AccessTTLMin int      // access token time-to-live in minutes
	BcryptCost   int      // bcrypt cost for password hashing
	FrontendURL  string   // base URL of the storefront SPA, used for payment redirects
	CORSOrigins  []string // origins allowed to call the API from a browser
	LogLevel     string   // logrus level name
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),                                     // environment (dev/test/prod)
		Port:         must("APP_PORT"),                                    // port to bind the HTTP server
		DBUser:       must("DB_USER"),                                     // database user
		DBPass:       os.Getenv("DB_PASS"),                                // database password (empty allowed)
		DBHost:       must("DB_HOST"),                                     // database host
		DBPort:       must("DB_PORT"),                                     // database port
		DBName:       must("DB_NAME"),                                     // database name
		JWTSecret:    must("JWT_SECRET"),                                  // secret used for signing JWTs
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 120),                 // tokens live two hours unless overridden
		BcryptCost:   envInt("BCRYPT_COST", 10),                           // bcrypt cost factor
		FrontendURL:  envStr("FRONTEND_URL", "http://localhost:5173"),     // SPA origin for PayPal return/cancel
		CORSOrigins:  envList("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		LogLevel:     envStr("LOG_LEVEL", "info"),
	}
}

// DSNParts returns the database connection parameters in the order
// database.Open expects them.
func (c Config) DSNParts() (user, pass, host, port, name string) {
	return c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}
