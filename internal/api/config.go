package api

// Config holds server configuration.
type Config struct {
	Port           int
	DBPath         string     // Path to the SQLite dataset store
	Auth           AuthConfig // Authentication configuration
	AllowedOrigins []string   // CORS allowed origins (empty = allow all)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}
