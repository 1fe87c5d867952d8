package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		// Address the web frontend listens on
		Addr string `env:"SERVER_ADDR" envDefault:":3000"`

		// Origins allowed to call the frontend from a browser on another host
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	API struct {
		// Base endpoint of the remote listing service, including the /api prefix
		BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`

		// Zero disables the client timeout
		Timeout time.Duration `env:"API_TIMEOUT" envDefault:"0s"`
	}

	Session struct {
		// Location of the sqlite file holding persisted sessions
		DBPath string `env:"SESSION_DB_PATH" envDefault:"database/sessions.db"`

		// Key used to sign the session cookie
		CookieSecret string `env:"SESSION_COOKIE_SECRET" envDefault:"change-me-in-production"`

		CookieSecure bool `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

		MaxAgeDays int `env:"SESSION_MAX_AGE_DAYS" envDefault:"30"`

		// How often expired sessions are removed from the database
		SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	}

	Cloudinary struct {
		CloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
		UploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET"`
	}

	Listing struct {
		PageSize int    `env:"LISTING_PAGE_SIZE" envDefault:"10"`
		Sort     string `env:"LISTING_SORT" envDefault:"id,desc"`
	}

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
