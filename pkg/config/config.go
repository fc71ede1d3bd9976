package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Store drivers
const (
	DriverFirebase = "firebase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration values
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	Verbose bool   `env:"MINT_DESK_VERBOSE"`

	StoreDriver         string `env:"MINT_DESK_STORE" envDefault:"sqlite"`
	CollectionPath      string `env:"MINT_DESK_COLLECTION" envDefault:"mint-requests"`
	FirebaseDatabaseURL string `env:"FIREBASE_DATABASE_URL"`
	FirebaseAuthToken   string `env:"FIREBASE_AUTH_TOKEN"`
	PostgresDSN         string `env:"POSTGRES_DSN"`
	SQLitePath          string `env:"MINT_DESK_SQLITE_PATH" envDefault:"mint-desk.db"`

	RulesFile string `env:"MINT_DESK_RULES_FILE" envDefault:"rules.yaml"`

	// Wallet the storefront asks buyers to send claims to
	DestinationAddress string `env:"MINT_DESK_DESTINATION_ADDRESS"`
	ContractAddress    string `env:"MINT_DESK_CONTRACT_ADDRESS"`
	ChainID            int64  `env:"MINT_DESK_CHAIN_ID"`
	TokenID            string `env:"MINT_DESK_TOKEN_ID" envDefault:"0"`

	PaymentRedirectURL string   `env:"MINT_DESK_PAYMENT_URL"`
	ThankYouURL        string   `env:"MINT_DESK_THANK_YOU_URL"`
	CORSOrigins        []string `env:"MINT_DESK_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	OTelEndpoint string `env:"MINT_DESK_OTEL_ENDPOINT"`
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected store driver has what it needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required for the firebase store")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("MINT_DESK_SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.CollectionPath == "" {
		return fmt.Errorf("MINT_DESK_COLLECTION must not be empty")
	}
	return nil
}
