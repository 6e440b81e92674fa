// Package config loads the voting service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sevotec/voting-service/adapters/envelope"
)

// Config is the full runtime configuration of the voting service
type Config struct {
	ListenAddr  string
	RedisURL    string
	DatabaseURL string

	// APIKey is required on every inbound call
	APIKey string
	// ServiceName is this service's identity on the wire
	ServiceName string
	// GatewayName is the only caller trusted on inbound routes
	GatewayName string
	// BlockchainName and CensusName are the audiences of outbound calls
	BlockchainName string
	CensusName     string

	// Keys maps key names to base64 PEM values
	PrivateKeys map[string]string
	PublicKeys  map[string]string

	BlockchainURL    string
	BlockchainAPIKey string
	// CensusURL selects the HTTP transport; empty routes census calls
	// through the message broker
	CensusURL    string
	CensusAPIKey string

	RetryBaseDelay time.Duration
}

// FromEnv reads the configuration from environment variables
func FromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:       getenv("VOTING_LISTEN_ADDR", ":3000"),
		RedisURL:         getenv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		APIKey:           os.Getenv("VOTING_INTERNAL_API_KEY"),
		ServiceName:      getenv("VOTING_SERVICE_NAME", "voting-service"),
		GatewayName:      getenv("GATEWAY_SERVICE_NAME", "sevotec-gateway"),
		BlockchainName:   getenv("BLOCKCHAIN_SERVICE_NAME", "blockchain-service"),
		CensusName:       getenv("CENSUS_SERVICE_NAME", "census-service"),
		BlockchainURL:    getenv("BLOCKCHAIN_SERVICE_URL", "http://localhost:3002"),
		BlockchainAPIKey: os.Getenv("BLOCKCHAIN_INTERNAL_API_KEY"),
		CensusURL:        os.Getenv("CENSUS_SERVICE_URL"),
		CensusAPIKey:     os.Getenv("CENSUS_INTERNAL_API_KEY"),
		PrivateKeys: map[string]string{
			envelope.KeyVotingPrivate: os.Getenv(envelope.KeyVotingPrivate),
			envelope.KeyVotingSigning: os.Getenv(envelope.KeyVotingSigning),
		},
		PublicKeys: map[string]string{
			envelope.KeyGatewayPublic:    os.Getenv(envelope.KeyGatewayPublic),
			envelope.KeyBlockchainPublic: os.Getenv(envelope.KeyBlockchainPublic),
			envelope.KeyCensusPublic:     os.Getenv(envelope.KeyCensusPublic),
		},
		RetryBaseDelay: time.Second,
	}

	if v := os.Getenv("VOTING_RETRY_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VOTING_RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}

	// The signing key defaults to the decryption key
	if cfg.PrivateKeys[envelope.KeyVotingSigning] == "" {
		cfg.PrivateKeys[envelope.KeyVotingSigning] = cfg.PrivateKeys[envelope.KeyVotingPrivate]
	}

	return cfg, nil
}

// Validate reports every missing required setting at once
func (c *Config) Validate() error {
	var errs []error

	required := map[string]string{
		"VOTING_INTERNAL_API_KEY": c.APIKey,
		"VOTING_SERVICE_NAME":     c.ServiceName,
		"GATEWAY_SERVICE_NAME":    c.GatewayName,
		"REDIS_URL":               c.RedisURL,
	}
	for name, key := range c.PrivateKeys {
		required[name] = key
	}
	for name, key := range c.PublicKeys {
		required[name] = key
	}

	for name, value := range required {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if c.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("VOTING_RETRY_BASE_DELAY must be positive"))
	}

	return errors.Join(errs...)
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
