package config

import "time"

// Challenge check configuration
type CheckConfig struct {
	VerifierTimeout time.Duration // Max time to wait for an external verifier
	DefaultPageSize int           // Default activity page size
	MaxPageSize     int           // Max activity page size
}

var DefaultCheckConfig = CheckConfig{
	VerifierTimeout: 10 * time.Second,
	DefaultPageSize: 50,
	MaxPageSize:     100,
}
