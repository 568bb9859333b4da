package main

import "fmt"

// Config holds the resolved CLI configuration for a single replay run.
type Config struct {
	ParcelPath   string
	DeltaPath    string
	PreRoot      string
	ExpectedRoot string
	Verbosity    int
	Metrics      bool
}

// DefaultConfig returns a Config with the same defaults cmd/eth2030 uses for
// shared flags (verbosity, metrics).
func DefaultConfig() Config {
	return Config{
		Verbosity: 3,
		Metrics:   false,
	}
}

// Validate checks that the required inputs were supplied.
func (c *Config) Validate() error {
	if c.ParcelPath == "" {
		return fmt.Errorf("--parcel is required")
	}
	if c.DeltaPath == "" {
		return fmt.Errorf("--delta is required")
	}
	if c.PreRoot == "" {
		return fmt.Errorf("--pre-root is required")
	}
	return nil
}
