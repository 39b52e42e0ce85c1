package parsers

import (
	"fmt"
	"time"

	"bill-analytics-service/internal/profiles"
)

// DefaultTimezone is the zone bill timestamps are recorded in
const DefaultTimezone = "Asia/Shanghai"

// DefaultSniffBytes is how much of a CSV file the detector reads
const DefaultSniffBytes = 1024

// Config holds configuration shared by the detector and the normalizers
type Config struct {
	Profile    *profiles.Profile
	Location   *time.Location
	SniffBytes int
}

// DefaultConfig returns a configuration using the embedded profile
func DefaultConfig() *Config {
	return &Config{
		Profile:    profiles.Default(),
		Location:   LoadLocation(DefaultTimezone),
		SniffBytes: DefaultSniffBytes,
	}
}

// Validate checks if the parser configuration is valid
func (c *Config) Validate() error {
	if c.Profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}
	if c.Location == nil {
		return fmt.Errorf("location cannot be nil")
	}
	if c.SniffBytes <= 0 {
		return fmt.Errorf("sniff bytes must be positive, got %d", c.SniffBytes)
	}
	for _, pl := range []profiles.Platform{c.Profile.Platforms.Alipay, c.Profile.Platforms.WeChat} {
		for _, enc := range pl.Encodings {
			if !IsKnownEncoding(enc) {
				return fmt.Errorf("unknown encoding %q for %s", enc, pl.Name)
			}
		}
	}
	return nil
}

// LoadLocation resolves a zone name, falling back to a fixed UTC+8 zone when
// the system has no tz database.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}
