package indexpool

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("indexpool: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("indexpool: %s must not be empty", name))
	}
}

// Option adjusts a Config during construction via New, after defaults and
// before validation.
//
// Several With* functions panic on invalid input (negative sizes,
// non-positive durations, empty strings). These panics are intentional:
// option values are typically compile-time constants, so an invalid value
// indicates a programmer error rather than a runtime condition. The
// pattern mirrors [regexp.MustCompile] — fail fast during initialization
// instead of returning errors that would be universally fatal anyway.
type Option func(*Config)

// WithMinPool sets the number of ready indexes reconciliation maintains.
// A value of 0 disables pre-provisioning: indexes are only created when
// a knowledge-base creation finds the pool empty and triggers a cycle.
//
// Default: 3.
//
// Panics if n < 0.
func WithMinPool(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("indexpool: min pool must not be negative, got %d", n))
	}
	return func(c *Config) {
		c.MinPool = n
	}
}

// WithMaxProvisioners caps concurrent remote index create and delete
// calls within one cycle.
//
// Default: 4.
//
// Panics if n <= 0.
func WithMaxProvisioners(n int) Option {
	requirePositive("max provisioners", n)
	return func(c *Config) {
		c.MaxProvisioners = n
	}
}

// WithStuckThreshold sets the age past which a PROVISIONING record is
// presumed abandoned. Set it comfortably above the slowest expected
// remote index creation; too low and in-flight creations get swept.
//
// Default: 10 minutes.
//
// Panics if d <= 0.
func WithStuckThreshold(d time.Duration) Option {
	requirePositive("stuck threshold", d)
	return func(c *Config) {
		c.StuckThreshold = d
	}
}

// WithReconcileInterval sets the periodic reconcile wake, the backstop
// for trigger loss across process restarts.
//
// Default: 5 minutes.
//
// Panics if d <= 0.
func WithReconcileInterval(d time.Duration) Option {
	requirePositive("reconcile interval", d)
	return func(c *Config) {
		c.ReconcileInterval = d
	}
}

// WithCleanupAt sets the daily sweep time as "HH:MM" in the local zone.
// The value is validated with the rest of the configuration by New.
//
// Default: "08:03".
//
// Panics if at is empty.
func WithCleanupAt(at string) Option {
	requireNonEmpty("cleanup schedule", at)
	return func(c *Config) {
		c.CleanupAt = at
	}
}

// WithEmbeddingDimension sets the vector dimension of new indexes. It
// must match the embedding model used by the ingestion pipeline; changing
// it does not alter already-provisioned indexes.
//
// Default: 1024.
//
// Panics if dim <= 0.
func WithEmbeddingDimension(dim int32) Option {
	if dim <= 0 {
		panic(fmt.Sprintf("indexpool: embedding dimension must be greater than 0, got %d", dim))
	}
	return func(c *Config) {
		c.EmbeddingDimension = dim
	}
}

// WithNonFilterableMetadataKeys sets the metadata keys excluded from
// filtering on new indexes, typically bulky payload fields like raw text.
func WithNonFilterableMetadataKeys(keys ...string) Option {
	return func(c *Config) {
		c.NonFilterableMetadataKeys = keys
	}
}
