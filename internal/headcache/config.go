package headcache

import "time"

// Config carries the named options of spec §6. All fields have the
// documented defaults via DefaultConfig.
type Config struct {
	// PollTimeout bounds a single ingest poll (default 10ms).
	PollTimeout time.Duration
	// CleanInterval is the period between cleanup cycles (default 3s).
	CleanInterval time.Duration
	// MaxSize bounds the total entry count across partitions per topic
	// (default 100_000).
	MaxSize int

	// PartitionDiscoveryBaseBackoff and PartitionDiscoveryMaxBackoff
	// bound the full-jitter backoff used while resolving a topic's
	// partitions at construction time (spec §4.3.1: base 3ms, cap 300ms).
	PartitionDiscoveryBaseBackoff time.Duration
	PartitionDiscoveryMaxBackoff  time.Duration
	// PartitionDiscoveryAttempts is the minimum number of attempts before
	// giving up (spec §4.3.1: >= 3).
	PartitionDiscoveryAttempts int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:                   10 * time.Millisecond,
		CleanInterval:                 3 * time.Second,
		MaxSize:                       100_000,
		PartitionDiscoveryBaseBackoff: 3 * time.Millisecond,
		PartitionDiscoveryMaxBackoff:  300 * time.Millisecond,
		PartitionDiscoveryAttempts:    3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.CleanInterval <= 0 {
		c.CleanInterval = d.CleanInterval
	}
	if c.MaxSize <= 0 {
		c.MaxSize = d.MaxSize
	}
	if c.PartitionDiscoveryBaseBackoff <= 0 {
		c.PartitionDiscoveryBaseBackoff = d.PartitionDiscoveryBaseBackoff
	}
	if c.PartitionDiscoveryMaxBackoff <= 0 {
		c.PartitionDiscoveryMaxBackoff = d.PartitionDiscoveryMaxBackoff
	}
	if c.PartitionDiscoveryAttempts < 3 {
		c.PartitionDiscoveryAttempts = d.PartitionDiscoveryAttempts
	}
	return c
}
