// Package config loads HeadCache's process-wide configuration from
// built-in defaults, an optional YAML file, and HEADCACHE_-prefixed
// environment variables, in that priority order.
//
// Example:
//
//	cfg, err := config.Load("/etc/headcache.yaml")
//	if err != nil {
//	    cfg = config.Default()
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
