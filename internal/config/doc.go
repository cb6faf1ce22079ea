// Package config loads deployment configuration from multiple sources (a
// KEY=VALUE env file, environment variables, a YAML file, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > env file >
// Defaults. Every required credential must be present; nothing required is
// ever defaulted.
package config
