// Package config loads and validates application configuration from
// environment variables with the TASKFLOW_ prefix.
package config
