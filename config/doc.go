// Package config loads the application configuration from a YAML file and
// environment variables, validated after loading. Environment variables win
// over the file, which wins over the tagged defaults.
package config
