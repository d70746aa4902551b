// Package config handles configuration loading, parsing, and validation
// from a dotenv file, an optional YAML file and environment variables. It
// provides type-safe access to the settings each component needs while
// keeping configuration details separate from business logic.
package config
