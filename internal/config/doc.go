// Package config implements the fleet manager configuration.
//
// Values start from Baseline, are overlaid by an optional YAML file, then by
// HDM_* environment variables, and are validated last.
package config
