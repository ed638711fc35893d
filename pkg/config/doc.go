// Package config provides configuration management for the rootgc
// application.
//
// It combines the policy packages into a single API for loading,
// validating, and writing configuration files in YAML format.
package config
