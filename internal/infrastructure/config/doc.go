// Package config loads and validates the BioStream Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// BIOSTREAM_* environment variable overrides. The recorder section
// carries every retry bound and scan duration used by the core, so
// nothing in the core depends on package-level constants.
package config
