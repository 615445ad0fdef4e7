// Package config loads, validates and saves the YAML settings
// shared by the on-device update utility.
package config
