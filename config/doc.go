// Package config loads the router configuration. Values resolve in three
// layers: compiled defaults, then an optional YAML file, then environment
// variables with the AICHESTRA prefix.
package config
