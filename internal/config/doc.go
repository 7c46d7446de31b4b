// Package config defines pack settings used by the meshpack subcommands and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the pack context (content server URL, registry,
// contract URI), the object store coordinates, and tuning knobs.
package config
