// Package config loads the YAML configuration file.
//
// Load starts from Default(), overlays the file, then normalizes:
// out-of-range values are clamped rather than rejected, so an old
// config keeps working when limits change. Only the API key is
// strictly required.
package config
