// Package config holds the configuration defaults compiled into the binary.
package config

import _ "embed"

// Default is the embedded conf.default.yaml.
//
//go:embed conf.default.yaml
var Default []byte
