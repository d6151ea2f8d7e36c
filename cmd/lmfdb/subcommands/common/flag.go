package common

import "os"

// EnvConfig is the environment variable naming the default config file.
const EnvConfig = "LMFDB_CONFIG"

type CommonFlags struct {
	Config string `flag:"config" alias:"c" metavar:"PATH" help:"path to lmfdb config file (env: LMFDB_CONFIG)"`
}

// DefaultCommonFlags reads defaults from environment variables.
func DefaultCommonFlags() CommonFlags {
	config := os.Getenv(EnvConfig)
	if config == "" {
		config = "lmfdb.yaml"
	}
	return CommonFlags{Config: config}
}
