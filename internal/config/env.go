package config

import (
	"strconv"
	"strings"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvAddr     = "VLLMD_ADDR"
	EnvVLLMPath = "VLLMD_VLLM_PATH"
	EnvLogLevel = "VLLMD_LOG_LEVEL"
	EnvBasePort = "VLLMD_BASE_PORT"
	EnvHFCache  = "VLLMD_HF_CACHE"
)

// EnvConfig names the config file used when no --config flag is given.
const EnvConfig = "VLLMD_CONFIG"

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv. Unparsable numbers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := envStr(getenv, EnvAddr); v != "" {
		c.Addr = v
	}
	if v := envStr(getenv, EnvVLLMPath); v != "" {
		c.VLLMPath = v
	}
	if v := envStr(getenv, EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if n, ok := envInt(getenv, EnvBasePort); ok {
		c.BasePort = n
	}
	if v := envStr(getenv, EnvHFCache); v != "" {
		c.HFCache = v
	}
}

func envStr(getenv func(string) string, key string) string {
	return strings.TrimSpace(getenv(key))
}

func envInt(getenv func(string) string, key string) (int, bool) {
	v := envStr(getenv, key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
