package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vllmd/internal/common/fsutil"
	"vllmd/internal/supervisor"
)

// Config holds runtime parameters for the service.
// Fields absent from a config file keep the values from Default.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	VLLMPath             string   `json:"vllm_path" yaml:"vllm_path" toml:"vllm_path"`
	BasePort             int      `json:"base_port" yaml:"base_port" toml:"base_port"`
	MaxInstances         int      `json:"max_instances" yaml:"max_instances" toml:"max_instances"`
	MaxPortScan          int      `json:"max_port_scan" yaml:"max_port_scan" toml:"max_port_scan"`
	GPUMemoryUtilization float64  `json:"gpu_memory_utilization" yaml:"gpu_memory_utilization" toml:"gpu_memory_utilization"`
	ExtraArgs            []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	ChatTemplate         string   `json:"chat_template" yaml:"chat_template" toml:"chat_template"`
	TemplateFamilies     []string `json:"template_families" yaml:"template_families" toml:"template_families"`
	StopTimeout          Duration `json:"stop_timeout" yaml:"stop_timeout" toml:"stop_timeout"`
	ProbeTimeout         Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	FeedInterval         Duration `json:"feed_interval" yaml:"feed_interval" toml:"feed_interval"`
	SkipDiscovery        bool     `json:"skip_discovery" yaml:"skip_discovery" toml:"skip_discovery"`
	// KeepOnExit leaves instances running when the service shuts down.
	KeepOnExit bool `json:"keep_on_exit" yaml:"keep_on_exit" toml:"keep_on_exit"`

	// HFCache is the Hugging Face hub cache scanned for available models.
	HFCache string `json:"hf_cache" yaml:"hf_cache" toml:"hf_cache"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Duration is a time.Duration written as a Go duration string ("5s") in
// config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Addr:                 ":8000",
		VLLMPath:             supervisor.DefaultLauncherPath,
		BasePort:             supervisor.DefaultBasePort,
		MaxInstances:         supervisor.DefaultMaxInstances,
		MaxPortScan:          supervisor.DefaultMaxPortScan,
		GPUMemoryUtilization: supervisor.DefaultGPUMemoryUtilization,
		TemplateFamilies:     append([]string(nil), supervisor.DefaultTemplateFamilies...),
		StopTimeout:          Duration{supervisor.DefaultStopTimeout},
		ProbeTimeout:         Duration{supervisor.DefaultProbeTimeout},
		FeedInterval:         Duration{supervisor.DefaultFeedInterval},
		HFCache:              "~/.cache/huggingface/hub",
		LogLevel:             "info",
		LogFormat:            "console",
		MaxBodyBytes:         1 << 20,
	}
}

// Load reads a configuration file based on its extension on top of Default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.VLLMPath == "" {
		errs = append(errs, errors.New("vllm_path must not be empty"))
	}
	if c.BasePort < 1 || c.BasePort > 65535 {
		errs = append(errs, fmt.Errorf("base_port %d out of range 1-65535", c.BasePort))
	}
	if c.MaxInstances < 1 {
		errs = append(errs, fmt.Errorf("max_instances must be positive, got %d", c.MaxInstances))
	}
	if c.MaxPortScan < 1 {
		errs = append(errs, fmt.Errorf("max_port_scan must be positive, got %d", c.MaxPortScan))
	}
	if c.GPUMemoryUtilization <= 0 || c.GPUMemoryUtilization > 1 {
		errs = append(errs, fmt.Errorf("gpu_memory_utilization must be in (0,1], got %g", c.GPUMemoryUtilization))
	}
	if c.StopTimeout.Duration < 0 || c.ProbeTimeout.Duration < 0 || c.FeedInterval.Duration < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must not be negative"))
	}
	return errors.Join(errs...)
}

// Supervisor maps the file-level settings onto a supervisor.Config. Logger,
// event publisher and OS collaborators are left for the caller.
func (c Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		VLLMPath:             c.VLLMPath,
		BasePort:             c.BasePort,
		MaxInstances:         c.MaxInstances,
		MaxPortScan:          c.MaxPortScan,
		GPUMemoryUtilization: c.GPUMemoryUtilization,
		ExtraArgs:            append([]string(nil), c.ExtraArgs...),
		ChatTemplate:         fsutil.ExpandHomeOr(c.ChatTemplate),
		TemplateFamilies:     c.TemplateFamilies,
		StopTimeout:          c.StopTimeout.Duration,
		ProbeTimeout:         c.ProbeTimeout.Duration,
		SkipDiscovery:        c.SkipDiscovery,
	}
}
