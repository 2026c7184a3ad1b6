package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"vllmd/internal/common/fsutil"
	"vllmd/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagValues mirrors the config fields that can be set on the command line.
// Only flags the user actually passed override file and env values.
type flagValues struct {
	configPath   string
	addr         string
	vllmPath     string
	basePort     int
	maxInstances int
	logLevel     string
	logFormat    string
	hfCache      string
	cors         bool
	corsOrigins  string
	noDiscovery  bool
	keepOnExit   bool
}

// buildRootCmd constructs the command tree. getenv is os.Getenv outside tests.
func buildRootCmd(getenv func(string) string) *cobra.Command {
	fv := &flagValues{}
	def := config.Default()

	root := &cobra.Command{
		Use:           "vllmd",
		Short:         "Supervise local vLLM serving processes over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmdRun(cmd, fv, getenv)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "Config file (.yaml|.yml|.json|.toml); defaults to "+config.EnvConfig)
	pf.StringVar(&fv.addr, "addr", def.Addr, "HTTP listen address (defaults "+config.EnvAddr+")")
	pf.StringVar(&fv.vllmPath, "vllm-path", def.VLLMPath, "vllm launcher executable (defaults "+config.EnvVLLMPath+")")
	pf.IntVar(&fv.basePort, "base-port", def.BasePort, "First port tried for new instances (defaults "+config.EnvBasePort+")")
	pf.IntVar(&fv.maxInstances, "max-instances", def.MaxInstances, "Maximum concurrently running instances")
	pf.StringVar(&fv.logLevel, "log-level", def.LogLevel, "Log level: debug|info|warn|error (defaults "+config.EnvLogLevel+")")
	pf.StringVar(&fv.logFormat, "log-format", def.LogFormat, "Log format: console|json")
	pf.StringVar(&fv.hfCache, "hf-cache", def.HFCache, "Hugging Face hub cache scanned for models (defaults "+config.EnvHFCache+")")
	pf.BoolVar(&fv.cors, "cors", false, "Enable CORS for browser dashboards")
	pf.StringVar(&fv.corsOrigins, "cors-origins", "", "Comma-separated allowed origins (default *)")
	pf.BoolVar(&fv.noDiscovery, "no-discovery", false, "Skip the startup scan for running vLLM processes")
	pf.BoolVar(&fv.keepOnExit, "keep-on-exit", false, "Leave instances running when vllmd exits")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP control API (default)",
		Example: "  vllmd serve --addr :8000 --vllm-path ~/venv/bin/vllm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmdRun(cmd, fv, getenv)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the vllmd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "vllmd %s\n", version)
			return err
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the effective configuration and print it",
		Long:  "Merges defaults, config file, environment and flags, validates the result, checks that the vllm launcher is executable and prints the effective configuration as YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv, getenv)
			if err != nil {
				return err
			}
			return checkConfig(cmd.OutOrStdout(), cfg)
		},
	}

	root.AddCommand(serveCmd, versionCmd, checkCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	root.AddCommand(completionCmd)

	return root
}

// resolveConfig merges, in increasing precedence: defaults, config file,
// environment, explicitly set flags.
func resolveConfig(cmd *cobra.Command, fv *flagValues, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	path := fv.configPath
	if path == "" {
		path = strings.TrimSpace(getenv(config.EnvConfig))
	}
	if path != "" {
		loaded, err := config.Load(fsutil.ExpandHomeOr(path))
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv(getenv)

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr = fv.addr
	}
	if changed("vllm-path") {
		cfg.VLLMPath = fv.vllmPath
	}
	if changed("base-port") {
		cfg.BasePort = fv.basePort
	}
	if changed("max-instances") {
		cfg.MaxInstances = fv.maxInstances
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = fv.logFormat
	}
	if changed("hf-cache") {
		cfg.HFCache = fv.hfCache
	}
	if changed("cors") {
		cfg.CORSEnabled = fv.cors
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(fv.corsOrigins)
		if len(cfg.CORSOrigins) > 0 {
			cfg.CORSEnabled = true
		}
	}
	if changed("no-discovery") {
		cfg.SkipDiscovery = fv.noDiscovery
	}
	if changed("keep-on-exit") {
		cfg.KeepOnExit = fv.keepOnExit
	}
	return cfg, cfg.Validate()
}

func checkConfig(w io.Writer, cfg config.Config) error {
	exe, err := fsutil.ResolveExecutable(cfg.VLLMPath)
	if err != nil {
		return fmt.Errorf("vllm launcher %q: %w", cfg.VLLMPath, err)
	}
	if cache := fsutil.ExpandHomeOr(cfg.HFCache); !fsutil.IsDir(cache) {
		fmt.Fprintf(w, "# warning: hf_cache %s does not exist yet\n", cache)
	}
	fmt.Fprintf(w, "# launcher: %s\n", exe)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// splitCSV splits a comma-separated list, dropping empty items.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
