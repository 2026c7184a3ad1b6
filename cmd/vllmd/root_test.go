package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"vllmd/internal/config"
	"vllmd/internal/registry"
	"vllmd/pkg/types"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func noEnv(string) string { return "" }

func TestVersionCommand(t *testing.T) {
	root := buildRootCmd(noEnv)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.String(); got != "vllmd dev\n" {
		t.Fatalf("version output %q", got)
	}
}

func fakeLauncher(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vllm")
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCheckConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vllmd.yaml")
	body := "addr: :7000\nbase_port: 9001\nmax_instances: 2\nhf_cache: " + dir + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		config.EnvConfig:   cfgPath,
		config.EnvBasePort: "9100",
	}
	root := buildRootCmd(func(k string) string { return env[k] })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check-config", "--addr", ":7500", "--vllm-path", fakeLauncher(t), "--cors-origins", "http://a, http://b"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var got config.Config
	if err := yaml.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("yaml: %v\n%s", err, out.String())
	}
	if got.Addr != ":7500" {
		t.Fatalf("flag should win over file: %q", got.Addr)
	}
	if got.BasePort != 9100 {
		t.Fatalf("env should win over file: %d", got.BasePort)
	}
	if got.MaxInstances != 2 || got.HFCache != dir {
		t.Fatalf("file values lost: %+v", got)
	}
	if !got.CORSEnabled || len(got.CORSOrigins) != 2 || got.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors: %v %v", got.CORSEnabled, got.CORSOrigins)
	}
	// unset flags keep file/env values, not flag defaults
	if got.LogLevel != "info" || got.SkipDiscovery {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if !strings.Contains(out.String(), "# launcher: ") {
		t.Fatalf("missing launcher line:\n%s", out.String())
	}
}

func TestCheckConfig_Failures(t *testing.T) {
	root := buildRootCmd(noEnv)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"check-config", "--vllm-path", filepath.Join(t.TempDir(), "missing-vllm")})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "vllm launcher") {
		t.Fatalf("expected launcher error, got %v", err)
	}

	root = buildRootCmd(noEnv)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"check-config", "--vllm-path", fakeLauncher(t), "--base-port", "0", "--log-format", "xml"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "base_port") || !strings.Contains(err.Error(), "log_format") {
		t.Fatalf("expected validation errors, got %v", err)
	}

	root = buildRootCmd(noEnv)
	root.SetArgs([]string{"check-config", "--config", filepath.Join(t.TempDir(), "nope.toml")})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Str("model", "gpt2").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"model":"gpt2"`) {
		t.Fatalf("json logger output %q", out)
	}

	buf.Reset()
	l = newLogger(&buf, "bogus", "console")
	l.Info().Msg("console line")
	if !strings.Contains(buf.String(), "console line") || strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("console logger output %q", buf.String())
	}
}

func TestCatalogDecorator(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "models--facebook--opt-125m"), 0o755); err != nil {
		t.Fatal(err)
	}
	dec := catalogDecorator(registry.NewCatalog(dir))
	var f types.FeedFrame
	dec(context.Background(), &f)
	models, ok := f.Extra["available_models"].([]string)
	if !ok || len(models) != 1 || models[0] != "facebook/opt-125m" {
		t.Fatalf("extra: %#v", f.Extra)
	}
}
