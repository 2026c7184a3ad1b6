package supervisor

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

//go:embed chat_template.jinja
var bundledChatTemplate []byte

const chatTemplateFile = "chat_template.jinja"

// Launcher starts a serving process from a full argv.
type Launcher interface {
	Launch(argv []string) (ProcessHandle, error)
}

type execLauncher struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExecLauncher returns a Launcher backed by os/exec. Nil writers inherit
// the supervisor's own stdout/stderr so operational logs stay visible.
func NewExecLauncher(stdout, stderr io.Writer) Launcher {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &execLauncher{stdout: stdout, stderr: stderr}
}

func (l *execLauncher) Launch(argv []string) (ProcessHandle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	// Not tied to a request context: the instance outlives the call.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	configureProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return newSpawnedHandle(cmd), nil
}

// needsChatTemplate reports whether model belongs to a family known to ship
// without a chat template.
func needsChatTemplate(model string, families []string) bool {
	lower := strings.ToLower(model)
	for _, f := range families {
		if f != "" && strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// buildCommand assembles the vLLM argv for model on port.
func (s *Supervisor) buildCommand(model string, port int) ([]string, error) {
	argv := []string{
		s.cfg.VLLMPath, "serve", model,
		"--port", strconv.Itoa(port),
		"--gpu-memory-utilization", strconv.FormatFloat(s.cfg.GPUMemoryUtilization, 'f', -1, 64),
		"--dtype", "auto",
		"--enforce-eager",
		"--disable-log-stats",
	}
	if needsChatTemplate(model, s.cfg.TemplateFamilies) {
		path, err := s.chatTemplatePath()
		if err != nil {
			return nil, fmt.Errorf("chat template: %w", err)
		}
		argv = append(argv, "--chat-template", path)
	}
	return append(argv, s.cfg.ExtraArgs...), nil
}

// chatTemplatePath returns the configured template, or materializes the
// bundled one on first use.
func (s *Supervisor) chatTemplatePath() (string, error) {
	if s.cfg.ChatTemplate != "" {
		return s.cfg.ChatTemplate, nil
	}
	s.templateOnce.Do(func() {
		s.templatePath, s.templateErr = writeBundledTemplate(s.cfg.TemplateDir)
	})
	return s.templatePath, s.templateErr
}

func writeBundledTemplate(dir string) (string, error) {
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			cache = os.TempDir()
		}
		dir = filepath.Join(cache, "vllmd")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, chatTemplateFile)
	if cur, err := os.ReadFile(path); err == nil && bytes.Equal(cur, bundledChatTemplate) {
		return path, nil
	}
	if err := os.WriteFile(path, bundledChatTemplate, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
