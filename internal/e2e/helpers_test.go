package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vllmd/internal/httpapi"
	"vllmd/internal/registry"
	"vllmd/internal/supervisor"
	"vllmd/pkg/types"
)

func requireGo(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e: skipped in -short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("e2e: go toolchain not on PATH")
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/internal/e2e/helpers_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

// goBuild compiles pkg (relative to the module root) into a temp dir.
func goBuild(t *testing.T, name, pkg string) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("go", "build", "-o", bin, pkg)
	cmd.Dir = projectRoot(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build %s: %v\n%s", pkg, err, out)
	}
	return bin
}

// buildFakeVLLM builds the stand-in launcher. Its base name is "vllm" so
// discovery and port reaping treat it like the real thing.
func buildFakeVLLM(t *testing.T) string {
	return goBuild(t, "vllm", "./internal/e2e/testdata/fake_vllm.go")
}

// freePort reserves and releases a localhost port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

type stack struct {
	srv *httptest.Server
	sup *supervisor.Supervisor
}

func newStack(t *testing.T, launcher string, basePort int, hfCache string) *stack {
	t.Helper()
	// Not a test writer: the http layer keeps the logger past this test.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).Level(zerolog.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sup := supervisor.New(ctx, supervisor.Config{
		VLLMPath:      launcher,
		BasePort:      basePort,
		MaxInstances:  2,
		TemplateDir:   t.TempDir(),
		StopTimeout:   3 * time.Second,
		SkipDiscovery: true,
		Logger:        &logger,
		Publisher:     supervisor.LogPublisher{Logger: logger},
	})
	feed := supervisor.NewPublisher(sup, 50*time.Millisecond, &logger)
	go func() { _ = feed.Run(ctx) }()

	httpapi.SetLogger(logger)
	srv := httptest.NewServer(httpapi.NewMux(sup, feed, registry.NewCatalog(hfCache)))
	t.Cleanup(func() {
		srv.Close()
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		sup.Shutdown(sctx)
	})
	return &stack{srv: srv, sup: sup}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func postOp(t *testing.T, url, model string) types.OpResult {
	t.Helper()
	payload, _ := json.Marshal(types.StartRequest{Model: model})
	resp, body := httpPostJSON(t, url, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: status=%d body=%s", url, resp.StatusCode, body)
	}
	var res types.OpResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return res
}

func getStatus(t *testing.T, base string) types.ControlStatus {
	t.Helper()
	resp, body := httpGet(t, base+"/api/vllm/control/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, body)
	}
	var st types.ControlStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status %s: %v", body, err)
	}
	return st
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func portOpen(port int) bool {
	c, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}
