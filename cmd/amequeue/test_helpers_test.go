package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"amequeue/internal/config"
	"amequeue/internal/daemon"
	"amequeue/internal/logging"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

// fakeEncoder emulates the encoder web service's single job slot over HTTP.
type fakeEncoder struct {
	mu       sync.Mutex
	hold     bool
	outcome  string
	current  string
	source   string
	status   string
	seq      int
	history  []string
	requests []string
}

func newFakeEncoder(t *testing.T) (*fakeEncoder, *httptest.Server) {
	t.Helper()
	enc := &fakeEncoder{outcome: "Success", status: "Not Found"}
	srv := httptest.NewServer(http.HandlerFunc(enc.serve))
	t.Cleanup(srv.Close)
	return enc, srv
}

func (e *fakeEncoder) setHold(hold bool) {
	e.mu.Lock()
	e.hold = hold
	e.mu.Unlock()
}

func (e *fakeEncoder) setOutcome(outcome string) {
	e.mu.Lock()
	e.outcome = outcome
	e.mu.Unlock()
}

func (e *fakeEncoder) serve(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, r.Method+" "+r.URL.Path)

	switch r.Method + " " + r.URL.Path {
	case "POST /job":
		var manifest struct {
			SourceFilePath string `xml:"SourceFilePath"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := xml.Unmarshal(body, &manifest); err != nil {
			http.Error(w, "bad manifest", http.StatusBadRequest)
			return
		}
		e.seq++
		e.current = "ame-" + strconv.Itoa(e.seq)
		e.source = manifest.SourceFilePath
		e.status = "Encoding"
		fmt.Fprintf(w, `<payload><ServerStatus>Online</ServerStatus><JobStatus>Queued</JobStatus><JobId>%s</JobId><SubmitResult>Accepted</SubmitResult></payload>`, e.current)
	case "GET /job":
		if e.current != "" && e.status == "Encoding" && !e.hold {
			e.status = e.outcome
			e.history = append([]string{e.current}, e.history...)
		}
		progress := "40"
		if e.status == "Success" {
			progress = "100"
		}
		fmt.Fprintf(w, `<payload><ServerStatus>Online</ServerStatus><JobStatus>%s</JobStatus><JobId>%s</JobId><JobProgress>%s</JobProgress><Details>%s</Details></payload>`,
			e.status, e.current, progress, e.details())
	case "DELETE /job":
		if e.status == "Encoding" {
			e.status = "Stopped"
			e.history = append([]string{e.current}, e.history...)
		}
	case "GET /history":
		var b strings.Builder
		b.WriteString(`<payload><ServerStatus>Online</ServerStatus><JobStatus>Not Found</JobStatus><CompletedJobs>`)
		for _, id := range e.history {
			fmt.Fprintf(&b, `<Job><JobId>%s</JobId><JobStatus>Success</JobStatus><Details>done</Details><SourceFilePath>/media/%s.mov</SourceFilePath></Job>`, id, id)
		}
		b.WriteString(`</CompletedJobs></payload>`)
		io.WriteString(w, b.String())
	case "GET /server":
		io.WriteString(w, `<payload><ServerStatus>Online</ServerStatus><ServerIP>10.0.0.2</ServerIP><ServerPort>8080</ServerPort><RestartThreshold>5</RestartThreshold><JobHistorySize>20</JobHistorySize><JobStatus>Not Found</JobStatus></payload>`)
	case "POST /server", "DELETE /server":
	default:
		http.NotFound(w, r)
	}
}

func (e *fakeEncoder) details() string {
	switch e.status {
	case "Success":
		return "Encoded " + e.source
	case "Failed":
		return "Disk full"
	default:
		return ""
	}
}

func (e *fakeEncoder) count(request string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, r := range e.requests {
		if r == request {
			total++
		}
	}
	return total
}

type cliTestEnv struct {
	cfg        *config.Config
	encoder    *fakeEncoder
	configPath string
	apiAddr    string
}

type envOption func(*envSettings)

type envSettings struct {
	token       string
	startDaemon bool
}

func withToken(token string) envOption {
	return func(s *envSettings) { s.token = token }
}

func withoutDaemon() envOption {
	return func(s *envSettings) { s.startDaemon = false }
}

func setupCLITestEnv(t *testing.T, opts ...envOption) *cliTestEnv {
	t.Helper()
	settings := envSettings{startDaemon: true}
	for _, opt := range opts {
		opt(&settings)
	}

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"AME_HOST", "AME_PORT", "AMEQUEUE_API_TOKEN", "AMEQUEUE_NTFY_TOPIC"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	enc, srv := newFakeEncoder(t)
	host, portText, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split encoder address: %v", err)
	}
	port, _ := strconv.Atoi(portText)

	configPath := filepath.Join(homeDir, ".config", "amequeue", "config.toml")
	writeTestConfig(t, configPath, filepath.Join(base, "logs"), host, port, settings.token)
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		encoder:    enc,
		configPath: configPath,
	}
	if !settings.startDaemon {
		return env
	}

	logger := logging.NewNop()
	gateway := ame.NewFromConfig(cfg, logger)
	mgr, err := workflow.NewManager(cfg, gateway, logger)
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	d, err := daemon.New(cfg, logger, mgr, gateway)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	select {
	case <-d.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("daemon stopped early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not become ready")
	}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	env.apiAddr = d.APIAddress()
	return env
}

func writeTestConfig(t *testing.T, path, logDir, host string, port int, token string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q
api_bind = "127.0.0.1:0"
api_token = %q

[gateway]
host = %q
port = %d

[job]
submit_retry_delay = 0.01
abort_retry_delay = 0.01
poll_interval = 0.01
error_state_timeout = 0.5

[queue]
shutdown_grace = 2

[logging]
level = "error"
`, logDir, token, host, port)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", env.configPath}
	if env.apiAddr != "" {
		flags = append(flags, "--api", env.apiAddr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
