package ame_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"amequeue/internal/services"
	"amequeue/internal/services/ame"
)

func ptr[T any](v T) *T { return &v }

func TestSubmitJobPostsManifest(t *testing.T) {
	var gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/job" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		io.WriteString(w, `<?xml version="1.0"?>
<payload>
  <ServerStatus>Online</ServerStatus>
  <JobStatus>Queued</JobStatus>
  <JobId>job-42</JobId>
  <SubmitResult>Accepted</SubmitResult>
  <Details></Details>
</payload>`)
	}))
	defer server.Close()

	client := ame.NewClient(server.URL)
	status, err := client.SubmitJob(context.Background(), ame.Submission{
		SourceFilePath:       `C:\media\in.mov`,
		DestinationPath:      `C:\media\out.mp4`,
		SourcePresetPath:     `C:\presets\h264.epr`,
		OverwriteDestination: ptr(true),
		NotificationTarget:   "http://client:8018/",
	})
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	if gotType != "text/xml" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	for _, want := range []string{
		`<manifest version="1.0">`,
		`<SourceFilePath>C:\media\in.mov</SourceFilePath>`,
		`<OverwriteDestinationIfPresent>true</OverwriteDestinationIfPresent>`,
		`<notificationTarget>http://client:8018/</notificationTarget>`,
	} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("manifest missing %q:\n%s", want, gotBody)
		}
	}
	if strings.Contains(gotBody, "NotificationRateInMilliseconds") {
		t.Fatalf("expected unset rate to be omitted:\n%s", gotBody)
	}

	want := &ame.SubmitStatus{
		Result:     ame.SubmitAccepted,
		ResultText: "Accepted",
		JobStatusSnapshot: ame.JobStatusSnapshot{
			ServerStatus:     ame.ServerOnline,
			ServerStatusText: "Online",
			JobStatus:        ame.JobQueued,
			JobStatusText:    "Queued",
			JobID:            "job-42",
		},
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Fatalf("submit status mismatch (-want +got):\n%s", diff)
	}
}

func TestJobStatusMapsVocabulary(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   ame.JobStatus
		server   ame.ServerStatus
		progress *float64
	}{
		{"encoding", `<payload><ServerStatus>Online</ServerStatus><JobStatus>Encoding</JobStatus><JobProgress>42.5</JobProgress></payload>`, ame.JobEncoding, ame.ServerOnline, ptr(42.5)},
		{"not found", `<payload><ServerStatus>Offline</ServerStatus><JobStatus>Not Found</JobStatus></payload>`, ame.JobNotFound, ame.ServerOffline, nil},
		{"unknown text", `<payload><ServerStatus>Sleeping</ServerStatus><JobStatus>Exploded</JobStatus><JobProgress>n/a</JobProgress></payload>`, ame.JobUnknown, ame.ServerUnknown, nil},
		{"empty", `<payload/>`, ame.JobUnknown, ame.ServerUnknown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/job" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			snap, err := ame.NewClient(server.URL).JobStatus(context.Background())
			if err != nil {
				t.Fatalf("JobStatus returned error: %v", err)
			}
			if snap.JobStatus != tt.status || snap.ServerStatus != tt.server {
				t.Fatalf("got %s/%s want %s/%s", snap.JobStatus, snap.ServerStatus, tt.status, tt.server)
			}
			if diff := cmp.Diff(tt.progress, snap.Progress); diff != "" {
				t.Fatalf("progress mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJobHistoryParsesCompletedJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `<payload>
  <ServerStatus>Online</ServerStatus>
  <JobStatus>Not Found</JobStatus>
  <CompletedJobs>
    <Job>
      <JobId>a</JobId>
      <JobStatus>Success</JobStatus>
      <Details>Encoded in 12s</Details>
      <SourceFilePath>/in/a.mov</SourceFilePath>
      <DestinationPath>/out/a.mp4</DestinationPath>
      <SourcePresetPath>/p/a.epr</SourcePresetPath>
    </Job>
    <Job>
      <JobId>b</JobId>
      <JobStatus>Failed</JobStatus>
      <Details>Codec missing</Details>
    </Job>
  </CompletedJobs>
</payload>`)
	}))
	defer server.Close()

	history, err := ame.NewClient(server.URL).JobHistory(context.Background())
	if err != nil {
		t.Fatalf("JobHistory returned error: %v", err)
	}
	want := []ame.HistoricJob{
		{JobID: "a", JobStatus: ame.JobSuccess, JobStatusText: "Success", Details: "Encoded in 12s",
			SourceFilePath: "/in/a.mov", DestinationPath: "/out/a.mp4", SourcePresetPath: "/p/a.epr"},
		{JobID: "b", JobStatus: ame.JobFailed, JobStatusText: "Failed", Details: "Codec missing"},
	}
	if diff := cmp.Diff(want, history.Jobs); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if job, ok := history.Find("b"); !ok || job.Details != "Codec missing" {
		t.Fatalf("Find(b) = %+v, %v", job, ok)
	}
	if _, ok := history.Find("zzz"); ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestServerEndpoints(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			io.WriteString(w, `<payload><ServerStatus>Online</ServerStatus><ServerIP>10.0.0.2</ServerIP><ServerPort>8080</ServerPort><RestartThreshold>5</RestartThreshold><JobHistorySize>20</JobHistorySize></payload>`)
		}
	}))
	defer server.Close()

	client := ame.NewClient(server.URL)
	ctx := context.Background()
	info, err := client.ServerStatus(ctx)
	if err != nil {
		t.Fatalf("ServerStatus returned error: %v", err)
	}
	if info.ServerIP != "10.0.0.2" || info.ServerPort != 8080 || info.RestartThreshold != 5 || info.JobHistorySize != 20 {
		t.Fatalf("unexpected server info: %+v", info)
	}
	if err := client.StartServer(ctx); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if err := client.StopServer(ctx); err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	if err := client.AbortJob(ctx); err != nil {
		t.Fatalf("AbortJob: %v", err)
	}
	want := []string{"GET /server", "POST /server", "DELETE /server", "DELETE /job"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/history":
			io.WriteString(w, `<html>nope</html>`)
		}
	}))
	defer server.Close()

	client := ame.NewClient(server.URL)
	ctx := context.Background()

	if err := client.AbortJob(ctx); !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected ErrRemote for 503, got %v", err)
	}
	if _, err := client.JobHistory(ctx); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode for non-payload body, got %v", err)
	}

	server.Close()
	if _, err := client.JobStatus(ctx); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport for closed server, got %v", err)
	}
}

func TestNewClientDefaultsToLocalhost(t *testing.T) {
	if got := ame.NewClient("").BaseURL(); got != "http://localhost:8080" {
		t.Fatalf("unexpected base url %q", got)
	}
	if got := ame.NewClient("http://encoder:9000/").BaseURL(); got != "http://encoder:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", got)
	}
}

func TestParseVocabularies(t *testing.T) {
	if ame.ParseSubmitResult("BadSyntax") != ame.SubmitBadSyntax {
		t.Fatal("BadSyntax not recognised")
	}
	if ame.ParseSubmitResult("Maybe") != ame.SubmitUnknown {
		t.Fatal("expected Unknown for unrecognised result")
	}
	if ame.ParseJobStatus("NotFound") != ame.JobUnknown {
		t.Fatal("the service spells the status with a space; the bare form should be Unknown")
	}
	if !ame.JobStopped.Terminal() || ame.JobPaused.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}
