package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"amequeue/internal/api"
	"amequeue/internal/services"
)

func TestClientEnqueueSendsTokenAndBody(t *testing.T) {
	var got api.EnqueueRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected authorization %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.JobResponse{Job: api.Job{ID: "j1", Lifecycle: "Pending", Source: got.Source}})
	}))
	defer server.Close()

	client := api.NewClient(server.URL, "secret")
	req := api.EnqueueRequest{Source: "/in.mov", Destination: "/out.mp4", Preset: "System Presets/H.264/Match Source"}
	job, err := client.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Fatalf("request body mismatch (-want +got):\n%s", diff)
	}
	if job.ID != "j1" || job.Finished() {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestClientMapsErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusInternalServerError, services.ErrRemote},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "nope"})
			}))
			defer server.Close()

			_, err := api.NewClient(server.URL, "").GetJob(context.Background(), "missing")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestClientReportsUnreachableDaemon(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.Listener.Addr().String()
	server.Close()

	_, err := api.NewClient(addr, "").Status(context.Background())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
