package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"overdub/internal/config"
	"overdub/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapturingServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newNtfyService(t *testing.T, server *httptest.Server) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobStarted(context.Background(), "acme/tour", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyJobCompleted(t *testing.T) {
	server, requests := newCapturingServer(t)
	svc := newNtfyService(t, server)

	err := svc.NotifyJobCompleted(context.Background(), "acme/onboarding-tour", "/library/videos/acme/tour/recording.webm", false)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("requests = %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Overdub - Complete" {
		t.Fatalf("title = %q", got.title)
	}
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	if got.tags != "overdub,job,completed" {
		t.Fatalf("tags = %q", got.tags)
	}
	// Tenant and project identifiers are rendered as readable titles.
	if want := "Acme / Onboarding Tour"; !strings.Contains(got.body, want) {
		t.Fatalf("body %q missing %q", got.body, want)
	}
}

func TestNotifyJobCompletedDegraded(t *testing.T) {
	server, requests := newCapturingServer(t)
	svc := newNtfyService(t, server)

	if err := svc.NotifyJobCompleted(context.Background(), "acme/tour", "/tmp/raw.webm", true); err != nil {
		t.Fatal(err)
	}
	got := (*requests)[0]
	if got.title != "Overdub - Complete (no narration)" {
		t.Fatalf("title = %q", got.title)
	}
	if !strings.Contains(got.body, "raw recording") {
		t.Fatalf("body = %q", got.body)
	}
}

func TestNotifyJobFailed(t *testing.T) {
	server, requests := newCapturingServer(t)
	svc := newNtfyService(t, server)

	if err := svc.NotifyJobFailed(context.Background(), "acme/tour", errors.New("harness crashed")); err != nil {
		t.Fatal(err)
	}
	got := (*requests)[0]
	if got.title != "Overdub - Job Failed" || got.priority != "high" {
		t.Fatalf("request = %+v", got)
	}
	if !strings.Contains(got.body, "harness crashed") {
		t.Fatalf("body = %q", got.body)
	}
}

func TestLifecycleNotificationsDisabled(t *testing.T) {
	server, requests := newCapturingServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobLifecycle = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobStarted(context.Background(), "acme/tour", 3); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyJobFailed(context.Background(), "acme/tour", errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	// Error notifications stay enabled independently of lifecycle ones.
	if len(*requests) != 1 {
		t.Fatalf("requests = %d", len(*requests))
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()
	svc := newNtfyService(t, server)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v", err)
	}
}

func TestWebhookPostResult(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := config.Default()
	webhook := notifications.NewWebhook(&cfg)
	result := map[string]any{"success": true, "videoLocation": "/library/recording.webm"}
	if err := webhook.PostResult(context.Background(), server.URL, result); err != nil {
		t.Fatalf("PostResult: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if gotBody["success"] != true {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestWebhookBlankURLIsNoop(t *testing.T) {
	cfg := config.Default()
	webhook := notifications.NewWebhook(&cfg)
	if err := webhook.PostResult(context.Background(), "  ", nil); err != nil {
		t.Fatalf("blank URL should be a no-op, got %v", err)
	}
}
